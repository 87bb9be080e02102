package emulator

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Paygate/rpc"
)

func TestFundLeavesPendingAndTransferSettles(t *testing.T) {
	n, err := New(Config{})
	require.NoError(t, err)

	key, addr, err := n.NewAccount()
	require.NoError(t, err)

	_, err = n.Fund(addr, big.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, "0", n.Balance(addr).String())
	assert.Equal(t, "500", n.PendingTotal(addr).String())

	_, other, err := n.NewAccount()
	require.NoError(t, err)
	_, err = n.Transfer(key, other, big.NewInt(200))
	require.NoError(t, err)
	assert.Equal(t, "300", n.Balance(addr).String())
	assert.Equal(t, "0", n.PendingTotal(addr).String())
	assert.Equal(t, "200", n.PendingTotal(other).String())

	_, err = n.Transfer(key, other, big.NewInt(301))
	assert.Error(t, err)
}

func TestHandleUnknownAndInjectedFailures(t *testing.T) {
	n, err := New(Config{})
	require.NoError(t, err)

	assert.Equal(t, msgUnknownCommand, n.Handle(map[string]any{"action": "bootstrap"})["error"])

	n.FailNext("key_create", msgGapSource)
	assert.Equal(t, msgGapSource, n.Handle(map[string]any{"action": "key_create"})["error"])
	assert.NotContains(t, n.Handle(map[string]any{"action": "key_create"}), "error")
	assert.Equal(t, 2, n.Calls("key_create"))
}

func TestBlockLifecycleOverRPC(t *testing.T) {
	ctx := context.Background()
	n, c := Start(t, Config{})

	key, addr, err := n.NewAccount()
	require.NoError(t, err)
	send, err := n.Fund(addr, big.NewInt(42))
	require.NoError(t, err)

	var created struct {
		Hash  string            `json:"hash"`
		Block map[string]string `json:"block"`
	}
	err = c.Invoke(ctx, "block_create", rpc.Args{
		"type":           "state",
		"key":            key,
		"account":        addr,
		"previous":       ZeroHash,
		"representative": n.Genesis(),
		"balance":        "42",
		"link":           send,
	}, &created)
	require.NoError(t, err)
	require.NotEmpty(t, created.Hash)

	var processed struct {
		Hash string `json:"hash"`
	}
	require.NoError(t, c.Invoke(ctx, "process", rpc.Args{"block": created.Block}, &processed))
	assert.Equal(t, created.Hash, processed.Hash)
	assert.Equal(t, "42", n.Balance(addr).String())

	err = c.Invoke(ctx, "process", rpc.Args{"block": created.Block}, nil)
	assert.ErrorIs(t, err, rpc.ErrOldBlock)

	var info struct {
		Blocks map[string]struct {
			BlockAccount string `json:"block_account"`
			Amount       string `json:"amount"`
			Subtype      string `json:"subtype"`
		} `json:"blocks"`
	}
	require.NoError(t, c.Invoke(ctx, "blocks_info", rpc.Args{"hashes": []string{send}}, &info))
	assert.Equal(t, n.Genesis(), info.Blocks[send].BlockAccount)
	assert.Equal(t, "42", info.Blocks[send].Amount)
	assert.Equal(t, "send", info.Blocks[send].Subtype)
}

func TestLockedWalletIsRepairedByClient(t *testing.T) {
	n, c := Start(t, Config{Wallet: "W1", Locked: true})
	key, addr, err := n.NewAccount()
	require.NoError(t, err)
	send, err := n.Fund(addr, big.NewInt(1))
	require.NoError(t, err)

	err = c.Invoke(context.Background(), "block_create", rpc.Args{
		"type": "state", "key": key, "account": addr, "balance": "1", "link": send,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n.Calls("wallet_unlock"))
	assert.Equal(t, 2, n.Calls("block_create"))
}

func TestUnitConversionUsesMultiplier(t *testing.T) {
	n, err := New(Config{Multiplier: "1000000"})
	require.NoError(t, err)

	assert.Equal(t, "1500000", n.Handle(map[string]any{"action": "rai_to_raw", "amount": "1.5"})["amount"])
	assert.Equal(t, msgBadAmount, n.Handle(map[string]any{"action": "rai_to_raw", "amount": "0.0000001"})["error"])
	assert.Equal(t, "2", n.Handle(map[string]any{"action": "rai_from_raw", "amount": "2500000"})["amount"])
}
