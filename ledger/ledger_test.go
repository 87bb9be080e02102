package ledger

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Paygate/emulator"
	"github.com/bartossh/Paygate/rpc"
)

type cannedNode struct {
	responses map[string]string
	calls     map[string]int
	args      map[string]rpc.Args
}

func (c *cannedNode) Invoke(_ context.Context, action string, args rpc.Args, out any) error {
	if c.calls == nil {
		c.calls = make(map[string]int)
		c.args = make(map[string]rpc.Args)
	}
	c.calls[action]++
	c.args[action] = args
	if out == nil {
		return nil
	}
	return json.Unmarshal([]byte(c.responses[action]), out)
}

func TestAmountPair(t *testing.T) {
	p := AmountPair{Balance: big.NewInt(3), Pending: big.NewInt(4)}
	assert.Equal(t, "7", p.Total().String())
	assert.True(t, p.Covers(big.NewInt(7)))
	assert.False(t, p.Covers(big.NewInt(8)))
	assert.Equal(t, "3", p.Balance.String())

	assert.Equal(t, 0, AmountPair{}.Total().Sign())
	assert.True(t, Zero().Covers(nil))
}

func TestEmptyListsDecodeAsEmpty(t *testing.T) {
	node := &cannedNode{responses: map[string]string{
		actionPending: `{"blocks":""}`,
		actionHistory: `{"account":"x","history":""}`,
	}}
	s := New(node)

	pending, err := s.Pending(context.Background(), "x", 0, true)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, "100", node.args[actionPending]["count"])
	assert.Equal(t, "true", node.args[actionPending]["include_active"])

	history, err := s.History(context.Background(), "x", 5)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestPendingAcceptsObjectForm(t *testing.T) {
	node := &cannedNode{responses: map[string]string{
		actionPending: `{"blocks":{"BB":{"amount":"1"},"AA":{"amount":"2"}}}`,
	}}
	pending, err := New(node).Pending(context.Background(), "x", 10, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"AA", "BB"}, pending)
}

func TestTotalReceivedCountsEveryHashOnce(t *testing.T) {
	node := &cannedNode{responses: map[string]string{
		actionHistory: `{"history":[
			{"type":"receive","account":"a","amount":"10","hash":"H1"},
			{"type":"send","account":"b","amount":"99","hash":"H2"},
			{"type":"receive","account":"c","amount":"5","hash":"H3"}]}`,
		actionPending: `{"blocks":["H3","H4"]}`,
		actionBlocks: `{"blocks":{
			"H1":{"block_account":"a","amount":"10"},
			"H3":{"block_account":"c","amount":"5"},
			"H4":{"block_account":"d","amount":"7"}}}`,
	}}
	s := New(node)

	first, err := s.TotalReceived(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "22", first.String())

	second, err := s.TotalReceived(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 0, first.Cmp(second))
	assert.Len(t, node.args[actionBlocks]["hashes"], 3)
}

func TestQueriesAgainstNode(t *testing.T) {
	ctx := context.Background()
	n, client := emulator.Start(t, emulator.Config{})
	s := New(client)

	key, addr, err := n.NewAccount()
	require.NoError(t, err)
	_, other, err := n.NewAccount()
	require.NoError(t, err)

	info, err := s.Info(ctx, addr)
	require.NoError(t, err)
	assert.False(t, info.Opened)

	send, err := n.Fund(addr, big.NewInt(100))
	require.NoError(t, err)
	_, err = n.Fund(addr, big.NewInt(50))
	require.NoError(t, err)

	pair, err := s.Balance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "0", pair.Balance.String())
	assert.Equal(t, "150", pair.Pending.String())

	b, err := s.BlockInfo(ctx, send)
	require.NoError(t, err)
	assert.Equal(t, n.Genesis(), b.Account)
	assert.Equal(t, "100", b.Amount.String())
	assert.Equal(t, addr, b.Contents.LinkAsAccount)

	_, err = n.Transfer(key, other, big.NewInt(30))
	require.NoError(t, err)

	received, err := s.Received(ctx, addr, 0)
	require.NoError(t, err)
	assert.Len(t, received, 2)
	sent, err := s.Sent(ctx, addr, 0)
	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, other, sent[0].Account)
	assert.Equal(t, "30", sent[0].Amount.String())

	total, err := s.TotalReceived(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "150", total.String())

	info, err = s.Info(ctx, addr)
	require.NoError(t, err)
	assert.True(t, info.Opened)
	assert.Equal(t, "120", info.Balance.String())
}

func TestIsAddressValid(t *testing.T) {
	n, client := emulator.Start(t, emulator.Config{})
	s := New(client)

	ok, err := s.IsAddressValid(context.Background(), n.Genesis())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.IsAddressValid(context.Background(), "nano_1111")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, n.Calls("validate_account_number"))
}
