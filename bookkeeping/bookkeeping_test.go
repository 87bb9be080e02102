package bookkeeping

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Paygate/account"
	"github.com/bartossh/Paygate/block"
	"github.com/bartossh/Paygate/emulator"
	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/localcache"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/providers"
	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/sweeper"
	"github.com/bartossh/Paygate/transaction"
	"github.com/bartossh/Paygate/units"
	"github.com/bartossh/Paygate/watcher"
	"github.com/bartossh/Paygate/webhooks"
)

const oneRai = 1000000

type fixture struct {
	node     *emulator.Node
	store    *localcache.TransactionCache
	ledger   *Ledger
	payer    string
	payerKey string
	dest     string
	destKey  string
}

func newFixture(t *testing.T, cfg Config, whitelistPayer bool) fixture {
	n, client := emulator.Start(t, emulator.Config{Multiplier: "1000000"})

	payerKey, payer, err := n.NewAccount()
	require.NoError(t, err)
	_, err = n.Fund(payer, big.NewInt(10*oneRai))
	require.NoError(t, err)
	destKey, dest, err := n.NewAccount()
	require.NoError(t, err)

	if whitelistPayer {
		cfg.ExchangeWhitelist = append(cfg.ExchangeWhitelist, payer)
	}

	query := ledger.New(client)
	accounts := account.New(client)
	builder := block.New(block.Config{}, client, query, accounts, logger.Discard{})
	sw := sweeper.New(accounts, query, builder, logger.Discard{})
	hub := webhooks.New(webhooks.Config{}, logger.Discard{})
	w := watcher.New(
		watcher.Config{InitialDelay: 10 * time.Millisecond, SafetyCheck: 50 * time.Millisecond},
		query, hub, logger.Discard{}, providers.NoTelemetry{},
	)
	store := localcache.NewTransactionCache(localcache.Config{})

	l, err := New(cfg, store, units.New(client), accounts, query, w, sw, logger.Discard{})
	require.NoError(t, err)

	return fixture{node: n, store: store, ledger: l, payer: payer, payerKey: payerKey, dest: dest, destKey: destKey}
}

func (f fixture) create(t *testing.T, amount string) transaction.Transaction {
	id, err := f.ledger.Create(context.Background(), transaction.Draft{Destination: f.dest, Amount: amount, Currency: "rai"})
	require.NoError(t, err)
	trx, err := f.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return trx
}

func (f fixture) pay(t *testing.T, to string, raw int64) {
	_, err := f.node.Transfer(f.payerKey, to, big.NewInt(raw))
	require.NoError(t, err)
}

func (f fixture) status(t *testing.T, id int64) transaction.Status {
	trx, err := f.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return trx.Status
}

func (f fixture) total(addr string) *big.Int {
	return new(big.Int).Add(f.node.Balance(addr), f.node.PendingTotal(addr))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, Config{}.Validate())
	assert.ErrorIs(t, Config{ExchangeWhitelist: []string{"nano_bad"}}.Validate(), ErrInvalidExchange)
	assert.Error(t, Config{WaitTimeout: -time.Second}.Validate())
}

func TestCreateValidatesDraft(t *testing.T) {
	f := newFixture(t, Config{}, false)
	ctx := context.Background()

	_, err := f.ledger.Create(ctx, transaction.Draft{Destination: "nano_bad", Amount: "1", Currency: "rai"})
	assert.ErrorIs(t, err, transaction.ErrInvalidAddress)

	_, err = f.ledger.Create(ctx, transaction.Draft{Destination: f.dest, Amount: "1", Currency: "usd"})
	assert.ErrorIs(t, err, transaction.ErrUnsupportedCurrency)

	_, err = f.ledger.Create(ctx, transaction.Draft{Destination: f.dest, Amount: "abc", Currency: "rai"})
	assert.ErrorIs(t, err, transaction.ErrInvalidAmount)

	_, err = f.ledger.Create(ctx, transaction.Draft{Destination: f.dest, Amount: "0", Currency: "rai"})
	assert.ErrorIs(t, err, transaction.ErrInvalidAmount)

	for _, amount := range []string{"1/2", "1e-6", "3/4", ".5", "1."} {
		_, err = f.ledger.Create(ctx, transaction.Draft{Destination: f.dest, Amount: amount, Currency: "rai"})
		assert.ErrorIs(t, err, transaction.ErrInvalidAmount, amount)
	}
	assert.Equal(t, 0, f.node.Calls("rai_to_raw"))

	id, err := f.ledger.Create(ctx, transaction.Draft{Destination: f.dest, Amount: "1"})
	require.NoError(t, err)

	trx, err := f.ledger.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusCreated, trx.Status)
	assert.Equal(t, "1000000", trx.AmountRaw)
	assert.Equal(t, "rai", trx.Currency)
	assert.Equal(t, f.dest, trx.Destination)
	assert.NotEmpty(t, trx.Account)
	assert.NotEmpty(t, trx.PrivateKey)
}

func TestAwaitPaymentReachesPending(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")

	done := make(chan Result, 1)
	go func() {
		res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, 5*time.Second, nil)
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool { return f.status(t, trx.ID) == transaction.StatusWaiting }, time.Second, 5*time.Millisecond)
	f.pay(t, trx.Account, oneRai)

	select {
	case res := <-done:
		assert.Equal(t, transaction.StatusPending, res.Status)
		assert.True(t, res.Received.Covers(big.NewInt(oneRai)))
	case <-time.After(3 * time.Second):
		t.Fatal("payment wait did not finish")
	}
	assert.Equal(t, transaction.StatusPending, f.status(t, trx.ID))
}

func TestAwaitPaymentExpires(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")

	res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, 100*time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusExpired, res.Status)
	assert.Equal(t, 0, res.Received.Total().Sign())
	assert.Equal(t, transaction.StatusExpired, f.status(t, trx.ID))
}

func TestAwaitPaymentCancelled(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")

	cancel := make(chan struct{})
	time.AfterFunc(50*time.Millisecond, func() { close(cancel) })

	start := time.Now()
	res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, 10*time.Second, cancel)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, transaction.StatusExpired, res.Status)
}

func TestAwaitPaymentReportsSettledTransaction(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, oneRai)

	res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusPending, res.Status)

	start := time.Now()
	res, err = f.ledger.AwaitPayment(context.Background(), trx.ID, 10*time.Second, nil)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, res.Status)
	assert.Less(t, time.Since(start), time.Second)
}

func TestProcessForwardsAndRefundsRemainder(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, oneRai+500000)

	res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusPending, res.Status)

	require.NoError(t, f.ledger.Process(context.Background(), trx.ID))
	assert.Equal(t, transaction.StatusComplete, f.status(t, trx.ID))
	assert.Equal(t, "1000000", f.total(f.dest).String())
	assert.Equal(t, "9000000", f.total(f.payer).String())
	assert.Equal(t, "0", f.total(trx.Account).String())

	processed := f.node.Calls("process")
	require.NoError(t, f.ledger.Process(context.Background(), trx.ID))
	assert.Equal(t, processed, f.node.Calls("process"))
	assert.Equal(t, transaction.StatusComplete, f.status(t, trx.ID))
}

func TestRefundAfterProcessReturnsDestinationPayment(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, oneRai)

	res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, time.Second, nil)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusPending, res.Status)
	require.NoError(t, f.ledger.Process(context.Background(), trx.ID))
	require.Equal(t, "1000000", f.total(f.dest).String())

	_, err = f.node.Transfer(f.destKey, trx.Account, big.NewInt(500000))
	require.NoError(t, err)

	require.NoError(t, f.ledger.Refund(context.Background(), trx.ID))
	assert.Equal(t, "9000000", f.total(f.payer).String())
	assert.Equal(t, "1000000", f.total(f.dest).String())
	assert.Equal(t, "0", f.total(trx.Account).String())
	assert.Equal(t, transaction.StatusComplete, f.status(t, trx.ID))
}

func TestProcessEmptyPendingTransactionCompletes(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	_, err := f.store.UpdateStatus(context.Background(), trx.ID, transaction.StatusWaiting)
	require.NoError(t, err)
	_, err = f.store.UpdateStatus(context.Background(), trx.ID, transaction.StatusPending)
	require.NoError(t, err)

	require.NoError(t, f.ledger.Process(context.Background(), trx.ID))
	assert.Equal(t, transaction.StatusComplete, f.status(t, trx.ID))
	assert.Equal(t, 0, f.node.Calls("process"))
}

func TestProcessRejectsUnpaidTransaction(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")

	err := f.ledger.Process(context.Background(), trx.ID)
	assert.ErrorIs(t, err, transaction.ErrInvalidTransition)
	assert.Equal(t, transaction.StatusCreated, f.status(t, trx.ID))
}

func TestProcessShortPaymentFails(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, 400000)

	res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, 50*time.Millisecond, nil)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusExpired, res.Status)

	err = f.ledger.Process(context.Background(), trx.ID)
	assert.ErrorIs(t, err, block.ErrInsufficientFunds)
	assert.Equal(t, transaction.StatusExpired, f.status(t, trx.ID))
	assert.Equal(t, "0", f.total(f.dest).String())
}

func TestRefundReturnsLatePayment(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")

	res, err := f.ledger.AwaitPayment(context.Background(), trx.ID, 50*time.Millisecond, nil)
	require.NoError(t, err)
	require.Equal(t, transaction.StatusExpired, res.Status)

	f.pay(t, trx.Account, 700000)
	require.NoError(t, f.ledger.Refund(context.Background(), trx.ID))
	assert.Equal(t, transaction.StatusRefunded, f.status(t, trx.ID))
	assert.Equal(t, "10000000", f.total(f.payer).String())

	require.NoError(t, f.ledger.Refund(context.Background(), trx.ID))
	assert.Equal(t, "10000000", f.total(f.payer).String())
}

func TestRefundNeverDowngradesComplete(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, oneRai)

	_, err := f.ledger.AwaitPayment(context.Background(), trx.ID, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Process(context.Background(), trx.ID))

	f.pay(t, trx.Account, 300000)
	require.NoError(t, f.ledger.Refund(context.Background(), trx.ID))
	assert.Equal(t, transaction.StatusComplete, f.status(t, trx.ID))
	assert.Equal(t, "9000000", f.total(f.payer).String())
}

func TestCheckExchangesAndForceProcess(t *testing.T) {
	f := newFixture(t, Config{}, true)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, 400000)

	ok, err := f.ledger.CheckExchanges(context.Background(), trx.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, f.ledger.ForceProcess(context.Background(), trx.ID))
	assert.Equal(t, transaction.StatusForce, f.status(t, trx.ID))
	assert.Equal(t, "400000", f.total(f.dest).String())
	assert.Equal(t, "0", f.total(trx.Account).String())

	require.NoError(t, f.ledger.ForceProcess(context.Background(), trx.ID))
	assert.Equal(t, "400000", f.total(f.dest).String())
}

func TestCheckExchangesWithoutWhitelistedSender(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, 400000)

	ok, err := f.ledger.CheckExchanges(context.Background(), trx.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestByAccount(t *testing.T) {
	f := newFixture(t, Config{}, false)
	trx := f.create(t, "1")
	f.pay(t, trx.Account, oneRai)

	_, err := f.ledger.AwaitPayment(context.Background(), trx.ID, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, f.ledger.ProcessByAccount(context.Background(), trx.Account))
	assert.Equal(t, transaction.StatusComplete, f.status(t, trx.ID))

	other := f.create(t, "2")
	require.NoError(t, f.ledger.RefundByAccount(context.Background(), other.Account))
	assert.Equal(t, transaction.StatusCreated, f.status(t, other.ID))

	assert.ErrorIs(t, f.ledger.RefundByAccount(context.Background(), f.dest), repository.ErrNotFound)
}

func TestReceivedCountsEveryCredit(t *testing.T) {
	f := newFixture(t, Config{}, false)
	ctx := context.Background()
	trx := f.create(t, "1")

	received, err := f.ledger.Received(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, received.Sign())

	f.pay(t, trx.Account, oneRai)
	received, err = f.ledger.Received(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000000", received.String())

	_, err = f.ledger.AwaitPayment(ctx, trx.ID, time.Second, nil)
	require.NoError(t, err)
	require.NoError(t, f.ledger.Process(ctx, trx.ID))
	f.pay(t, trx.Account, 250000)

	received, err = f.ledger.Received(ctx, trx.ID)
	require.NoError(t, err)
	assert.Equal(t, "1250000", received.String())

	_, err = f.ledger.Received(ctx, 999)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestKeyedMutexSerializesPerKey(t *testing.T) {
	k := newKeyedMutex()

	var wg sync.WaitGroup
	var mux sync.Mutex
	inside, maxInside := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(7)
			mux.Lock()
			inside++
			if inside > maxInside {
				maxInside = inside
			}
			mux.Unlock()
			time.Sleep(time.Millisecond)
			mux.Lock()
			inside--
			mux.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside)
	assert.Equal(t, 0, k.len())
}

func TestLedgerIsFrontDoor(t *testing.T) {
	var _ FrontDoor = &Ledger{}
}
