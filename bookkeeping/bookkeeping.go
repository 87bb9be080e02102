package bookkeeping

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/bartossh/Paygate/account"
	"github.com/bartossh/Paygate/address"
	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/sweeper"
	"github.com/bartossh/Paygate/transaction"
	"github.com/bartossh/Paygate/units"
	"github.com/bartossh/Paygate/watcher"
)

const (
	defaultCurrency    = "rai"
	defaultWaitTimeout = 2 * time.Minute
)

var ErrInvalidExchange = errors.New("exchange whitelist entry is not a valid address")

// TransactionStore provides transaction persistence. UpdateStatus writes only when the stored status
// differs and may move to the new one, it reports whether the record changed.
type TransactionStore interface {
	InsertTransaction(ctx context.Context, trx *transaction.Transaction) (int64, error)
	ReadTransaction(ctx context.Context, id int64) (transaction.Transaction, error)
	ReadTransactionByAccount(ctx context.Context, account string) (transaction.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status transaction.Status) (bool, error)
}

// Waiter waits for the balance of an address to reach the target.
type Waiter interface {
	Wait(ctx context.Context, req watcher.Request) ledger.AmountPair
}

// Result is the outcome of waiting for a payment.
type Result struct {
	Status   transaction.Status `json:"status"`
	Received ledger.AmountPair  `json:"received"`
}

// FrontDoor is what the transport layer uses to drive payments.
type FrontDoor interface {
	Create(ctx context.Context, draft transaction.Draft) (int64, error)
	AwaitPayment(ctx context.Context, id int64, timeout time.Duration, cancel <-chan struct{}) (Result, error)
	Get(ctx context.Context, id int64) (transaction.Transaction, error)
	Received(ctx context.Context, id int64) (*big.Int, error)
	RefundByAccount(ctx context.Context, addr string) error
	ProcessByAccount(ctx context.Context, addr string) error
}

// Config is a configuration of the Ledger.
type Config struct {
	Currency          string        `yaml:"currency"`           // The only currency transactions are accepted in.
	ExchangeWhitelist []string      `yaml:"exchange_whitelist"` // Addresses of exchanges, a payment from them is always forwarded.
	WaitTimeout       time.Duration `yaml:"wait_timeout"`       // Payment wait used when the caller gives none.
}

// Validate validates the Ledger configuration.
func (c Config) Validate() error {
	for _, e := range c.ExchangeWhitelist {
		if err := address.Validate(e); err != nil {
			return errors.Join(ErrInvalidExchange, fmt.Errorf("entry %q: %w", e, err))
		}
	}
	if c.WaitTimeout < 0 {
		return errors.New("wait timeout cannot be negative")
	}
	return nil
}

// Ledger drives transactions through their lifecycle. Balance mutating steps of one transaction
// never run concurrently inside the process.
type Ledger struct {
	currency  string
	timeout   time.Duration
	exchanges map[string]struct{}
	store     TransactionStore
	units     *units.Converter
	accounts  *account.Manager
	query     *ledger.Service
	waiter    Waiter
	sweeper   *sweeper.Engine
	locks     *keyedMutex
	log       logger.Logger
}

// New creates a new Ledger.
func New(
	cfg Config,
	store TransactionStore,
	conv *units.Converter,
	accounts *account.Manager,
	query *ledger.Service,
	waiter Waiter,
	sw *sweeper.Engine,
	log logger.Logger,
) (*Ledger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Currency == "" {
		cfg.Currency = defaultCurrency
	}
	if cfg.WaitTimeout == 0 {
		cfg.WaitTimeout = defaultWaitTimeout
	}
	exchanges := make(map[string]struct{}, len(cfg.ExchangeWhitelist))
	for _, e := range cfg.ExchangeWhitelist {
		exchanges[e] = struct{}{}
	}
	return &Ledger{
		currency:  strings.ToLower(cfg.Currency),
		timeout:   cfg.WaitTimeout,
		exchanges: exchanges,
		store:     store,
		units:     conv,
		accounts:  accounts,
		query:     query,
		waiter:    waiter,
		sweeper:   sw,
		locks:     newKeyedMutex(),
		log:       log,
	}, nil
}

// Create validates the draft, allocates a one-time account and persists the transaction as created.
func (l *Ledger) Create(ctx context.Context, draft transaction.Draft) (int64, error) {
	currency := strings.ToLower(strings.TrimSpace(draft.Currency))
	if currency == "" {
		currency = l.currency
	}
	if currency != l.currency {
		return 0, errors.Join(transaction.ErrUnsupportedCurrency, fmt.Errorf("currency %q", draft.Currency))
	}

	valid, err := l.query.IsAddressValid(ctx, draft.Destination)
	if err != nil {
		return 0, err
	}
	if !valid {
		return 0, errors.Join(transaction.ErrInvalidAddress, fmt.Errorf("destination %q", draft.Destination))
	}

	raw, err := l.units.ToRaw(ctx, draft.Amount)
	switch {
	case errors.Is(err, units.ErrInvalidAmount):
		return 0, errors.Join(transaction.ErrInvalidAmount, err)
	case err != nil:
		return 0, err
	case raw.Sign() == 0:
		return 0, errors.Join(transaction.ErrInvalidAmount, fmt.Errorf("amount %q is zero", draft.Amount))
	}

	acc, err := l.accounts.Create(ctx)
	if err != nil {
		return 0, err
	}

	trx := transaction.Transaction{
		Status:      transaction.StatusCreated,
		Destination: draft.Destination,
		Amount:      strings.TrimSpace(draft.Amount),
		AmountRaw:   raw.String(),
		Account:     acc.Address,
		Currency:    currency,
		PrivateKey:  acc.PrivateKey,
		PublicKey:   acc.PublicKey,
		Created:     time.Now(),
	}
	id, err := l.store.InsertTransaction(ctx, &trx)
	if err != nil {
		return 0, err
	}
	l.log.Info(fmt.Sprintf("transaction [ %d ] created, %s %s to %s paid in to %s", id, trx.Amount, currency, trx.Destination, trx.Account))
	return id, nil
}

// Get reads the transaction.
func (l *Ledger) Get(ctx context.Context, id int64) (transaction.Transaction, error) {
	return l.store.ReadTransaction(ctx, id)
}

// Received returns everything ever credited to the transaction account in raw units, received or
// still pending. Funds forwarded or refunded since are still counted.
func (l *Ledger) Received(ctx context.Context, id int64) (*big.Int, error) {
	trx, err := l.store.ReadTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	return l.query.TotalReceived(ctx, trx.Account)
}

// AwaitPayment marks the transaction waiting and waits until the account receives the amount, the
// timeout elapses or cancel is closed. A sufficient payment moves the transaction to pending, anything
// else to expired. A transaction past waiting is reported as it is without waiting.
func (l *Ledger) AwaitPayment(ctx context.Context, id int64, timeout time.Duration, cancel <-chan struct{}) (Result, error) {
	if timeout <= 0 {
		timeout = l.timeout
	}

	trx, target, ok, err := l.beginWait(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		pair, err := l.query.Balance(ctx, trx.Account)
		if err != nil {
			return Result{}, err
		}
		return Result{Status: trx.Status, Received: pair}, nil
	}

	pair := l.waiter.Wait(ctx, watcher.Request{Address: trx.Account, Target: target, Timeout: timeout, Cancel: cancel})

	unlock := l.locks.Lock(id)
	defer unlock()

	next := transaction.StatusExpired
	if pair.Covers(target) {
		next = transaction.StatusPending
	}
	status, err := l.advance(ctx, id, next)
	if err != nil {
		return Result{}, err
	}
	l.log.Info(fmt.Sprintf("transaction [ %d ] wait finished with %s of %s raw, status %s", id, pair.Total(), target, status))
	return Result{Status: status, Received: pair}, nil
}

func (l *Ledger) beginWait(ctx context.Context, id int64) (transaction.Transaction, *big.Int, bool, error) {
	unlock := l.locks.Lock(id)
	defer unlock()

	trx, err := l.store.ReadTransaction(ctx, id)
	if err != nil {
		return trx, nil, false, err
	}
	if trx.Status != transaction.StatusCreated && trx.Status != transaction.StatusWaiting {
		return trx, nil, false, nil
	}
	target, err := trx.Raw()
	if err != nil {
		return trx, nil, false, err
	}
	if _, err := l.advance(ctx, id, transaction.StatusWaiting); err != nil {
		return trx, nil, false, err
	}
	return trx, target, true, nil
}

// Process receives everything pending, forwards the amount to the destination, refunds the remainder
// to the senders and marks the transaction complete. Processing a complete transaction does nothing.
func (l *Ledger) Process(ctx context.Context, id int64) error {
	unlock := l.locks.Lock(id)
	defer unlock()

	trx, err := l.store.ReadTransaction(ctx, id)
	if err != nil {
		return err
	}
	if trx.Status == transaction.StatusComplete {
		return nil
	}
	if !trx.Status.CanTransition(transaction.StatusComplete) {
		return errors.Join(transaction.ErrInvalidTransition, fmt.Errorf("transaction [ %d ] cannot be processed in status %s", id, trx.Status))
	}
	amount, err := trx.Raw()
	if err != nil {
		return err
	}

	sent, err := l.sweeper.SweepTo(ctx, trx.PrivateKey, trx.Destination, amount, false)
	if err != nil {
		return err
	}
	refunded, err := l.sweeper.RefundAccount(ctx, trx.PrivateKey, trx.Destination)
	if err != nil {
		return err
	}
	if _, err := l.advance(ctx, id, transaction.StatusComplete); err != nil {
		return err
	}
	l.log.Info(fmt.Sprintf("transaction [ %d ] complete, forwarded %s raw, refunded %s raw", id, sent, refunded))
	return nil
}

// Refund sends the whole account balance back to the senders. A complete transaction keeps its status.
func (l *Ledger) Refund(ctx context.Context, id int64) error {
	unlock := l.locks.Lock(id)
	defer unlock()

	trx, err := l.store.ReadTransaction(ctx, id)
	if err != nil {
		return err
	}
	refunded, err := l.sweeper.RefundAccount(ctx, trx.PrivateKey, trx.Destination)
	if err != nil {
		return err
	}

	status := trx.Status
	if trx.Status.CanTransition(transaction.StatusRefunded) {
		if status, err = l.advance(ctx, id, transaction.StatusRefunded); err != nil {
			return err
		}
	}
	l.log.Info(fmt.Sprintf("transaction [ %d ] refunded %s raw, status %s", id, refunded, status))
	return nil
}

// ForceProcess forwards at most the amount, limited to what the account holds, refunds the remainder
// and marks the transaction forced. A complete transaction keeps its status.
func (l *Ledger) ForceProcess(ctx context.Context, id int64) error {
	unlock := l.locks.Lock(id)
	defer unlock()

	trx, err := l.store.ReadTransaction(ctx, id)
	if err != nil {
		return err
	}
	if trx.Status == transaction.StatusPurged {
		return errors.Join(transaction.ErrInvalidTransition, fmt.Errorf("transaction [ %d ] is purged", id))
	}
	amount, err := trx.Raw()
	if err != nil {
		return err
	}

	sent, err := l.sweeper.SweepTo(ctx, trx.PrivateKey, trx.Destination, amount, true)
	if err != nil {
		return err
	}
	refunded, err := l.sweeper.RefundAccount(ctx, trx.PrivateKey, trx.Destination)
	if err != nil {
		return err
	}

	status := trx.Status
	if trx.Status.CanTransition(transaction.StatusForce) {
		if status, err = l.advance(ctx, id, transaction.StatusForce); err != nil {
			return err
		}
	}
	l.log.Warn(fmt.Sprintf("transaction [ %d ] force processed, forwarded %s raw, refunded %s raw, status %s", id, sent, refunded, status))
	return nil
}

// CheckExchanges reports whether any sender paying in to the transaction account is a whitelisted exchange.
func (l *Ledger) CheckExchanges(ctx context.Context, id int64) (bool, error) {
	if len(l.exchanges) == 0 {
		return false, nil
	}
	trx, err := l.store.ReadTransaction(ctx, id)
	if err != nil {
		return false, err
	}
	senders, err := l.sweeper.Senders(ctx, trx.PrivateKey)
	if err != nil {
		return false, err
	}
	for _, s := range senders {
		if _, ok := l.exchanges[s]; ok {
			return true, nil
		}
	}
	return false, nil
}

// RefundByAccount refunds the transaction paid in to the address.
func (l *Ledger) RefundByAccount(ctx context.Context, addr string) error {
	trx, err := l.store.ReadTransactionByAccount(ctx, addr)
	if err != nil {
		return err
	}
	return l.Refund(ctx, trx.ID)
}

// ProcessByAccount processes the transaction paid in to the address.
func (l *Ledger) ProcessByAccount(ctx context.Context, addr string) error {
	trx, err := l.store.ReadTransactionByAccount(ctx, addr)
	if err != nil {
		return err
	}
	return l.Process(ctx, trx.ID)
}

// advance moves the transaction to the status through the conditional store update and returns the
// status the transaction ends in. A transaction already in the status is left untouched.
func (l *Ledger) advance(ctx context.Context, id int64, next transaction.Status) (transaction.Status, error) {
	changed, err := l.store.UpdateStatus(ctx, id, next)
	if err != nil {
		return "", err
	}
	if changed {
		return next, nil
	}
	trx, err := l.store.ReadTransaction(ctx, id)
	if err != nil {
		return "", err
	}
	if trx.Status == next {
		return next, nil
	}
	if next == transaction.StatusPending || next == transaction.StatusExpired {
		// the wait lost the race against another transition, report what the transaction became
		return trx.Status, nil
	}
	return trx.Status, errors.Join(
		transaction.ErrInvalidTransition,
		fmt.Errorf("transaction [ %d ] cannot move from %s to %s", id, trx.Status, next),
	)
}
