package localcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/transaction"
)

var ErrAccountTaken = errors.New("account already belongs to a transaction")

// Config contains the in-memory store configuration.
type Config struct {
	MaxLen int `yaml:"max_len"`
}

// TransactionCache keeps transactions in memory. It serves the same store contract as the
// database repositories and backs development runs against the node emulator and tests.
type TransactionCache struct {
	mux       sync.RWMutex
	trxs      map[int64]transaction.Transaction
	byAccount map[string]int64
	paypal    map[int64]transaction.PayPalTransaction
	next      int64
	maxLen    int
}

// NewTransactionCache creates a new TransactionCache according to Config.
func NewTransactionCache(cfg Config) *TransactionCache {
	if cfg.MaxLen < 1000 {
		cfg.MaxLen = 1000
	}
	return &TransactionCache{
		trxs:      make(map[int64]transaction.Transaction),
		byAccount: make(map[string]int64),
		paypal:    make(map[int64]transaction.PayPalTransaction),
		maxLen:    cfg.MaxLen,
	}
}

// InsertTransaction stores the transaction under a new id.
func (c *TransactionCache) InsertTransaction(_ context.Context, trx *transaction.Transaction) (int64, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.byAccount[trx.Account]; ok {
		return 0, errors.Join(ErrAccountTaken, fmt.Errorf("account [ %s ]", trx.Account))
	}
	if len(c.trxs) == c.maxLen {
		return 0, fmt.Errorf("cannot add to cache, max size of cache of [ %v ] has been reached", c.maxLen)
	}
	if trx.Created.IsZero() {
		trx.Created = time.Now()
	}
	c.next++
	trx.ID = c.next
	c.trxs[trx.ID] = *trx
	c.byAccount[trx.Account] = trx.ID
	return trx.ID, nil
}

// ReadTransaction reads the transaction of the id.
func (c *TransactionCache) ReadTransaction(_ context.Context, id int64) (transaction.Transaction, error) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	trx, ok := c.trxs[id]
	if !ok {
		return transaction.Transaction{}, repository.ErrNotFound
	}
	return trx, nil
}

// ReadTransactionByAccount reads the transaction paid in to the account.
func (c *TransactionCache) ReadTransactionByAccount(ctx context.Context, account string) (transaction.Transaction, error) {
	c.mux.RLock()
	id, ok := c.byAccount[account]
	c.mux.RUnlock()
	if !ok {
		return transaction.Transaction{}, repository.ErrNotFound
	}
	return c.ReadTransaction(ctx, id)
}

// UpdateStatus moves the transaction to the status when the transition is allowed and the status differs.
func (c *TransactionCache) UpdateStatus(_ context.Context, id int64, status transaction.Status) (bool, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	trx, ok := c.trxs[id]
	if !ok {
		return false, nil
	}
	if trx.Status == status || !trx.Status.CanTransition(status) {
		return false, nil
	}
	trx.Status = status
	c.trxs[id] = trx
	return true, nil
}

// ReadOpenTransactions reads transactions created after since whose status the cleanup sweep re-examines.
func (c *TransactionCache) ReadOpenTransactions(_ context.Context, since time.Time) ([]transaction.Transaction, error) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	var open []transaction.Transaction
	for _, trx := range c.trxs {
		if trx.Status.Open() && !trx.Created.Before(since) {
			open = append(open, trx)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open, nil
}

// PurgeTransactions marks transactions created before the time, other than complete or pending, as purged.
func (c *TransactionCache) PurgeTransactions(_ context.Context, before time.Time) (int64, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	var n int64
	for id, trx := range c.trxs {
		switch trx.Status {
		case transaction.StatusComplete, transaction.StatusPending, transaction.StatusPurged:
			continue
		}
		if trx.Created.Before(before) {
			trx.Status = transaction.StatusPurged
			c.trxs[id] = trx
			n++
		}
	}
	return n, nil
}

// InsertPayPal stores the PayPal transaction under a new id.
func (c *TransactionCache) InsertPayPal(_ context.Context, p *transaction.PayPalTransaction) (int64, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if p.Created.IsZero() {
		p.Created = time.Now()
	}
	c.next++
	p.ID = c.next
	c.paypal[p.ID] = *p
	return p.ID, nil
}

// ReadStalePayPal reads PayPal transactions still created before the time.
func (c *TransactionCache) ReadStalePayPal(_ context.Context, before time.Time) ([]transaction.PayPalTransaction, error) {
	c.mux.RLock()
	defer c.mux.RUnlock()
	var stale []transaction.PayPalTransaction
	for _, p := range c.paypal {
		if p.Status == transaction.PayPalCreated && p.Created.Before(before) {
			stale = append(stale, p)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })
	return stale, nil
}

// DeletePayPal deletes the PayPal transaction of the id.
func (c *TransactionCache) DeletePayPal(_ context.Context, id int64) error {
	c.mux.Lock()
	defer c.mux.Unlock()
	if _, ok := c.paypal[id]; !ok {
		return repository.ErrNotFound
	}
	delete(c.paypal, id)
	return nil
}
