package localcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/transaction"
)

func TestInsertReadUpdate(t *testing.T) {
	ctx := context.Background()
	c := NewTransactionCache(Config{})

	trx := transaction.Transaction{Status: transaction.StatusCreated, Account: "nano_a", AmountRaw: "1"}
	id, err := c.InsertTransaction(ctx, &trx)
	require.NoError(t, err)
	assert.Equal(t, id, trx.ID)

	_, err = c.InsertTransaction(ctx, &transaction.Transaction{Account: "nano_a"})
	assert.ErrorIs(t, err, ErrAccountTaken)

	changed, err := c.UpdateStatus(ctx, id, transaction.StatusWaiting)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = c.UpdateStatus(ctx, id, transaction.StatusWaiting)
	require.NoError(t, err)
	assert.False(t, changed)
	changed, err = c.UpdateStatus(ctx, id, transaction.StatusCreated)
	require.NoError(t, err)
	assert.False(t, changed)

	read, err := c.ReadTransactionByAccount(ctx, "nano_a")
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusWaiting, read.Status)

	_, err = c.ReadTransaction(ctx, 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestOpenAndPurge(t *testing.T) {
	ctx := context.Background()
	c := NewTransactionCache(Config{})
	now := time.Now()

	insert := func(account string, s transaction.Status, created time.Time) int64 {
		id, err := c.InsertTransaction(ctx, &transaction.Transaction{Account: account, Status: s, Created: created})
		require.NoError(t, err)
		return id
	}
	oldPending := insert("a", transaction.StatusPending, now.Add(-48*time.Hour))
	oldCreated := insert("b", transaction.StatusCreated, now.Add(-48*time.Hour))
	freshExpired := insert("c", transaction.StatusExpired, now)
	insert("d", transaction.StatusWaiting, now)

	open, err := c.ReadOpenTransactions(ctx, now.Add(-72*time.Hour))
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, oldPending, open[0].ID)
	assert.Equal(t, freshExpired, open[1].ID)

	n, err := c.PurgeTransactions(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	trx, err := c.ReadTransaction(ctx, oldCreated)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPurged, trx.Status)
	trx, err = c.ReadTransaction(ctx, oldPending)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPending, trx.Status)
}

func TestStalePayPal(t *testing.T) {
	ctx := context.Background()
	c := NewTransactionCache(Config{})

	old, err := c.InsertPayPal(ctx, &transaction.PayPalTransaction{Status: transaction.PayPalCreated, Created: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)
	_, err = c.InsertPayPal(ctx, &transaction.PayPalTransaction{Status: transaction.PayPalComplete, Created: time.Now().Add(-48 * time.Hour)})
	require.NoError(t, err)

	stale, err := c.ReadStalePayPal(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old, stale[0].ID)

	require.NoError(t, c.DeletePayPal(ctx, old))
	assert.ErrorIs(t, c.DeletePayPal(ctx, old), repository.ErrNotFound)
}
