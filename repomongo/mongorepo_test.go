//go:build integration

package repomongo

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/transaction"
)

func connect(t *testing.T) *DataBase {
	ctx := context.Background()
	godotenv.Load("../.env")
	user := os.Getenv("MONGO_DB_USER")
	passwd := os.Getenv("MONGO_DB_PASSWORD")
	dbName := os.Getenv("MONGO_DB_NAME")

	db, err := Connect(ctx, fmt.Sprintf("mongodb://%s:%s@localhost:27017", user, passwd), dbName)
	require.NoError(t, err)
	t.Cleanup(func() { db.Disconnect(ctx) })
	require.NoError(t, db.RunMigration(ctx))
	return db
}

func TestTransactionLifecycle(t *testing.T) {
	ctx := context.Background()
	db := connect(t)

	trx := transaction.Transaction{
		Status:      transaction.StatusCreated,
		Destination: "nano_dest",
		Amount:      "1",
		AmountRaw:   "1000000",
		Account:     fmt.Sprintf("nano_%d", time.Now().UnixNano()),
		Currency:    "rai",
		PrivateKey:  "KEY",
	}
	id, err := db.InsertTransaction(ctx, &trx)
	require.NoError(t, err)

	read, err := db.ReadTransactionByAccount(ctx, trx.Account)
	require.NoError(t, err)
	assert.Equal(t, id, read.ID)
	assert.Equal(t, "KEY", read.PrivateKey)

	changed, err := db.UpdateStatus(ctx, id, transaction.StatusWaiting)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = db.UpdateStatus(ctx, id, transaction.StatusWaiting)
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = db.UpdateStatus(ctx, id, transaction.StatusComplete)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = db.ReadTransaction(ctx, -1)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestPurgeAndStalePayPal(t *testing.T) {
	ctx := context.Background()
	db := connect(t)

	old := transaction.Transaction{
		Status:  transaction.StatusCreated,
		Account: fmt.Sprintf("nano_old_%d", time.Now().UnixNano()),
		Created: time.Now().Add(-72 * time.Hour),
	}
	id, err := db.InsertTransaction(ctx, &old)
	require.NoError(t, err)

	_, err = db.PurgeTransactions(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	read, err := db.ReadTransaction(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, transaction.StatusPurged, read.Status)

	p := transaction.PayPalTransaction{Status: transaction.PayPalCreated, Created: time.Now().Add(-72 * time.Hour)}
	pid, err := db.InsertPayPal(ctx, &p)
	require.NoError(t, err)
	stale, err := db.ReadStalePayPal(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.NotEmpty(t, stale)
	require.NoError(t, db.DeletePayPal(ctx, pid))
	assert.ErrorIs(t, db.DeletePayPal(ctx, pid), repository.ErrNotFound)
}
