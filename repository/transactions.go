package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/bartossh/Paygate/transaction"
)

const transactionColumns = "id, status, destination, amount, amount_raw, account, currency, private_key, public_key, created"

// InsertTransaction persists the transaction and returns the id assigned to it.
func (db *DataBase) InsertTransaction(ctx context.Context, trx *transaction.Transaction) (int64, error) {
	if trx.Created.IsZero() {
		trx.Created = time.Now()
	}
	return db.Insert(ctx, tableTransactions, Fields{
		"status":      string(trx.Status),
		"destination": trx.Destination,
		"amount":      trx.Amount,
		"amount_raw":  trx.AmountRaw,
		"account":     trx.Account,
		"currency":    trx.Currency,
		"private_key": trx.PrivateKey,
		"public_key":  trx.PublicKey,
		"created":     trx.Created,
	})
}

// ReadTransaction reads the transaction of the id.
func (db *DataBase) ReadTransaction(ctx context.Context, id int64) (transaction.Transaction, error) {
	return db.readTransaction(ctx, "id = $1", id)
}

// ReadTransactionByAccount reads the transaction paid in to the account.
func (db *DataBase) ReadTransactionByAccount(ctx context.Context, account string) (transaction.Transaction, error) {
	return db.readTransaction(ctx, "account = $1", account)
}

func (db *DataBase) readTransaction(ctx context.Context, cond string, arg any) (transaction.Transaction, error) {
	row := db.inner.QueryRowContext(ctx, fmt.Sprintf("SELECT %s FROM transactions WHERE %s", transactionColumns, cond), arg)
	trx, err := scanTransaction(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return transaction.Transaction{}, ErrNotFound
	case err != nil:
		return transaction.Transaction{}, errors.Join(ErrSelectFailed, err)
	}
	return trx, nil
}

// UpdateStatus moves the transaction to the status when the stored status is allowed to move there.
// A transaction already in the status is not written. It reports whether the record changed.
func (db *DataBase) UpdateStatus(ctx context.Context, id int64, status transaction.Status) (bool, error) {
	from := status.Predecessors()
	if len(from) == 0 {
		return false, nil
	}
	prev := make([]string, 0, len(from))
	for _, s := range from {
		prev = append(prev, string(s))
	}
	return db.exec(
		ctx, ErrUpdateFailed,
		"UPDATE transactions SET status = $1 WHERE id = $2 AND status IS DISTINCT FROM $1 AND status = ANY($3)",
		string(status), id, pq.Array(prev),
	)
}

// ReadOpenTransactions reads transactions created after since whose status the cleanup sweep re-examines.
func (db *DataBase) ReadOpenTransactions(ctx context.Context, since time.Time) ([]transaction.Transaction, error) {
	open := []string{
		string(transaction.StatusComplete), string(transaction.StatusPending),
		string(transaction.StatusRefunded), string(transaction.StatusExpired),
	}
	rows, err := db.inner.QueryContext(
		ctx,
		fmt.Sprintf("SELECT %s FROM transactions WHERE status = ANY($1) AND created >= $2 ORDER BY id", transactionColumns),
		pq.Array(open), since,
	)
	if err != nil {
		return nil, errors.Join(ErrSelectFailed, err)
	}
	defer rows.Close()

	var trxs []transaction.Transaction
	for rows.Next() {
		trx, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Join(ErrScanFailed, err)
		}
		trxs = append(trxs, trx)
	}
	return trxs, rows.Err()
}

// PurgeTransactions marks every transaction created before the time, other than complete or pending, as purged.
// It returns the number of purged transactions.
func (db *DataBase) PurgeTransactions(ctx context.Context, before time.Time) (int64, error) {
	keep := []string{
		string(transaction.StatusComplete), string(transaction.StatusPending), string(transaction.StatusPurged),
	}
	res, err := db.inner.ExecContext(
		ctx,
		"UPDATE transactions SET status = $1 WHERE created < $2 AND NOT (status = ANY($3))",
		string(transaction.StatusPurged), before, pq.Array(keep),
	)
	if err != nil {
		return 0, errors.Join(ErrUpdateFailed, err)
	}
	return res.RowsAffected()
}

// InsertPayPal persists the PayPal transaction and returns the id assigned to it.
func (db *DataBase) InsertPayPal(ctx context.Context, p *transaction.PayPalTransaction) (int64, error) {
	if p.Created.IsZero() {
		p.Created = time.Now()
	}
	return db.Insert(ctx, tablePayPal, Fields{
		"status":     string(p.Status),
		"amount":     p.Amount,
		"currency":   p.Currency,
		"email":      p.Email,
		"payment_id": p.PaymentID,
		"created":    p.Created,
	})
}

// ReadStalePayPal reads PayPal transactions still created before the time.
func (db *DataBase) ReadStalePayPal(ctx context.Context, before time.Time) ([]transaction.PayPalTransaction, error) {
	rows, err := db.Query(
		ctx,
		"SELECT id, status, amount, currency, email, payment_id, created FROM paypal_transactions WHERE status = $1 AND created < $2 ORDER BY id",
		string(transaction.PayPalCreated), before,
	)
	if err != nil {
		return nil, err
	}
	stale := make([]transaction.PayPalTransaction, 0, len(rows))
	for _, r := range rows {
		p, err := payPalFromRow(r)
		if err != nil {
			return nil, errors.Join(ErrScanFailed, err)
		}
		stale = append(stale, p)
	}
	return stale, nil
}

// DeletePayPal deletes the PayPal transaction of the id.
func (db *DataBase) DeletePayPal(ctx context.Context, id int64) error {
	ok, err := db.DeleteByKey(ctx, tablePayPal, "id", id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (transaction.Transaction, error) {
	var trx transaction.Transaction
	var status string
	err := s.Scan(
		&trx.ID, &status, &trx.Destination, &trx.Amount, &trx.AmountRaw,
		&trx.Account, &trx.Currency, &trx.PrivateKey, &trx.PublicKey, &trx.Created,
	)
	trx.Status = transaction.Status(status)
	return trx, err
}

func payPalFromRow(r Row) (transaction.PayPalTransaction, error) {
	var p transaction.PayPalTransaction
	var ok bool
	if p.ID, ok = r["id"].(int64); !ok {
		return p, fmt.Errorf("column id holds %T", r["id"])
	}
	if p.Created, ok = r["created"].(time.Time); !ok {
		return p, fmt.Errorf("column created holds %T", r["created"])
	}
	p.Status = transaction.PayPalStatus(fmt.Sprint(r["status"]))
	p.Amount = fmt.Sprint(r["amount"])
	p.Currency = fmt.Sprint(r["currency"])
	p.Email = fmt.Sprint(r["email"])
	p.PaymentID = fmt.Sprint(r["payment_id"])
	return p, nil
}
