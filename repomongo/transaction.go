package repomongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/transaction"
)

// InsertTransaction persists the transaction and returns the id assigned to it.
func (db DataBase) InsertTransaction(ctx context.Context, trx *transaction.Transaction) (int64, error) {
	id, err := db.nextID(ctx, transactionsCollection)
	if err != nil {
		return 0, err
	}
	if trx.Created.IsZero() {
		trx.Created = time.Now()
	}
	trx.ID = id
	if _, err := db.inner.Collection(transactionsCollection).InsertOne(ctx, trx); err != nil {
		return 0, errors.Join(repository.ErrInsertFailed, err)
	}
	return id, nil
}

// ReadTransaction reads the transaction of the id.
func (db DataBase) ReadTransaction(ctx context.Context, id int64) (transaction.Transaction, error) {
	var trx transaction.Transaction
	if err := db.inner.Collection(transactionsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(&trx); err != nil {
		return trx, notFound(err)
	}
	return trx, nil
}

// ReadTransactionByAccount reads the transaction paid in to the account.
func (db DataBase) ReadTransactionByAccount(ctx context.Context, account string) (transaction.Transaction, error) {
	var trx transaction.Transaction
	if err := db.inner.Collection(transactionsCollection).FindOne(ctx, bson.M{"account": account}).Decode(&trx); err != nil {
		return trx, notFound(err)
	}
	return trx, nil
}

// UpdateStatus moves the transaction to the status only when the stored status differs and is allowed to
// move there. It reports whether the record changed.
func (db DataBase) UpdateStatus(ctx context.Context, id int64, status transaction.Status) (bool, error) {
	res, err := db.inner.Collection(transactionsCollection).UpdateOne(
		ctx,
		bson.M{"_id": id, "status": bson.M{"$ne": status, "$in": status.Predecessors()}},
		bson.M{"$set": bson.M{"status": status}},
	)
	if err != nil {
		return false, errors.Join(repository.ErrUpdateFailed, err)
	}
	return res.ModifiedCount == 1, nil
}

// ReadOpenTransactions reads transactions created after since whose status the cleanup sweep re-examines.
func (db DataBase) ReadOpenTransactions(ctx context.Context, since time.Time) ([]transaction.Transaction, error) {
	open := []transaction.Status{
		transaction.StatusComplete, transaction.StatusPending,
		transaction.StatusRefunded, transaction.StatusExpired,
	}
	curs, err := db.inner.Collection(transactionsCollection).Find(
		ctx,
		bson.M{"status": bson.M{"$in": open}, "created": bson.M{"$gte": since}},
		options.Find().SetSort(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, errors.Join(repository.ErrSelectFailed, err)
	}
	var trxs []transaction.Transaction
	if err := curs.All(ctx, &trxs); err != nil {
		return nil, errors.Join(repository.ErrScanFailed, err)
	}
	return trxs, nil
}

// PurgeTransactions marks every transaction created before the time, other than complete or pending, as purged.
// It returns the number of purged transactions.
func (db DataBase) PurgeTransactions(ctx context.Context, before time.Time) (int64, error) {
	keep := []transaction.Status{transaction.StatusComplete, transaction.StatusPending, transaction.StatusPurged}
	res, err := db.inner.Collection(transactionsCollection).UpdateMany(
		ctx,
		bson.M{"created": bson.M{"$lt": before}, "status": bson.M{"$nin": keep}},
		bson.M{"$set": bson.M{"status": transaction.StatusPurged}},
	)
	if err != nil {
		return 0, errors.Join(repository.ErrUpdateFailed, err)
	}
	return res.ModifiedCount, nil
}

// InsertPayPal persists the PayPal transaction and returns the id assigned to it.
func (db DataBase) InsertPayPal(ctx context.Context, p *transaction.PayPalTransaction) (int64, error) {
	id, err := db.nextID(ctx, paypalCollection)
	if err != nil {
		return 0, err
	}
	if p.Created.IsZero() {
		p.Created = time.Now()
	}
	p.ID = id
	if _, err := db.inner.Collection(paypalCollection).InsertOne(ctx, p); err != nil {
		return 0, errors.Join(repository.ErrInsertFailed, err)
	}
	return id, nil
}

// ReadStalePayPal reads PayPal transactions still created before the time.
func (db DataBase) ReadStalePayPal(ctx context.Context, before time.Time) ([]transaction.PayPalTransaction, error) {
	curs, err := db.inner.Collection(paypalCollection).Find(
		ctx,
		bson.M{"status": transaction.PayPalCreated, "created": bson.M{"$lt": before}},
		options.Find().SetSort(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, errors.Join(repository.ErrSelectFailed, err)
	}
	var stale []transaction.PayPalTransaction
	if err := curs.All(ctx, &stale); err != nil {
		return nil, errors.Join(repository.ErrScanFailed, err)
	}
	return stale, nil
}

// DeletePayPal deletes the PayPal transaction of the id.
func (db DataBase) DeletePayPal(ctx context.Context, id int64) error {
	res, err := db.inner.Collection(paypalCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Join(repository.ErrRemoveFailed, err)
	}
	if res.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
