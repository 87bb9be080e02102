package repository

import (
	"context"
	"errors"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS transactions (
		id          BIGSERIAL PRIMARY KEY,
		status      TEXT        NOT NULL,
		destination TEXT        NOT NULL,
		amount      TEXT        NOT NULL,
		amount_raw  TEXT        NOT NULL,
		account     TEXT        NOT NULL UNIQUE,
		currency    TEXT        NOT NULL,
		private_key TEXT        NOT NULL,
		public_key  TEXT        NOT NULL,
		created     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS transactions_status_created ON transactions (status, created)`,
	`CREATE TABLE IF NOT EXISTS paypal_transactions (
		id         BIGSERIAL PRIMARY KEY,
		status     TEXT        NOT NULL,
		amount     TEXT        NOT NULL,
		currency   TEXT        NOT NULL,
		email      TEXT        NOT NULL,
		payment_id TEXT        NOT NULL,
		created    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// RunMigration creates the tables and indexes missing in the database.
func (db *DataBase) RunMigration(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.inner.ExecContext(ctx, m); err != nil {
			return errors.Join(ErrMigrationFaild, err)
		}
	}
	return nil
}
