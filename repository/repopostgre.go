package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

var (
	ErrInsertFailed   = errors.New("insert failed")
	ErrSelectFailed   = errors.New("select failed")
	ErrUpdateFailed   = errors.New("update failed")
	ErrRemoveFailed   = errors.New("remove failed")
	ErrScanFailed     = errors.New("scan failed")
	ErrNotFound       = errors.New("record not found")
	ErrUnknownTable   = errors.New("table is not known")
	ErrEmptyFields    = errors.New("no fields given")
	ErrMigrationFaild = errors.New("migration failed")
)

// DBConfig contains configuration for the database.
type DBConfig struct {
	ConnStr      string `yaml:"conn_str"`      // ConnStr is the connection string to the database.
	DatabaseName string `yaml:"database_name"` // DatabaseName is the name of the database.
	IsSSL        bool   `yaml:"is_ssl"`        // IsSSL is the flag that indicates if the connection should be encrypted.
}

// DataBase provides database access for read, write and delete of repository entities.
type DataBase struct {
	inner *sql.DB
}

// Connect creates new connection to the repository and returns pointer to the DataBase.
func Connect(ctx context.Context, cfg DBConfig) (*DataBase, error) {
	sslMode := "sslmode=disable"
	if cfg.IsSSL {
		sslMode = "sslmode=require"
	}
	db, err := sql.Open("postgres", fmt.Sprintf("%s/%s?%s", cfg.ConnStr, cfg.DatabaseName, sslMode))
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &DataBase{inner: db}, nil
}

// Disconnect disconnects user from database.
func (db *DataBase) Disconnect(ctx context.Context) error {
	return db.inner.Close()
}

// Ping checks if the connection to the database is still alive.
func (db *DataBase) Ping(ctx context.Context) error {
	return db.inner.PingContext(ctx)
}
