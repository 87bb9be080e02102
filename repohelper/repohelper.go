package repohelper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bartossh/Paygate/localcache"
	"github.com/bartossh/Paygate/repomongo"
	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/transaction"
)

const memoryScheme = "memory"

var (
	ErrDatabaseNotSupported = fmt.Errorf("database not supported")
)

// TransactionOperator abstracts transaction operations.
type TransactionOperator interface {
	InsertTransaction(ctx context.Context, trx *transaction.Transaction) (int64, error)
	ReadTransaction(ctx context.Context, id int64) (transaction.Transaction, error)
	ReadTransactionByAccount(ctx context.Context, account string) (transaction.Transaction, error)
	UpdateStatus(ctx context.Context, id int64, status transaction.Status) (bool, error)
	ReadOpenTransactions(ctx context.Context, since time.Time) ([]transaction.Transaction, error)
	PurgeTransactions(ctx context.Context, before time.Time) (int64, error)
}

// PayPalOperator abstracts PayPal transaction operations.
type PayPalOperator interface {
	InsertPayPal(ctx context.Context, p *transaction.PayPalTransaction) (int64, error)
	ReadStalePayPal(ctx context.Context, before time.Time) ([]transaction.PayPalTransaction, error)
	DeletePayPal(ctx context.Context, id int64) error
}

// Migrator abstracts migration operations.
type Migrator interface {
	RunMigration(ctx context.Context) error
}

// ConnectionCloser abstracts connection closing operations.
type ConnectionCloser interface {
	Disconnect(ctx context.Context) error
}

// RepositoryProvider is an interface that ensures that all required methods to run the gateway are implemented.
type RepositoryProvider interface {
	TransactionOperator
	PayPalOperator
	Migrator
	ConnectionCloser
}

// DBConfig contains configuration for the database.
type DBConfig struct {
	ConnStr      string `yaml:"conn_str"`      // ConnStr selects the database by its scheme: postgres, mongodb or memory.
	DatabaseName string `yaml:"database_name"` // DatabaseName is the name of the database.
	IsSSL        bool   `yaml:"is_ssl"`        // IsSSL requires an encrypted postgres connection.
	MaxLen       int    `yaml:"max_len"`       // MaxLen limits the number of transactions held in memory.
}

// Connect connects to the proper database and returns that connection.
func (cfg DBConfig) Connect(ctx context.Context) (RepositoryProvider, error) {
	switch {
	case strings.HasPrefix(cfg.ConnStr, "postgres"):
		return repository.Connect(ctx, repository.DBConfig{ConnStr: cfg.ConnStr, DatabaseName: cfg.DatabaseName, IsSSL: cfg.IsSSL})
	case strings.HasPrefix(cfg.ConnStr, "mongodb"):
		return repomongo.Connect(ctx, cfg.ConnStr, cfg.DatabaseName)
	case strings.HasPrefix(cfg.ConnStr, memoryScheme):
		return memory{localcache.NewTransactionCache(localcache.Config{MaxLen: cfg.MaxLen})}, nil
	}

	return nil, ErrDatabaseNotSupported
}

// memory serves development runs. Nothing survives a restart.
type memory struct {
	*localcache.TransactionCache
}

func (memory) RunMigration(context.Context) error { return nil }
func (memory) Disconnect(context.Context) error   { return nil }
