package wiring

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/pterm/pterm"

	"github.com/bartossh/Paygate/account"
	"github.com/bartossh/Paygate/block"
	"github.com/bartossh/Paygate/bookkeeping"
	"github.com/bartossh/Paygate/cleanup"
	"github.com/bartossh/Paygate/configuration"
	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/logging"
	"github.com/bartossh/Paygate/providers"
	"github.com/bartossh/Paygate/repohelper"
	"github.com/bartossh/Paygate/rpc"
	"github.com/bartossh/Paygate/stdoutwriter"
	"github.com/bartossh/Paygate/sweeper"
	"github.com/bartossh/Paygate/units"
	"github.com/bartossh/Paygate/watcher"
	"github.com/bartossh/Paygate/webhooks"
	"github.com/bartossh/Paygate/zincadapter"
)

// Stack is the set of connected components a gateway process runs on.
type Stack struct {
	DB      repohelper.RepositoryProvider
	Log     logger.Logger
	Hub     *webhooks.Hub
	Ledger  *bookkeeping.Ledger
	Janitor *cleanup.Janitor
}

// Writers returns the log writers for the service: standard output, zinc when configured and reachable,
// and the database when it keeps logs.
func Writers(cfg configuration.Configuration, db any) []io.Writer {
	writers := []io.Writer{stdoutwriter.Logger{}}
	if cfg.ZincLogger.Address != "" {
		zinc, err := zincadapter.New(cfg.ZincLogger)
		if err != nil {
			pterm.Warning.Println(fmt.Sprintf("zinc logger disabled: %s", err))
		} else {
			writers = append(writers, &zinc)
		}
	}
	if w, ok := db.(io.Writer); ok {
		writers = append(writers, w)
	}
	return writers
}

// Build connects the database, runs migrations and builds every component down from the node client.
// onFatal is called after a fatal log is written.
func Build(
	ctx context.Context, cfg configuration.Configuration, service string,
	tele providers.TelemetryProvider, onFatal func(error),
) (*Stack, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := cfg.Database.Connect(ctx)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigration(ctx); err != nil {
		return nil, errors.Join(err, db.Disconnect(ctx))
	}

	log := logging.New(service, func(err error) { pterm.Error.Println(err.Error()) }, onFatal, Writers(cfg, db)...)

	node, err := rpc.New(cfg.NodeRPC, log, tele)
	if err != nil {
		return nil, errors.Join(err, db.Disconnect(ctx))
	}

	query := ledger.New(node)
	accounts := account.New(node)
	builder := block.New(cfg.Block, node, query, accounts, log)
	hub := webhooks.New(cfg.Webhooks, log)
	waiter := watcher.New(cfg.Watcher, query, hub, log, tele)

	book, err := bookkeeping.New(
		cfg.Bookkeeper, db, units.New(node), accounts, query, waiter, sweeper.New(accounts, query, builder, log), log,
	)
	if err != nil {
		return nil, errors.Join(err, db.Disconnect(ctx))
	}

	janitor, err := cleanup.New(cfg.Cleanup, db, book, log, tele)
	if err != nil {
		return nil, errors.Join(err, db.Disconnect(ctx))
	}

	return &Stack{DB: db, Log: log, Hub: hub, Ledger: book, Janitor: janitor}, nil
}

// Close disconnects the database.
func (s *Stack) Close(ctx context.Context) error {
	return s.DB.Disconnect(ctx)
}
