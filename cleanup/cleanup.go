package cleanup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/providers"
	"github.com/bartossh/Paygate/repository"
	"github.com/bartossh/Paygate/transaction"
)

const (
	defaultInterval  = 10 * time.Minute
	defaultRetention = 24 * time.Hour
	defaultLookback  = 7 * 24 * time.Hour
)

const (
	sweepDurationHisto = "cleanup_sweep_duration"
	sweepFailuresGauge = "cleanup_sweep_failures"
	purgedGauge        = "cleanup_purged_transactions"
)

var ErrSweepInProgress = errors.New("cleanup sweep is already running")

// Store provides the records the janitor works on.
type Store interface {
	ReadOpenTransactions(ctx context.Context, since time.Time) ([]transaction.Transaction, error)
	PurgeTransactions(ctx context.Context, before time.Time) (int64, error)
	ReadStalePayPal(ctx context.Context, before time.Time) ([]transaction.PayPalTransaction, error)
	DeletePayPal(ctx context.Context, id int64) error
}

// Processor moves funds of a single transaction.
type Processor interface {
	CheckExchanges(ctx context.Context, id int64) (bool, error)
	ForceProcess(ctx context.Context, id int64) error
	Process(ctx context.Context, id int64) error
	Refund(ctx context.Context, id int64) error
}

// Config contains the cleanup sweep configuration.
type Config struct {
	Interval  time.Duration `yaml:"interval"`  // Pause between sweeps.
	Retention time.Duration `yaml:"retention"` // Age after which unsettled transactions are purged.
	Lookback  time.Duration `yaml:"lookback"`  // Age of the oldest open transaction that is still re-swept.
}

// Validate validates the cleanup configuration.
func (c Config) Validate() error {
	if c.Interval < 0 || c.Retention < 0 || c.Lookback < 0 {
		return errors.New("cleanup durations cannot be negative")
	}
	c = c.withDefaults()
	if c.Lookback < c.Retention {
		return fmt.Errorf("lookback %s is shorter than retention %s", c.Lookback, c.Retention)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = defaultInterval
	}
	if c.Retention == 0 {
		c.Retention = defaultRetention
	}
	if c.Lookback == 0 {
		c.Lookback = defaultLookback
	}
	return c
}

// Failure is a transaction the sweep could not settle.
type Failure struct {
	ID  int64
	Err error
}

// Report summarizes a single sweep.
type Report struct {
	Checked       int
	Forced        int
	Processed     int
	Refunded      int
	Purged        int64
	PayPalRemoved int
	Failures      []Failure
}

// Janitor re-sweeps open transactions and purges abandoned ones. Only one sweep runs at a time.
type Janitor struct {
	mux   sync.Mutex
	cfg   Config
	store Store
	proc  Processor
	log   logger.Logger
	tele  providers.TelemetryProvider
	now   func() time.Time
}

// New creates a new Janitor.
func New(cfg Config, store Store, proc Processor, log logger.Logger, tele providers.TelemetryProvider) (*Janitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tele.CreateUpdateObservableHistogram(sweepDurationHisto, "Cleanup sweep duration in [ ms ].")
	tele.CreateUpdateObservableGauge(sweepFailuresGauge, "Transactions the last cleanup sweep failed to settle.")
	tele.CreateUpdateObservableGauge(purgedGauge, "Transactions purged by cleanup sweeps.")
	return &Janitor{cfg: cfg.withDefaults(), store: store, proc: proc, log: log, tele: tele, now: time.Now}, nil
}

// Run sweeps every interval until the context is done.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()
	for {
		if _, err := j.Sweep(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
			j.log.Error(fmt.Sprintf("cleanup sweep failed: %s", err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep settles every open transaction, purges transactions older than the retention window that never
// settled and removes stale PayPal drafts. A failing transaction is reported and the sweep goes on.
func (j *Janitor) Sweep(ctx context.Context) (Report, error) {
	if !j.mux.TryLock() {
		return Report{}, ErrSweepInProgress
	}
	defer j.mux.Unlock()

	start := time.Now()
	defer func() { j.tele.RecordHistogramTime(sweepDurationHisto, time.Since(start)) }()

	now := j.now()
	cutoff := now.Add(-j.cfg.Retention)

	var report Report
	trxs, err := j.store.ReadOpenTransactions(ctx, now.Add(-j.cfg.Lookback))
	if err != nil {
		return report, err
	}
	for _, trx := range trxs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		if err := j.settle(ctx, trx, &report); err != nil {
			j.log.Error(fmt.Sprintf("cleanup of transaction [ %d ] in status %s failed: %s", trx.ID, trx.Status, err))
			report.Failures = append(report.Failures, Failure{ID: trx.ID, Err: err})
		}
	}

	report.Purged, err = j.store.PurgeTransactions(ctx, cutoff)
	if err != nil {
		return report, err
	}

	stale, err := j.store.ReadStalePayPal(ctx, cutoff)
	if err != nil {
		return report, err
	}
	for _, p := range stale {
		if err := j.store.DeletePayPal(ctx, p.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
			j.log.Error(fmt.Sprintf("removing stale paypal transaction [ %d ] failed: %s", p.ID, err))
			continue
		}
		report.PayPalRemoved++
	}

	j.tele.SetGauge(sweepFailuresGauge, float64(len(report.Failures)))
	j.tele.AddToGauge(purgedGauge, float64(report.Purged))
	j.log.Info(fmt.Sprintf(
		"cleanup checked %d, forced %d, processed %d, refunded %d, purged %d, paypal removed %d, failed %d",
		report.Checked, report.Forced, report.Processed, report.Refunded, report.Purged, report.PayPalRemoved, len(report.Failures),
	))
	return report, nil
}

func (j *Janitor) settle(ctx context.Context, trx transaction.Transaction, report *Report) error {
	exchange, err := j.proc.CheckExchanges(ctx, trx.ID)
	if err != nil {
		return err
	}
	if exchange {
		if err := j.proc.ForceProcess(ctx, trx.ID); err != nil {
			return err
		}
		report.Forced++
		return nil
	}

	switch trx.Status {
	case transaction.StatusPending:
		if err := j.proc.Process(ctx, trx.ID); err != nil {
			return err
		}
		report.Processed++
	case transaction.StatusRefunded, transaction.StatusExpired, transaction.StatusComplete:
		if err := j.proc.Refund(ctx, trx.ID); err != nil {
			return err
		}
		report.Refunded++
	}
	return nil
}
