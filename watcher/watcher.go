package watcher

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/logger"
	"github.com/bartossh/Paygate/providers"
	"github.com/bartossh/Paygate/reactive"
	"github.com/bartossh/Paygate/webhooks"
)

const (
	defaultInitialDelay = 5 * time.Second
	defaultSafetyCheck  = 30 * time.Second
)

const (
	activeWaitsGauge  = "watcher_active_waits"
	waitDurationHisto = "watcher_wait_duration"
)

// Config contains the balance wait configuration.
type Config struct {
	InitialDelay time.Duration `yaml:"initial_delay"` // First poll delay, doubled on every sleep past half of the timeout.
	SafetyCheck  time.Duration `yaml:"safety_check"`  // Interval of balance re-checks in push mode when no notification arrives.
}

func (c Config) withDefaults() Config {
	if c.InitialDelay <= 0 {
		c.InitialDelay = defaultInitialDelay
	}
	if c.SafetyCheck <= 0 {
		c.SafetyCheck = defaultSafetyCheck
	}
	return c
}

// Request describes a wait for the balance plus pending of Address to reach Target.
// Closing Cancel makes the wait return early.
type Request struct {
	Address string
	Target  *big.Int
	Timeout time.Duration
	Cancel  <-chan struct{}
}

// BalanceSource provides the balance and pending amount of an address.
type BalanceSource interface {
	Balance(ctx context.Context, addr string) (ledger.AmountPair, error)
}

// Notifier provides node activity notifications and tells whether they are currently flowing.
type Notifier interface {
	Active() bool
	Subscribe() *reactive.Subscriber[webhooks.Notification]
}

// Strategy waits for the balance. It always returns the last observed amount pair, also on timeout
// and cancellation, leaving the decision whether it is enough to the caller.
type Strategy interface {
	Wait(ctx context.Context, req Request) ledger.AmountPair
}

// check reads the balance and reports whether the target is reached. A failed read keeps the last pair.
func check(ctx context.Context, src BalanceSource, log logger.Logger, req Request, last *ledger.AmountPair) bool {
	pair, err := src.Balance(ctx, req.Address)
	if err != nil {
		log.Warn(fmt.Sprintf("balance check of %s failed: %s", req.Address, err))
		return false
	}
	*last = pair
	return pair.Covers(req.Target)
}

// Coordinator picks push mode while node notifications are active and poll mode otherwise.
type Coordinator struct {
	push     Strategy
	poll     Strategy
	notifier Notifier
	log      logger.Logger
	tele     providers.TelemetryProvider
}

// New creates a new Coordinator.
func New(cfg Config, src BalanceSource, notifier Notifier, log logger.Logger, tele providers.TelemetryProvider) *Coordinator {
	cfg = cfg.withDefaults()
	tele.CreateUpdateObservableGauge(activeWaitsGauge, "Number of balance waits in progress.")
	tele.CreateUpdateObservableHistogram(waitDurationHisto, "Balance wait duration in [ ms ].")
	return &Coordinator{
		push:     &Push{src: src, notifier: notifier, safety: cfg.SafetyCheck, log: log},
		poll:     &Poll{src: src, initial: cfg.InitialDelay, log: log},
		notifier: notifier,
		log:      log,
		tele:     tele,
	}
}

// Select returns the strategy matching the current node activity.
func (c *Coordinator) Select() Strategy {
	if c.notifier != nil && c.notifier.Active() {
		return c.push
	}
	return c.poll
}

// Wait waits until the balance plus pending of the address reaches the target, the timeout elapses,
// the request is canceled or the context is done, whichever happens first.
func (c *Coordinator) Wait(ctx context.Context, req Request) ledger.AmountPair {
	start := time.Now()
	c.tele.IncrementGauge(activeWaitsGauge)
	defer func() {
		c.tele.DecrementGauge(activeWaitsGauge)
		c.tele.RecordHistogramTime(waitDurationHisto, time.Since(start))
	}()

	s := c.Select()
	pair := s.Wait(ctx, req)
	c.log.Info(fmt.Sprintf(
		"wait [ %T ] for %s finished after %s with total %s of target %s",
		s, req.Address, time.Since(start).Round(time.Millisecond), pair.Total(), req.Target,
	))
	return pair
}
