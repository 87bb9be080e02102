package watcher

import (
	"context"
	"time"

	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/logger"
)

// Poll checks the balance in a loop. The delay between checks starts at the initial delay and
// doubles on every sleep once more than half of the timeout elapsed.
type Poll struct {
	src     BalanceSource
	initial time.Duration
	log     logger.Logger
}

// NewPoll creates a new Poll strategy.
func NewPoll(src BalanceSource, initial time.Duration, log logger.Logger) *Poll {
	if initial <= 0 {
		initial = defaultInitialDelay
	}
	return &Poll{src: src, initial: initial, log: log}
}

// Wait implements Strategy.
func (p *Poll) Wait(ctx context.Context, req Request) ledger.AmountPair {
	last := ledger.Zero()
	start := time.Now()
	deadline := start.Add(req.Timeout)
	delay := p.initial

	for {
		if check(ctx, p.src, p.log, req, &last) {
			return last
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return last
		}
		if time.Since(start) > req.Timeout/2 {
			delay *= 2
		}
		sleep := delay
		if sleep > remaining {
			sleep = remaining
		}

		if !pause(ctx, req.Cancel, sleep) {
			return last
		}
	}
}

// pause sleeps for d and reports false when interrupted by the context or the cancel channel.
func pause(ctx context.Context, cancel <-chan struct{}, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-cancel:
		return false
	case <-t.C:
		return true
	}
}
