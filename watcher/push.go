package watcher

import (
	"context"
	"time"

	"github.com/bartossh/Paygate/ledger"
	"github.com/bartossh/Paygate/logger"
)

// Push re-checks the balance on every node notification about the address. A slow safety re-check
// covers notifications lost on the way.
type Push struct {
	src      BalanceSource
	notifier Notifier
	safety   time.Duration
	log      logger.Logger
}

// NewPush creates a new Push strategy.
func NewPush(src BalanceSource, notifier Notifier, safety time.Duration, log logger.Logger) *Push {
	if safety <= 0 {
		safety = defaultSafetyCheck
	}
	return &Push{src: src, notifier: notifier, safety: safety, log: log}
}

// Wait implements Strategy.
func (p *Push) Wait(ctx context.Context, req Request) ledger.AmountPair {
	last := ledger.Zero()

	sub := p.notifier.Subscribe()
	defer sub.Cancel()

	if check(ctx, p.src, p.log, req, &last) || req.Timeout <= 0 {
		return last
	}

	timeout := time.NewTimer(req.Timeout)
	defer timeout.Stop()
	safety := time.NewTicker(p.safety)
	defer safety.Stop()

	for {
		select {
		case <-ctx.Done():
			return last
		case <-req.Cancel:
			return last
		case <-timeout.C:
			return last
		case <-safety.C:
			if check(ctx, p.src, p.log, req, &last) {
				return last
			}
		case n, ok := <-sub.Channel():
			if !ok {
				return last
			}
			if n.Concerns(req.Address) && check(ctx, p.src, p.log, req, &last) {
				return last
			}
		}
	}
}
