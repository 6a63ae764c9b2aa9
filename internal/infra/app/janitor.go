package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CounterSweeper removes elapsed rate limit windows.
type CounterSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// RedirectPurger deletes redirects that stopped resolving.
type RedirectPurger interface {
	PurgeExpiredRedirects(ctx context.Context) (int, error)
}

// Janitor runs periodic housekeeping until its context is cancelled.
type Janitor struct {
	sweeper    CounterSweeper
	purger     RedirectPurger
	sweepEvery time.Duration
	purgeEvery time.Duration
	logger     *zap.Logger
}

// NewJanitor builds a janitor. A non-positive interval disables that task.
func NewJanitor(sweeper CounterSweeper, sweepEvery time.Duration, purger RedirectPurger, purgeEvery time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		sweeper:    sweeper,
		purger:     purger,
		sweepEvery: sweepEvery,
		purgeEvery: purgeEvery,
		logger:     logger,
	}
}

// Run blocks until ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	sweepC, stopSweep := ticker(j.sweepEvery, j.sweeper != nil)
	defer stopSweep()
	purgeC, stopPurge := ticker(j.purgeEvery, j.purger != nil)
	defer stopPurge()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sweepC:
			removed, err := j.sweeper.Sweep(ctx)
			if err != nil {
				j.logger.Warn("rate limit sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				j.logger.Debug("rate limit counters swept", zap.Int("removed", removed))
			}
		case <-purgeC:
			removed, err := j.purger.PurgeExpiredRedirects(ctx)
			if err != nil {
				j.logger.Warn("redirect purge failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				j.logger.Info("expired username redirects purged", zap.Int("removed", removed))
			}
		}
	}
}

func ticker(every time.Duration, enabled bool) (<-chan time.Time, func()) {
	if !enabled || every <= 0 {
		return nil, func() {}
	}
	t := time.NewTicker(every)
	return t.C, t.Stop
}
