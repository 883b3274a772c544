package ttl

import (
	"context"
	"time"

	"go.uber.org/zap"

	"local-cache/internal/logs"
	"local-cache/internal/metrics"
)

// Sweeper defines the minimal contract required by the cleaner.
// This keeps the cleaner decoupled from the coordinator implementation.
type Sweeper interface {
	SweepExpired(ctx context.Context, now time.Time) int
}

// Cleaner periodically sweeps expired records from every cached kind.
type Cleaner struct {
	sweeper  Sweeper
	interval time.Duration
	clock    func() time.Time
	logger   *logs.Logger
	metrics  *metrics.Registry
}

// NewCleaner creates a new instance of the sweep scheduler.
func NewCleaner(
	sweeper Sweeper,
	interval time.Duration,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Cleaner {
	return &Cleaner{
		sweeper:  sweeper,
		interval: interval,
		clock:    time.Now,
		logger:   logger,
		metrics:  reg,
	}
}

// WithClock replaces the wall clock used to stamp each sweep.
func (c *Cleaner) WithClock(clock func() time.Time) *Cleaner {
	if clock != nil {
		c.clock = clock
	}
	return c
}

// Start sweeps once, then on every tick until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (c *Cleaner) Start(ctx context.Context) {
	c.runOnce(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runOnce(ctx)
		case <-ctx.Done():
			c.logger.Debug("ttl cleaner stopped")
			return
		}
	}
}

// runOnce performs a single sweep with one consistent timestamp.
func (c *Cleaner) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	c.metrics.Inc(metrics.TTLCleanupRunsTotal)

	removed := c.sweeper.SweepExpired(ctx, c.clock())
	if removed > 0 {
		c.metrics.Add(metrics.TTLKeysRemovedTotal, int64(removed))
		c.logger.Debug("ttl cleaner removed expired records", zap.Int("removed", removed))
	}
}
