// Package cache coordinates expiry sweeps and full invalidation across the
// record stores of every entity kind.
package cache

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"local-cache/internal/entity"
	"local-cache/internal/logs"
	"local-cache/internal/metrics"
	"local-cache/internal/store"
	"local-cache/internal/ttl"
)

const tracerName = "local-cache/internal/cache"

const (
	opSweep = "delete_older_than"
	opClear = "clear_all"
)

// Result summarizes one sweep or clear across all kinds.
type Result struct {
	// Counts holds the rows removed per kind. Failed kinds report 0.
	Counts map[entity.Kind]int
	// Failed holds the storage error of every kind that could not be processed.
	Failed map[entity.Kind]error
	Total  int
	// Interrupted is set when cancellation stopped the run before every kind
	// was visited.
	Interrupted bool
}

func newResult() Result {
	return Result{
		Counts: make(map[entity.Kind]int, len(entity.Kinds())),
		Failed: make(map[entity.Kind]error),
	}
}

// OK reports whether every visited kind succeeded.
func (r Result) OK() bool {
	return len(r.Failed) == 0
}

// Coordinator runs maintenance over one record store per entity kind.
type Coordinator struct {
	tables   map[entity.Kind]store.Sweeper
	parallel bool
	logger   *logs.Logger
	metrics  *metrics.Registry
	tracer   trace.Tracer
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithParallel visits kinds concurrently instead of in fixed order.
func WithParallel() Option {
	return func(c *Coordinator) { c.parallel = true }
}

func WithLogger(logger *logs.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithMetrics(reg *metrics.Registry) Option {
	return func(c *Coordinator) { c.metrics = reg }
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) { c.tracer = tracer }
}

// NewCoordinator requires a store for every kind in entity.Kinds.
func NewCoordinator(tables map[entity.Kind]store.Sweeper, opts ...Option) (*Coordinator, error) {
	c := &Coordinator{
		tables: make(map[entity.Kind]store.Sweeper, len(tables)),
		logger: logs.NewLogger(0, logs.INFO),
		tracer: otel.Tracer(tracerName),
	}
	for _, kind := range entity.Kinds() {
		t, ok := tables[kind]
		if !ok || t == nil {
			return nil, &ttl.ConfigurationError{Kind: kind}
		}
		c.tables[kind] = t
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsExpired reports whether a record cached at cachedAt is stale at now.
func (c *Coordinator) IsExpired(cachedAt time.Time, lifetime time.Duration, now time.Time) bool {
	return ttl.IsExpired(cachedAt, lifetime, now)
}

// ExpirationCutoff returns the instant before which records are stale.
func (c *Coordinator) ExpirationCutoff(lifetime time.Duration, now time.Time) time.Time {
	return ttl.Cutoff(lifetime, now)
}

// CleanExpired deletes, for every kind, the records older than that kind's
// TTL as of now. A failing kind is reported in the result and does not stop
// the others.
func (c *Coordinator) CleanExpired(ctx context.Context, now time.Time) Result {
	ctx, span := c.tracer.Start(ctx, "cache.CleanExpired",
		trace.WithAttributes(attribute.String("cache.now", now.UTC().Format(time.RFC3339Nano))))
	defer span.End()

	c.metrics.Inc(metrics.SweepRunsTotal)

	res := c.each(ctx, opSweep, func(ctx context.Context, kind entity.Kind, t store.Sweeper) (int, error) {
		return t.DeleteOlderThan(ctx, ttl.Cutoff(ttl.MustFor(kind), now))
	})

	for kind, n := range res.Counts {
		if n > 0 {
			c.metrics.Add(metrics.PerKind(metrics.CacheExpiredTotal, string(kind)), int64(n))
			c.logger.Count("expired records removed",
				zap.String("kind", string(kind)), zap.Int("count", n))
		}
	}
	c.metrics.Add(metrics.SweepFailuresTotal, int64(len(res.Failed)))

	if res.Total > 0 {
		c.logger.Summary("cache sweep complete", zap.Int("total", res.Total))
	} else if res.OK() {
		c.logger.Summary("cache clean, nothing expired")
	}

	c.finish(span, res)
	return res
}

// SweepExpired runs CleanExpired for the periodic scheduler.
func (c *Coordinator) SweepExpired(ctx context.Context, now time.Time) int {
	return c.CleanExpired(ctx, now).Total
}

// ClearAll empties every record store, typically on logout. Sync flags are
// kept so one-time imports are not repeated.
func (c *Coordinator) ClearAll(ctx context.Context) Result {
	ctx, span := c.tracer.Start(ctx, "cache.ClearAll")
	defer span.End()

	c.metrics.Inc(metrics.ClearRunsTotal)

	res := c.each(ctx, opClear, func(ctx context.Context, _ entity.Kind, t store.Sweeper) (int, error) {
		return t.ClearAll(ctx)
	})

	for kind, n := range res.Counts {
		if n > 0 {
			c.metrics.Add(metrics.PerKind(metrics.CacheClearedTotal, string(kind)), int64(n))
			c.logger.Count("cached records cleared",
				zap.String("kind", string(kind)), zap.Int("count", n))
		}
	}
	c.metrics.Add(metrics.ClearFailuresTotal, int64(len(res.Failed)))
	if res.OK() || res.Total > 0 {
		c.logger.Summary("cache cleared", zap.Int("total", res.Total))
	}

	c.finish(span, res)
	return res
}

type kindOp func(ctx context.Context, kind entity.Kind, t store.Sweeper) (int, error)

// each applies op to every kind. Cancellation is checked between kinds only;
// a store call that has started runs to completion.
func (c *Coordinator) each(ctx context.Context, opName string, op kindOp) Result {
	res := newResult()
	var mu sync.Mutex

	visit := func(kind entity.Kind) {
		n, err := op(context.WithoutCancel(ctx), kind, c.tables[kind])
		err = store.Wrap(kind, opName, err)

		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Counts[kind] = 0
			res.Failed[kind] = err
			c.logger.Failure("cache maintenance failed", err,
				zap.String("kind", string(kind)), zap.String("op", opName))
			return
		}
		res.Counts[kind] = n
		res.Total += n
	}

	if !c.parallel {
		for _, kind := range entity.Kinds() {
			if ctx.Err() != nil {
				res.Interrupted = true
				break
			}
			visit(kind)
		}
		return res
	}

	var g errgroup.Group
	for _, kind := range entity.Kinds() {
		kind := kind
		g.Go(func() error {
			if ctx.Err() != nil {
				mu.Lock()
				res.Interrupted = true
				mu.Unlock()
				return nil
			}
			visit(kind)
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (c *Coordinator) finish(span trace.Span, res Result) {
	span.SetAttributes(
		attribute.Int("cache.total", res.Total),
		attribute.Int("cache.failed_kinds", len(res.Failed)),
		attribute.Bool("cache.interrupted", res.Interrupted),
	)
	if !res.OK() {
		span.SetStatus(codes.Error, "one or more kinds failed")
	}
}
