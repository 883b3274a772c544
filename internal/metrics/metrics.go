package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized)
const (
	// Record stores
	CacheInsertsTotal  MetricKey = "cache_inserts_total"
	CacheIgnoredTotal  MetricKey = "cache_inserts_ignored_total"
	CachePutsTotal     MetricKey = "cache_puts_total"
	CacheGetsTotal     MetricKey = "cache_gets_total"
	CacheMissesTotal   MetricKey = "cache_misses_total"
	CacheDeletesTotal  MetricKey = "cache_deletes_total"
	CacheExpiredTotal  MetricKey = "cache_expired_total"
	CacheClearedTotal  MetricKey = "cache_cleared_total"
	StorageErrorsTotal MetricKey = "storage_errors_total"

	// Coordinator
	SweepRunsTotal     MetricKey = "cache_sweep_runs_total"
	SweepFailuresTotal MetricKey = "cache_sweep_failures_total"
	ClearRunsTotal     MetricKey = "cache_clear_runs_total"
	ClearFailuresTotal MetricKey = "cache_clear_failures_total"

	// TTL scheduler
	TTLCleanupRunsTotal MetricKey = "ttl_cleanup_runs_total"
	TTLKeysRemovedTotal MetricKey = "ttl_keys_removed_total"

	// Seeding
	SeedRunsTotal      MetricKey = "seed_runs_total"
	SeedSkippedTotal   MetricKey = "seed_skipped_total"
	SeedFailuresTotal  MetricKey = "seed_failures_total"
	SeedRecordsTotal   MetricKey = "seed_records_total"
	WatchDeliveryTotal MetricKey = "watch_deliveries_total"
)

// PerKind derives a kind-scoped key, e.g. cache_expired_total:user.
func PerKind(key MetricKey, kind string) MetricKey {
	return MetricKey(string(key) + ":" + kind)
}

// Registry stores all metrics.
// A nil *Registry discards updates.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	if r == nil {
		return
	}

	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}
