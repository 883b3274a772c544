package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"local-cache/internal/entity"
	"local-cache/internal/metrics"
)

// Memory is a concurrency-safe in-memory record store.
//
// Every operation takes the single RWMutex, so an age-based deletion is
// never partially visible to readers.
type Memory[K cmp.Ordered, R any] struct {
	mu      sync.RWMutex
	data    map[K]Cached[R]
	kind    entity.Kind
	keyOf   func(R) K
	clock   func() time.Time
	metrics *metrics.Registry
}

// NewMemory initializes an empty store for kind. keyOf extracts the
// identity of a record; clock stamps insertions and defaults to time.Now.
func NewMemory[K cmp.Ordered, R any](
	kind entity.Kind,
	keyOf func(R) K,
	clock func() time.Time,
	metricsRegistry *metrics.Registry,
) *Memory[K, R] {
	if clock == nil {
		clock = time.Now
	}
	return &Memory[K, R]{
		data:    make(map[K]Cached[R]),
		kind:    kind,
		keyOf:   keyOf,
		clock:   clock,
		metrics: metricsRegistry,
	}
}

// Kind returns the entity kind held by the store.
func (s *Memory[K, R]) Kind() entity.Kind {
	return s.kind
}

// InsertIfAbsent inserts a record unless its key is already cached.
func (s *Memory[K, R]) InsertIfAbsent(ctx context.Context, record R) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	key := s.keyOf(record)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		s.metrics.Inc(metrics.CacheIgnoredTotal)
		return false, nil
	}

	s.data[key] = Cached[R]{Record: record, CachedAt: s.clock().UTC()}
	s.metrics.Inc(metrics.CacheInsertsTotal)
	return true, nil
}

// Put caches record, overwriting any entry with the same key.
func (s *Memory[K, R]) Put(ctx context.Context, record R) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := s.keyOf(record)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = Cached[R]{Record: record, CachedAt: s.clock().UTC()}
	s.metrics.Inc(metrics.CachePutsTotal)
	return nil
}

// Exists reports whether key is cached.
func (s *Memory[K, R]) Exists(ctx context.Context, key K) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.data[key]
	return ok, nil
}

// GetByKey retrieves one record.
func (s *Memory[K, R]) GetByKey(ctx context.Context, key K) (Cached[R], error) {
	if err := ctx.Err(); err != nil {
		return Cached[R]{}, err
	}
	s.metrics.Inc(metrics.CacheGetsTotal)

	s.mu.RLock()
	entry, ok := s.data[key]
	s.mu.RUnlock()

	if !ok {
		s.metrics.Inc(metrics.CacheMissesTotal)
		return Cached[R]{}, ErrNotFound
	}
	return entry, nil
}

// GetAll returns a snapshot of every record ordered by key.
func (s *Memory[K, R]) GetAll(ctx context.Context) ([]Cached[R], error) {
	return s.Filter(ctx, nil)
}

// Filter returns a key-ordered snapshot of the records matching keep.
// A nil keep matches everything.
func (s *Memory[K, R]) Filter(ctx context.Context, keep func(R) bool) ([]Cached[R], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	keys := make([]K, 0, len(s.data))
	for k, v := range s.data {
		if keep == nil || keep(v.Record) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	out := make([]Cached[R], 0, len(keys))
	for _, k := range keys {
		out = append(out, s.data[k])
	}
	s.mu.RUnlock()

	return out, nil
}

// DeleteByKey removes a key from the store.
func (s *Memory[K, R]) DeleteByKey(ctx context.Context, key K) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.metrics.Inc(metrics.CacheDeletesTotal)
	}
	return nil
}

// DeleteOlderThan removes every record cached strictly before cutoff.
func (s *Memory[K, R]) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed := 0

	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range s.data {
		if v.CachedAt.Before(cutoff) {
			delete(s.data, k)
			removed++
		}
	}

	if removed > 0 {
		s.metrics.Add(metrics.CacheExpiredTotal, int64(removed))
	}
	return removed, nil
}

// ClearAll removes every record.
func (s *Memory[K, R]) ClearAll(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := len(s.data)
	clear(s.data)

	if removed > 0 {
		s.metrics.Add(metrics.CacheClearedTotal, int64(removed))
	}
	return removed, nil
}
