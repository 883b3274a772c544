// Package storetest checks store.Table implementations against the shared
// Record Store contract.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-cache/internal/store"
)

// Clock is a settable clock for stamping cached-at in tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Fixture adapts one table implementation to the suite.
type Fixture[R any] struct {
	// New returns an empty table stamping inserts with clock.
	New func(t *testing.T, clock func() time.Time) store.Table[int64, R]
	// Make builds a record with the given key and a distinguishing label.
	Make func(id int64, label string) R
	// Label reads the label back from a record.
	Label func(R) string
}

// Base is millisecond aligned so durable backends compare exactly.
var Base = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// Run exercises the Record Store contract.
func Run[R any](t *testing.T, f Fixture[R]) {
	ctx := context.Background()

	t.Run("insert if absent keeps first write", func(t *testing.T) {
		clock := NewClock(Base)
		table := f.New(t, clock.Now)

		written, err := table.InsertIfAbsent(ctx, f.Make(1, "first"))
		require.NoError(t, err)
		assert.True(t, written)

		clock.Set(Base.Add(time.Hour))
		written, err = table.InsertIfAbsent(ctx, f.Make(1, "second"))
		require.NoError(t, err)
		assert.False(t, written)

		got, err := table.GetByKey(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "first", f.Label(got.Record))
		assert.True(t, Base.Equal(got.CachedAt), "cached-at must keep the first write")
	})

	t.Run("put refreshes cached-at and attributes", func(t *testing.T) {
		clock := NewClock(Base)
		table := f.New(t, clock.Now)

		_, err := table.InsertIfAbsent(ctx, f.Make(1, "old"))
		require.NoError(t, err)

		resynced := Base.Add(29 * time.Minute)
		clock.Set(resynced)
		require.NoError(t, table.Put(ctx, f.Make(1, "new")))

		got, err := table.GetByKey(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "new", f.Label(got.Record))
		assert.True(t, resynced.Equal(got.CachedAt), "cached-at must move to the re-sync")

		removed, err := table.DeleteOlderThan(ctx, resynced)
		require.NoError(t, err)
		assert.Zero(t, removed)

		all, err := table.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("put inserts absent key", func(t *testing.T) {
		table := f.New(t, NewClock(Base).Now)
		require.NoError(t, table.Put(ctx, f.Make(9, "fresh")))

		got, err := table.GetByKey(ctx, 9)
		require.NoError(t, err)
		assert.Equal(t, "fresh", f.Label(got.Record))
		assert.True(t, Base.Equal(got.CachedAt))
	})

	t.Run("get missing key", func(t *testing.T) {
		table := f.New(t, NewClock(Base).Now)
		_, err := table.GetByKey(ctx, 42)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		table := f.New(t, NewClock(Base).Now)
		_, err := table.InsertIfAbsent(ctx, f.Make(5, "x"))
		require.NoError(t, err)

		ok, err := table.Exists(ctx, 5)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = table.Exists(ctx, 6)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete by key", func(t *testing.T) {
		table := f.New(t, NewClock(Base).Now)
		_, err := table.InsertIfAbsent(ctx, f.Make(1, "x"))
		require.NoError(t, err)

		require.NoError(t, table.DeleteByKey(ctx, 1))
		require.NoError(t, table.DeleteByKey(ctx, 1))

		_, err = table.GetByKey(ctx, 1)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("delete older than is strict", func(t *testing.T) {
		clock := NewClock(Base)
		table := f.New(t, clock.Now)
		cutoff := Base

		clock.Set(cutoff.Add(-time.Millisecond))
		_, err := table.InsertIfAbsent(ctx, f.Make(1, "before"))
		require.NoError(t, err)
		clock.Set(cutoff)
		_, err = table.InsertIfAbsent(ctx, f.Make(2, "at"))
		require.NoError(t, err)
		clock.Set(cutoff.Add(time.Millisecond))
		_, err = table.InsertIfAbsent(ctx, f.Make(3, "after"))
		require.NoError(t, err)

		removed, err := table.DeleteOlderThan(ctx, cutoff)
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		all, err := table.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "at", f.Label(all[0].Record))
		assert.Equal(t, "after", f.Label(all[1].Record))
	})

	t.Run("clear all", func(t *testing.T) {
		table := f.New(t, NewClock(Base).Now)
		for i := int64(1); i <= 3; i++ {
			_, err := table.InsertIfAbsent(ctx, f.Make(i, "x"))
			require.NoError(t, err)
		}

		removed, err := table.ClearAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, removed)

		removed, err = table.ClearAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)

		all, err := table.GetAll(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("get all orders by key", func(t *testing.T) {
		table := f.New(t, NewClock(Base).Now)
		for _, id := range []int64{3, 1, 2} {
			_, err := table.InsertIfAbsent(ctx, f.Make(id, "x"))
			require.NoError(t, err)
		}

		all, err := table.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)

		again, err := table.GetAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, all, again)
	})
}
