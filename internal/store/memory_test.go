package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"local-cache/internal/entity"
	"local-cache/internal/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

var baseTime = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestMemory_InsertAndGet(t *testing.T) {
	clock := &manualClock{now: baseTime}
	users := NewMemoryUsers(clock.Now, metrics.NewRegistry())
	ctx := context.Background()

	t.Run("insert and get existing key", func(t *testing.T) {
		written, err := users.InsertIfAbsent(ctx, entity.User{ID: 1, Name: "Ana", Email: "ana@example.com"})
		require.NoError(t, err)
		assert.True(t, written)

		got, err := users.GetByKey(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Ana", got.Record.Name)
		assert.Equal(t, baseTime, got.CachedAt)
	})

	t.Run("get non-existing key", func(t *testing.T) {
		_, err := users.GetByKey(ctx, 404)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := users.Exists(ctx, 1)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = users.Exists(ctx, 2)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestMemory_InsertIfAbsentKeepsFirstWrite(t *testing.T) {
	clock := &manualClock{now: baseTime}
	reg := metrics.NewRegistry()
	games := NewMemoryGames(clock.Now, reg)
	ctx := context.Background()

	written, err := games.InsertIfAbsent(ctx, entity.Game{ID: 7, Name: "first", Price: 10})
	require.NoError(t, err)
	require.True(t, written)

	clock.Set(baseTime.Add(time.Hour))
	written, err = games.InsertIfAbsent(ctx, entity.Game{ID: 7, Name: "second", Price: 99})
	require.NoError(t, err)
	assert.False(t, written)

	got, err := games.GetByKey(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Record.Name)
	assert.Equal(t, 10.0, got.Record.Price)
	assert.Equal(t, baseTime, got.CachedAt, "ignored insert must not refresh cached-at")

	snap := reg.Snapshot()
	assert.Equal(t, int64(1), snap[string(metrics.CacheInsertsTotal)])
	assert.Equal(t, int64(1), snap[string(metrics.CacheIgnoredTotal)])
}

func TestMemory_DeleteByKey(t *testing.T) {
	library := NewMemoryLibrary(nil, metrics.NewRegistry())
	ctx := context.Background()

	_, err := library.InsertIfAbsent(ctx, entity.LibraryItem{ID: 1, UserID: 9, GameID: "g1"})
	require.NoError(t, err)

	require.NoError(t, library.DeleteByKey(ctx, 1))
	require.NoError(t, library.DeleteByKey(ctx, 1), "deleting a missing key is a no-op")

	_, err = library.GetByKey(ctx, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_DeleteOlderThan_StrictCutoff(t *testing.T) {
	clock := &manualClock{}
	users := NewMemoryUsers(clock.Now, metrics.NewRegistry())
	ctx := context.Background()

	cutoff := baseTime

	clock.Set(cutoff.Add(-time.Millisecond))
	_, _ = users.InsertIfAbsent(ctx, entity.User{ID: 1})
	clock.Set(cutoff)
	_, _ = users.InsertIfAbsent(ctx, entity.User{ID: 2})
	clock.Set(cutoff.Add(time.Millisecond))
	_, _ = users.InsertIfAbsent(ctx, entity.User{ID: 3})

	removed, err := users.DeleteOlderThan(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := users.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(2), all[0].Record.ID, "record exactly at the cutoff survives")
	assert.Equal(t, int64(3), all[1].Record.ID)
}

func TestMemory_ClearAll(t *testing.T) {
	reg := metrics.NewRegistry()
	games := NewMemoryGames(nil, reg)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		_, _ = games.InsertIfAbsent(ctx, entity.Game{ID: i})
	}

	removed, err := games.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	all, err := games.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, int64(3), reg.Get(metrics.CacheClearedTotal))
}

func TestMemory_GetAllIsSnapshot(t *testing.T) {
	games := NewMemoryGames(nil, nil)
	ctx := context.Background()

	_, _ = games.InsertIfAbsent(ctx, entity.Game{ID: 2})
	_, _ = games.InsertIfAbsent(ctx, entity.Game{ID: 1})

	snap, err := games.GetAll(ctx)
	require.NoError(t, err)

	_, _ = games.InsertIfAbsent(ctx, entity.Game{ID: 3})

	require.Len(t, snap, 2)
	assert.Equal(t, int64(1), snap[0].Record.ID)
	assert.Equal(t, int64(2), snap[1].Record.ID)
}

func TestMemory_DomainQueries(t *testing.T) {
	ctx := context.Background()

	t.Run("user by email", func(t *testing.T) {
		users := NewMemoryUsers(nil, nil)
		_, _ = users.InsertIfAbsent(ctx, entity.User{ID: 1, Email: "Ana@Example.com"})

		got, err := users.GetByEmail(ctx, "ana@example.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Record.ID)

		_, err = users.GetByEmail(ctx, "bob@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("user fields are normalized on write", func(t *testing.T) {
		users := NewMemoryUsers(nil, nil)
		_, _ = users.InsertIfAbsent(ctx, entity.User{ID: 1, RemoteID: " 42 ", Email: " Éva@Example.com "})
		require.NoError(t, users.Put(ctx, entity.User{ID: 2, RemoteID: "\t43", Email: "bo@example.com\n"}))

		got, err := users.GetByKey(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "42", got.Record.RemoteID)
		assert.Equal(t, "Éva@Example.com", got.Record.Email)

		got, err = users.GetByKey(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, "43", got.Record.RemoteID)
		assert.Equal(t, "bo@example.com", got.Record.Email)

		got, err = users.GetByEmail(ctx, "ÉVA@EXAMPLE.COM")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Record.ID)

		_, err = users.GetByEmail(ctx, "éva@example.com")
		assert.ErrorIs(t, err, ErrNotFound, "non-ASCII letters do not fold")
	})

	t.Run("active games", func(t *testing.T) {
		games := NewMemoryGames(nil, nil)
		_, _ = games.InsertIfAbsent(ctx, entity.Game{ID: 1, Active: true})
		_, _ = games.InsertIfAbsent(ctx, entity.Game{ID: 2, Active: false})

		active, err := games.ListActive(ctx)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, int64(1), active[0].Record.ID)
	})

	t.Run("library by user", func(t *testing.T) {
		library := NewMemoryLibrary(nil, nil)
		_, _ = library.InsertIfAbsent(ctx, entity.LibraryItem{ID: 1, UserID: 5, GameID: "g1"})
		_, _ = library.InsertIfAbsent(ctx, entity.LibraryItem{ID: 2, UserID: 6, GameID: "g1"})

		items, err := library.ListByUser(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, items, 1)

		owns, err := library.UserOwnsGame(ctx, 6, "g1")
		require.NoError(t, err)
		assert.True(t, owns)

		owns, err = library.UserOwnsGame(ctx, 6, "g2")
		require.NoError(t, err)
		assert.False(t, owns)
	})
}

func TestMemory_ConcurrentInsertAndSweep(t *testing.T) {
	clock := &manualClock{now: baseTime}
	users := NewMemoryUsers(clock.Now, metrics.NewRegistry())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(id int64) {
			defer wg.Done()
			_, _ = users.InsertIfAbsent(ctx, entity.User{ID: id})
		}(int64(i))
		go func() {
			defer wg.Done()
			_, _ = users.DeleteOlderThan(ctx, baseTime.Add(-time.Hour))
		}()
	}
	wg.Wait()

	all, err := users.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestMemory_CancelledContext(t *testing.T) {
	users := NewMemoryUsers(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := users.InsertIfAbsent(ctx, entity.User{ID: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(entity.KindUser, "get", nil))
	assert.ErrorIs(t, Wrap(entity.KindUser, "get", ErrNotFound), ErrNotFound)
	assert.Equal(t, context.Canceled, Wrap(entity.KindUser, "get", context.Canceled))

	cause := errors.New("disk I/O error")
	err := Wrap(entity.KindGame, "delete_older_than", cause)

	var se *StorageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, entity.KindGame, se.Kind)
	assert.Equal(t, "delete_older_than", se.Op)
	assert.ErrorIs(t, err, cause)
	assert.Same(t, err, Wrap(entity.KindUser, "other", err), "already wrapped errors pass through")
}
