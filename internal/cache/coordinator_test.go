package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local-cache/internal/entity"
	"local-cache/internal/logs"
	"local-cache/internal/metrics"
	"local-cache/internal/store"
	"local-cache/internal/store/storetest"
	"local-cache/internal/syncflag"
	"local-cache/internal/ttl"
)

type fixture struct {
	clock   *storetest.Clock
	users   *store.MemoryUsers
	games   *store.MemoryGames
	library *store.MemoryLibrary
	logger  *logs.Logger
	metrics *metrics.Registry
}

func newFixture() *fixture {
	clock := storetest.NewClock(storetest.Base)
	return &fixture{
		clock:   clock,
		users:   store.NewMemoryUsers(clock.Now, nil),
		games:   store.NewMemoryGames(clock.Now, nil),
		library: store.NewMemoryLibrary(clock.Now, nil),
		logger:  logs.NewLogger(100, logs.DEBUG),
		metrics: metrics.NewRegistry(),
	}
}

func (f *fixture) tables() map[entity.Kind]store.Sweeper {
	return map[entity.Kind]store.Sweeper{
		entity.KindUser:        f.users,
		entity.KindGame:        f.games,
		entity.KindLibraryItem: f.library,
	}
}

func (f *fixture) coordinator(t *testing.T, opts ...Option) *Coordinator {
	t.Helper()
	opts = append([]Option{WithLogger(f.logger), WithMetrics(f.metrics)}, opts...)
	c, err := NewCoordinator(f.tables(), opts...)
	require.NoError(t, err)
	return c
}

// insertAt caches record as if it had been written at "at".
func insertAt[R any](t *testing.T, f *fixture, table store.Table[int64, R], record R, at time.Time) {
	t.Helper()
	f.clock.Set(at)
	written, err := table.InsertIfAbsent(context.Background(), record)
	require.NoError(t, err)
	require.True(t, written)
}

// failingSweeper simulates a broken storage engine.
type failingSweeper struct {
	calls atomic.Int32
}

var errDiskIO = errors.New("disk I/O error")

func (s *failingSweeper) DeleteOlderThan(context.Context, time.Time) (int, error) {
	s.calls.Add(1)
	return 0, errDiskIO
}

func (s *failingSweeper) ClearAll(context.Context) (int, error) {
	s.calls.Add(1)
	return 0, errDiskIO
}

func TestNewCoordinator_RequiresEveryKind(t *testing.T) {
	f := newFixture()
	tables := f.tables()
	delete(tables, entity.KindGame)

	_, err := NewCoordinator(tables)

	var cfgErr *ttl.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, entity.KindGame, cfgErr.Kind)
}

func TestCleanExpired_RemovesOnlyStaleRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coordinator(t)

	now := storetest.Base.Add(2 * time.Hour)
	insertAt[entity.User](t, f, f.users, entity.User{ID: 1, Name: "fresh"}, now.Add(-10*time.Minute))
	insertAt[entity.User](t, f, f.users, entity.User{ID: 2, Name: "stale"}, now.Add(-40*time.Minute))

	res := c.CleanExpired(ctx, now)

	assert.Equal(t, map[entity.Kind]int{
		entity.KindUser:        1,
		entity.KindGame:        0,
		entity.KindLibraryItem: 0,
	}, res.Counts)
	assert.Equal(t, 1, res.Total)
	assert.True(t, res.OK())
	assert.False(t, res.Interrupted)

	got, err := f.users.GetByKey(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Record.Name)

	_, err = f.users.GetByKey(ctx, 2)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCleanExpired_UsesPerKindLifetimes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coordinator(t)

	now := storetest.Base.Add(3 * time.Hour)
	// 20 minutes old: fresh for users and games, stale for library entries.
	at := now.Add(-20 * time.Minute)
	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, at)
	insertAt[entity.Game](t, f, f.games, entity.Game{ID: 1}, at)
	insertAt[entity.LibraryItem](t, f, f.library, entity.LibraryItem{ID: 1}, at)
	// 45 minutes old: stale for users only among user/game.
	insertAt[entity.User](t, f, f.users, entity.User{ID: 2}, now.Add(-45*time.Minute))
	insertAt[entity.Game](t, f, f.games, entity.Game{ID: 2}, now.Add(-45*time.Minute))

	res := c.CleanExpired(ctx, now)

	assert.Equal(t, 1, res.Counts[entity.KindUser])
	assert.Equal(t, 0, res.Counts[entity.KindGame])
	assert.Equal(t, 1, res.Counts[entity.KindLibraryItem])
	assert.Equal(t, 2, res.Total)
}

func TestCleanExpired_BoundaryRecordIsKept(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coordinator(t)

	cachedAt := storetest.Base
	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, cachedAt)

	res := c.CleanExpired(ctx, cachedAt.Add(ttl.UserTTL))
	assert.Zero(t, res.Total)

	res = c.CleanExpired(ctx, cachedAt.Add(ttl.UserTTL+time.Millisecond))
	assert.Equal(t, 1, res.Total)
}

func TestCleanExpired_SummaryDistinguishesNothingExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coordinator(t)

	c.CleanExpired(ctx, storetest.Base)

	summaries := f.logger.GetByCategory(logs.CategorySummary)
	require.Len(t, summaries, 1)
	assert.Equal(t, "cache clean, nothing expired", summaries[0].Message)
	assert.Empty(t, f.logger.GetByCategory(logs.CategoryCount))

	insertAt[entity.Game](t, f, f.games, entity.Game{ID: 7}, storetest.Base)
	c.CleanExpired(ctx, storetest.Base.Add(2*time.Hour))

	summaries = f.logger.GetByCategory(logs.CategorySummary)
	require.Len(t, summaries, 2)
	assert.Equal(t, "cache sweep complete", summaries[1].Message)
	assert.EqualValues(t, 1, summaries[1].Fields["total"])

	counts := f.logger.GetByCategory(logs.CategoryCount)
	require.Len(t, counts, 1)
	assert.Equal(t, "game", counts[0].Fields["kind"])
	assert.EqualValues(t, 1, counts[0].Fields["count"])
}

func TestCleanExpired_FailingKindDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	broken := &failingSweeper{}
	tables := f.tables()
	tables[entity.KindGame] = broken

	c, err := NewCoordinator(tables, WithLogger(f.logger), WithMetrics(f.metrics))
	require.NoError(t, err)

	now := storetest.Base.Add(2 * time.Hour)
	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, now.Add(-40*time.Minute))
	insertAt[entity.LibraryItem](t, f, f.library, entity.LibraryItem{ID: 1}, now.Add(-20*time.Minute))
	insertAt[entity.LibraryItem](t, f, f.library, entity.LibraryItem{ID: 2}, now.Add(-16*time.Minute))

	res := c.CleanExpired(ctx, now)

	assert.Equal(t, int32(1), broken.calls.Load())
	assert.Equal(t, 1, res.Counts[entity.KindUser])
	assert.Equal(t, 0, res.Counts[entity.KindGame])
	assert.Equal(t, 2, res.Counts[entity.KindLibraryItem])
	assert.Equal(t, 3, res.Total)
	assert.False(t, res.OK())

	require.Contains(t, res.Failed, entity.KindGame)
	var se *store.StorageError
	require.ErrorAs(t, res.Failed[entity.KindGame], &se)
	assert.Equal(t, entity.KindGame, se.Kind)
	assert.Equal(t, opSweep, se.Op)
	assert.ErrorIs(t, res.Failed[entity.KindGame], errDiskIO)

	failures := f.logger.GetByCategory(logs.CategoryError)
	require.Len(t, failures, 1)
	assert.Equal(t, "game", failures[0].Fields["kind"])
	assert.EqualValues(t, 1, f.metrics.Get(metrics.SweepFailuresTotal))
}

func TestCleanExpired_Parallel(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coordinator(t, WithParallel())

	now := storetest.Base.Add(4 * time.Hour)
	for i := int64(1); i <= 20; i++ {
		insertAt[entity.User](t, f, f.users, entity.User{ID: i}, storetest.Base)
		insertAt[entity.Game](t, f, f.games, entity.Game{ID: i}, storetest.Base)
		insertAt[entity.LibraryItem](t, f, f.library, entity.LibraryItem{ID: i}, storetest.Base)
	}

	res := c.CleanExpired(ctx, now)

	assert.Equal(t, 60, res.Total)
	for _, kind := range entity.Kinds() {
		assert.Equal(t, 20, res.Counts[kind], kind)
	}
	assert.EqualValues(t, 20, f.metrics.Get(metrics.PerKind(metrics.CacheExpiredTotal, "library_item")))
}

func TestCleanExpired_CancelledBeforeStart(t *testing.T) {
	f := newFixture()
	c := f.coordinator(t)
	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, storetest.Base)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.CleanExpired(ctx, storetest.Base.Add(time.Hour))

	assert.True(t, res.Interrupted)
	assert.Zero(t, res.Total)
	assert.Empty(t, res.Counts)

	exists, err := f.users.Exists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

// cancellingSweeper cancels the run from inside its store call.
type cancellingSweeper struct {
	store.Sweeper
	cancel context.CancelFunc
}

func (s *cancellingSweeper) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	s.cancel()
	return s.Sweeper.DeleteOlderThan(ctx, cutoff)
}

func TestCleanExpired_CancellationHonoredAtKindBoundary(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())

	tables := f.tables()
	tables[entity.KindUser] = &cancellingSweeper{Sweeper: f.users, cancel: cancel}
	c, err := NewCoordinator(tables)
	require.NoError(t, err)

	now := storetest.Base.Add(2 * time.Hour)
	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, storetest.Base)
	insertAt[entity.Game](t, f, f.games, entity.Game{ID: 1}, storetest.Base)

	res := c.CleanExpired(ctx, now)

	// The in-flight user deletion completes; games are never visited.
	assert.True(t, res.Interrupted)
	assert.Equal(t, 1, res.Counts[entity.KindUser])
	assert.NotContains(t, res.Counts, entity.KindGame)

	exists, err := f.games.Exists(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestClearAll_EmptiesEveryKindAndKeepsSyncFlags(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coordinator(t)
	flags := syncflag.NewMemory()

	require.NoError(t, flags.MarkSynced(ctx, syncflag.GamesImported, storetest.Base))
	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, storetest.Base)
	insertAt[entity.Game](t, f, f.games, entity.Game{ID: 1}, storetest.Base)
	insertAt[entity.Game](t, f, f.games, entity.Game{ID: 2}, storetest.Base)
	insertAt[entity.LibraryItem](t, f, f.library, entity.LibraryItem{ID: 1}, storetest.Base)

	res := c.ClearAll(ctx)

	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2, res.Counts[entity.KindGame])

	users, err := f.users.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
	games, err := f.games.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, games)
	items, err := f.library.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, items)

	synced, err := flags.IsSynced(ctx, syncflag.GamesImported)
	require.NoError(t, err)
	assert.True(t, synced)

	assert.EqualValues(t, 1, f.metrics.Get(metrics.ClearRunsTotal))
}

func TestClearAll_FailingKindIsReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tables := f.tables()
	tables[entity.KindLibraryItem] = &failingSweeper{}
	c, err := NewCoordinator(tables, WithMetrics(f.metrics))
	require.NoError(t, err)

	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, storetest.Base)

	res := c.ClearAll(ctx)

	assert.Equal(t, 1, res.Total)
	assert.Contains(t, res.Failed, entity.KindLibraryItem)
	assert.EqualValues(t, 1, f.metrics.Get(metrics.ClearFailuresTotal))
}

func TestSweepExpired_ReturnsTotal(t *testing.T) {
	f := newFixture()
	c := f.coordinator(t)
	insertAt[entity.LibraryItem](t, f, f.library, entity.LibraryItem{ID: 1}, storetest.Base)

	var sweeper ttl.Sweeper = c
	assert.Equal(t, 1, sweeper.SweepExpired(context.Background(), storetest.Base.Add(time.Hour)))
}

func TestExpiryHelpers(t *testing.T) {
	f := newFixture()
	c := f.coordinator(t)
	cachedAt := storetest.Base

	assert.False(t, c.IsExpired(cachedAt, ttl.GameTTL, cachedAt.Add(ttl.GameTTL)))
	assert.True(t, c.IsExpired(cachedAt, ttl.GameTTL, cachedAt.Add(ttl.GameTTL+time.Millisecond)))
	assert.Equal(t, cachedAt, c.ExpirationCutoff(ttl.GameTTL, cachedAt.Add(ttl.GameTTL)))
}

func TestClearAll_NoSummaryWhenEveryKindFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tables := map[entity.Kind]store.Sweeper{
		entity.KindUser:        &failingSweeper{},
		entity.KindGame:        &failingSweeper{},
		entity.KindLibraryItem: &failingSweeper{},
	}
	c, err := NewCoordinator(tables, WithLogger(f.logger), WithMetrics(f.metrics))
	require.NoError(t, err)

	res := c.ClearAll(ctx)

	assert.False(t, res.OK())
	assert.Zero(t, res.Total)
	assert.Len(t, res.Failed, 3)
	assert.Empty(t, f.logger.GetByCategory(logs.CategorySummary))
	assert.Len(t, f.logger.GetByCategory(logs.CategoryError), 3)
	assert.EqualValues(t, 3, f.metrics.Get(metrics.ClearFailuresTotal))
}

func TestClearAll_SummaryOnPartialSuccess(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	tables := f.tables()
	tables[entity.KindGame] = &failingSweeper{}
	c, err := NewCoordinator(tables, WithLogger(f.logger), WithMetrics(f.metrics))
	require.NoError(t, err)

	insertAt[entity.User](t, f, f.users, entity.User{ID: 1}, storetest.Base)

	c.ClearAll(ctx)

	summaries := f.logger.GetByCategory(logs.CategorySummary)
	require.Len(t, summaries, 1)
	assert.EqualValues(t, 1, summaries[0].Fields["total"])
}

func TestCleanExpired_ResyncedRecordSurvives(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	c := f.coordinator(t)

	insertAt[entity.User](t, f, f.users, entity.User{ID: 1, Name: "before"}, storetest.Base)

	f.clock.Set(storetest.Base.Add(29 * time.Minute))
	require.NoError(t, f.users.Put(ctx, entity.User{ID: 1, Name: "after"}))

	res := c.CleanExpired(ctx, storetest.Base.Add(31*time.Minute))
	assert.Zero(t, res.Total)

	got, err := f.users.GetByKey(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Record.Name)
}
