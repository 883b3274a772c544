// Package sqlite provides the durable SQLite-backed record stores and sync
// flags of the local cache.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"local-cache/internal/entity"
	"local-cache/internal/metrics"
	sqlitemigrate "local-cache/internal/platform/storage/sqlitemigrate"
	"local-cache/internal/store"
	"local-cache/internal/store/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// Store owns the SQLite handle shared by every table.
type Store struct {
	sqlDB   *sql.DB
	clock   func() time.Time
	metrics *metrics.Registry
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp cached-at on insert.
func WithClock(clock func() time.Time) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics records table activity in reg.
func WithMetrics(reg *metrics.Registry) Option {
	return func(s *Store) { s.metrics = reg }
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite cache store and applies embedded migrations.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, "."); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{sqlDB: sqlDB, clock: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Users returns the user record store.
func (s *Store) Users() *Users {
	return &Users{table: s.table(entity.KindUser, "users")}
}

// Games returns the game record store.
func (s *Store) Games() *Games {
	return &Games{table: s.table(entity.KindGame, "games")}
}

// Library returns the library record store.
func (s *Store) Library() *Library {
	return &Library{table: s.table(entity.KindLibraryItem, "library_items")}
}

// SyncFlags returns the sync flag store kept in the same database.
func (s *Store) SyncFlags() *SyncFlags {
	return &SyncFlags{sqlDB: s.sqlDB}
}

func (s *Store) table(kind entity.Kind, name string) table {
	return table{sqlDB: s.sqlDB, kind: kind, name: name, clock: s.clock, metrics: s.metrics}
}

// table implements the kind-agnostic operations shared by every cached kind.
// Table names are fixed at construction and never taken from callers.
type table struct {
	sqlDB   *sql.DB
	kind    entity.Kind
	name    string
	clock   func() time.Time
	metrics *metrics.Registry
}

func (t table) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

func (t table) fail(op string, err error) error {
	err = store.Wrap(t.kind, op, err)
	var se *store.StorageError
	if errors.As(err, &se) {
		t.metrics.Inc(metrics.StorageErrorsTotal)
	}
	return err
}

func (t table) now() int64 {
	return toMillis(t.clock())
}

// insert runs an INSERT OR IGNORE and reports whether a row was written.
func (t table) insert(ctx context.Context, query string, args ...any) (bool, error) {
	if err := t.check(ctx); err != nil {
		return false, err
	}
	res, err := t.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, t.fail("insert", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, t.fail("insert", err)
	}
	if n == 0 {
		t.metrics.Inc(metrics.CacheIgnoredTotal)
		return false, nil
	}
	t.metrics.Inc(metrics.CacheInsertsTotal)
	return true, nil
}

// upsert runs an INSERT ... ON CONFLICT DO UPDATE.
func (t table) upsert(ctx context.Context, query string, args ...any) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	if _, err := t.sqlDB.ExecContext(ctx, query, args...); err != nil {
		return t.fail("put", err)
	}
	t.metrics.Inc(metrics.CachePutsTotal)
	return nil
}

func (t table) Exists(ctx context.Context, id int64) (bool, error) {
	if err := t.check(ctx); err != nil {
		return false, err
	}
	var found int
	err := t.sqlDB.QueryRowContext(ctx, "SELECT 1 FROM "+t.name+" WHERE id = ? LIMIT 1", id).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, t.fail("exists", err)
	}
	return true, nil
}

func (t table) DeleteByKey(ctx context.Context, id int64) error {
	if err := t.check(ctx); err != nil {
		return err
	}
	res, err := t.sqlDB.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = ?", id)
	if err != nil {
		return t.fail("delete", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		t.metrics.Inc(metrics.CacheDeletesTotal)
	}
	return nil
}

// DeleteOlderThan removes rows cached strictly before cutoff in a single
// statement.
func (t table) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	res, err := t.sqlDB.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE cached_at < ?", toMillis(cutoff))
	if err != nil {
		return 0, t.fail("delete_older_than", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, t.fail("delete_older_than", err)
	}
	t.metrics.Add(metrics.CacheExpiredTotal, n)
	return int(n), nil
}

func (t table) ClearAll(ctx context.Context) (int, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	res, err := t.sqlDB.ExecContext(ctx, "DELETE FROM "+t.name)
	if err != nil {
		return 0, t.fail("clear_all", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, t.fail("clear_all", err)
	}
	t.metrics.Add(metrics.CacheClearedTotal, n)
	return int(n), nil
}

// Count returns the number of cached rows.
func (t table) Count(ctx context.Context) (int, error) {
	if err := t.check(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := t.sqlDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.name).Scan(&n); err != nil {
		return 0, t.fail("count", err)
	}
	return n, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// queryAll collects every row of query using scan.
func queryAll[R any](ctx context.Context, t table, op string, scan func(scanner) (store.Cached[R], error), query string, args ...any) ([]store.Cached[R], error) {
	if err := t.check(ctx); err != nil {
		return nil, err
	}
	rows, err := t.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, t.fail(op, err)
	}
	defer rows.Close()

	out := []store.Cached[R]{}
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, t.fail(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, t.fail(op, err)
	}
	return out, nil
}

// queryOne returns the single row of query or store.ErrNotFound.
func queryOne[R any](ctx context.Context, t table, op string, scan func(scanner) (store.Cached[R], error), query string, args ...any) (store.Cached[R], error) {
	if err := t.check(ctx); err != nil {
		return store.Cached[R]{}, err
	}
	t.metrics.Inc(metrics.CacheGetsTotal)
	rec, err := scan(t.sqlDB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		t.metrics.Inc(metrics.CacheMissesTotal)
		return store.Cached[R]{}, store.ErrNotFound
	}
	if err != nil {
		return store.Cached[R]{}, t.fail(op, err)
	}
	return rec, nil
}
