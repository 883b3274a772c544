package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"local-cache/internal/syncflag"
)

// SyncFlags persists one-time sync markers, one row per flag name.
type SyncFlags struct {
	sqlDB *sql.DB
}

func (s *SyncFlags) check(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.sqlDB == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", syncflag.ErrNameRequired
	}
	return name, nil
}

// IsSynced reports whether name has been marked. Unknown flags are unsynced.
func (s *SyncFlags) IsSynced(ctx context.Context, name string) (bool, error) {
	flag, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	return flag.Synced, nil
}

// LastSyncedAt returns the instant recorded by the last MarkSynced.
func (s *SyncFlags) LastSyncedAt(ctx context.Context, name string) (time.Time, bool, error) {
	flag, err := s.Get(ctx, name)
	if err != nil {
		return time.Time{}, false, err
	}
	if !flag.Synced {
		return time.Time{}, false, nil
	}
	return flag.SyncedAt, true, nil
}

// Get returns the full flag state; unknown flags yield the default state.
func (s *SyncFlags) Get(ctx context.Context, name string) (syncflag.Flag, error) {
	name, err := s.check(ctx, name)
	if err != nil {
		return syncflag.Flag{}, err
	}

	var (
		synced   bool
		syncedAt int64
	)
	err = s.sqlDB.QueryRowContext(ctx,
		`SELECT synced, synced_at FROM sync_flags WHERE name = ?`, name,
	).Scan(&synced, &syncedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return syncflag.Flag{Name: name}, nil
	}
	if err != nil {
		return syncflag.Flag{}, fmt.Errorf("get sync flag %s: %w", name, err)
	}
	flag := syncflag.Flag{Name: name, Synced: synced}
	if synced {
		flag.SyncedAt = fromMillis(syncedAt)
	}
	return flag, nil
}

// MarkSynced sets name to synced at the given instant, replacing any prior value.
func (s *SyncFlags) MarkSynced(ctx context.Context, name string, at time.Time) error {
	name, err := s.check(ctx, name)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO sync_flags (name, synced, synced_at) VALUES (?, 1, ?)
		 ON CONFLICT(name) DO UPDATE SET synced = 1, synced_at = excluded.synced_at`,
		name, toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("mark sync flag %s: %w", name, err)
	}
	return nil
}

// Reset returns name to its default state.
func (s *SyncFlags) Reset(ctx context.Context, name string) error {
	name, err := s.check(ctx, name)
	if err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM sync_flags WHERE name = ?`, name); err != nil {
		return fmt.Errorf("reset sync flag %s: %w", name, err)
	}
	return nil
}

var _ syncflag.Store = (*SyncFlags)(nil)
