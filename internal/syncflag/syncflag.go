// Package syncflag records whether one-time bulk synchronizations have
// already happened, so they stay idempotent across process restarts.
package syncflag

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// GamesImported guards the first-run import of the remote game catalog.
const GamesImported = "games"

// ErrNameRequired is returned for an empty flag name.
var ErrNameRequired = errors.New("sync flag name is required")

// Flag is the persisted state of one sync marker.
type Flag struct {
	Name     string    `json:"name"`
	Synced   bool      `json:"synced"`
	SyncedAt time.Time `json:"synced_at,omitempty"`
}

// Store persists sync flags. Every write is visible to the next read on
// return.
type Store interface {
	// IsSynced is false for a flag that was never marked.
	IsSynced(ctx context.Context, name string) (bool, error)
	// MarkSynced overwrites any prior state of name.
	MarkSynced(ctx context.Context, name string, at time.Time) error
	// LastSyncedAt reports false when name is not synced.
	LastSyncedAt(ctx context.Context, name string) (time.Time, bool, error)
	// Reset clears both the synced bit and its timestamp.
	Reset(ctx context.Context, name string) error
}

// Once runs fn unless name is already synced, and marks name synced at
// clock() when fn succeeds. ran reports whether fn was invoked.
func Once(ctx context.Context, flags Store, name string, clock func() time.Time, fn func(context.Context) error) (ran bool, err error) {
	synced, err := flags.IsSynced(ctx, name)
	if err != nil {
		return false, fmt.Errorf("check sync flag %s: %w", name, err)
	}
	if synced {
		return false, nil
	}
	if err := fn(ctx); err != nil {
		return true, err
	}
	if clock == nil {
		clock = time.Now
	}
	if err := flags.MarkSynced(ctx, name, clock()); err != nil {
		return true, fmt.Errorf("mark sync flag %s: %w", name, err)
	}
	return true, nil
}
