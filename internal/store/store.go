// Package store defines the Record Store contract shared by every cached
// entity kind, and an in-memory implementation of it.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"local-cache/internal/entity"
)

// ErrNotFound indicates a requested record is not cached.
var ErrNotFound = errors.New("record not found")

// StorageError reports a failure of the engine backing a record store.
type StorageError struct {
	Kind entity.Kind
	Op   string
	Err  error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns err as a *StorageError for kind and op.
// Nil, ErrNotFound, context errors and existing StorageErrors pass through.
func Wrap(kind entity.Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StorageError{Kind: kind, Op: op, Err: err}
}

// Cached pairs a record with the instant it was written into the store.
// CachedAt is assigned by the store and cannot be set by callers.
type Cached[R any] struct {
	Record   R         `json:"record"`
	CachedAt time.Time `json:"cached_at"`
}

// Sweeper is the kind-agnostic part of a record store used by the cache
// coordinator.
type Sweeper interface {
	// DeleteOlderThan removes every record cached strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	// ClearAll removes every record.
	ClearAll(ctx context.Context) (int, error)
}

// Table is the Record Store for one entity kind.
type Table[K comparable, R any] interface {
	Sweeper

	// InsertIfAbsent writes record stamped with the store clock. An existing
	// record with the same key is left untouched and written is false.
	InsertIfAbsent(ctx context.Context, record R) (written bool, err error)
	// Put writes record stamped with the store clock, replacing any cached
	// record with the same key. Re-synced records use it to refresh cached-at.
	Put(ctx context.Context, record R) error
	Exists(ctx context.Context, key K) (bool, error)
	// GetByKey returns ErrNotFound when key is not cached.
	GetByKey(ctx context.Context, key K) (Cached[R], error)
	// GetAll returns a snapshot ordered by key.
	GetAll(ctx context.Context) ([]Cached[R], error)
	// DeleteByKey is a no-op when key is not cached.
	DeleteByKey(ctx context.Context, key K) error
}

// UserTable caches user profiles.
type UserTable interface {
	Table[int64, entity.User]
	GetByEmail(ctx context.Context, email string) (Cached[entity.User], error)
}

// GameTable caches catalog entries.
type GameTable interface {
	Table[int64, entity.Game]
	ListActive(ctx context.Context) ([]Cached[entity.Game], error)
}

// LibraryTable caches library ownership entries.
type LibraryTable interface {
	Table[int64, entity.LibraryItem]
	ListByUser(ctx context.Context, userID int64) ([]Cached[entity.LibraryItem], error)
	UserOwnsGame(ctx context.Context, userID int64, gameID string) (bool, error)
}
