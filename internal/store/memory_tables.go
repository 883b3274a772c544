package store

import (
	"context"
	"time"

	"local-cache/internal/entity"
	"local-cache/internal/metrics"
)

// MemoryUsers is an in-memory UserTable.
type MemoryUsers struct {
	*Memory[int64, entity.User]
}

// NewMemoryUsers creates an empty in-memory user table.
func NewMemoryUsers(clock func() time.Time, reg *metrics.Registry) *MemoryUsers {
	return &MemoryUsers{NewMemory(entity.KindUser, entity.UserKey, clock, reg)}
}

func (s *MemoryUsers) InsertIfAbsent(ctx context.Context, u entity.User) (bool, error) {
	return s.Memory.InsertIfAbsent(ctx, u.Normalized())
}

func (s *MemoryUsers) Put(ctx context.Context, u entity.User) error {
	return s.Memory.Put(ctx, u.Normalized())
}

// GetByEmail returns the user with the given email, ignoring ASCII case.
func (s *MemoryUsers) GetByEmail(ctx context.Context, email string) (Cached[entity.User], error) {
	matches, err := s.Filter(ctx, func(u entity.User) bool {
		return entity.SameEmail(u.Email, email)
	})
	if err != nil {
		return Cached[entity.User]{}, err
	}
	if len(matches) == 0 {
		return Cached[entity.User]{}, ErrNotFound
	}
	return matches[0], nil
}

// MemoryGames is an in-memory GameTable.
type MemoryGames struct {
	*Memory[int64, entity.Game]
}

// NewMemoryGames creates an empty in-memory game table.
func NewMemoryGames(clock func() time.Time, reg *metrics.Registry) *MemoryGames {
	return &MemoryGames{NewMemory(entity.KindGame, entity.GameKey, clock, reg)}
}

// ListActive returns the games still offered in the catalog.
func (s *MemoryGames) ListActive(ctx context.Context) ([]Cached[entity.Game], error) {
	return s.Filter(ctx, func(g entity.Game) bool { return g.Active })
}

// MemoryLibrary is an in-memory LibraryTable.
type MemoryLibrary struct {
	*Memory[int64, entity.LibraryItem]
}

// NewMemoryLibrary creates an empty in-memory library table.
func NewMemoryLibrary(clock func() time.Time, reg *metrics.Registry) *MemoryLibrary {
	return &MemoryLibrary{NewMemory(entity.KindLibraryItem, entity.LibraryItemKey, clock, reg)}
}

// ListByUser returns the library of one user.
func (s *MemoryLibrary) ListByUser(ctx context.Context, userID int64) ([]Cached[entity.LibraryItem], error) {
	return s.Filter(ctx, func(item entity.LibraryItem) bool { return item.UserID == userID })
}

// UserOwnsGame reports whether userID has gameID in their library.
func (s *MemoryLibrary) UserOwnsGame(ctx context.Context, userID int64, gameID string) (bool, error) {
	items, err := s.Filter(ctx, func(item entity.LibraryItem) bool {
		return item.UserID == userID && item.GameID == gameID
	})
	if err != nil {
		return false, err
	}
	return len(items) > 0, nil
}

var (
	_ UserTable    = (*MemoryUsers)(nil)
	_ GameTable    = (*MemoryGames)(nil)
	_ LibraryTable = (*MemoryLibrary)(nil)
)
