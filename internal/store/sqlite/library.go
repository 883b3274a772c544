package sqlite

import (
	"context"

	"local-cache/internal/entity"
	"local-cache/internal/store"
)

const libraryColumns = `id, user_id, game_id, name, price, date_added, status, genre, cached_at`

// Library persists cached library ownership entries.
type Library struct {
	table
}

func scanLibraryItem(row scanner) (store.Cached[entity.LibraryItem], error) {
	var (
		item     entity.LibraryItem
		cachedAt int64
	)
	err := row.Scan(
		&item.ID,
		&item.UserID,
		&item.GameID,
		&item.Name,
		&item.Price,
		&item.DateAdded,
		&item.Status,
		&item.Genre,
		&cachedAt,
	)
	if err != nil {
		return store.Cached[entity.LibraryItem]{}, err
	}
	return store.Cached[entity.LibraryItem]{Record: item, CachedAt: fromMillis(cachedAt)}, nil
}

func (s *Library) values(item entity.LibraryItem) []any {
	return []any{
		item.ID,
		item.UserID,
		item.GameID,
		item.Name,
		item.Price,
		item.DateAdded,
		item.Status,
		item.Genre,
		s.now(),
	}
}

// InsertIfAbsent caches item unless an entry with the same ID is cached.
func (s *Library) InsertIfAbsent(ctx context.Context, item entity.LibraryItem) (bool, error) {
	return s.insert(ctx,
		`INSERT OR IGNORE INTO library_items (`+libraryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.values(item)...)
}

// Put caches item, replacing a cached entry with the same ID.
func (s *Library) Put(ctx context.Context, item entity.LibraryItem) error {
	return s.upsert(ctx,
		`INSERT INTO library_items (`+libraryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   user_id = excluded.user_id,
		   game_id = excluded.game_id,
		   name = excluded.name,
		   price = excluded.price,
		   date_added = excluded.date_added,
		   status = excluded.status,
		   genre = excluded.genre,
		   cached_at = excluded.cached_at`,
		s.values(item)...)
}

// GetByKey returns one cached library entry.
func (s *Library) GetByKey(ctx context.Context, id int64) (store.Cached[entity.LibraryItem], error) {
	return queryOne(ctx, s.table, "get", scanLibraryItem,
		`SELECT `+libraryColumns+` FROM library_items WHERE id = ?`, id)
}

// GetAll returns every cached library entry ordered by ID.
func (s *Library) GetAll(ctx context.Context) ([]store.Cached[entity.LibraryItem], error) {
	return queryAll(ctx, s.table, "get_all", scanLibraryItem,
		`SELECT `+libraryColumns+` FROM library_items ORDER BY id ASC`)
}

// ListByUser returns the cached library of one user.
func (s *Library) ListByUser(ctx context.Context, userID int64) ([]store.Cached[entity.LibraryItem], error) {
	return queryAll(ctx, s.table, "list_by_user", scanLibraryItem,
		`SELECT `+libraryColumns+` FROM library_items WHERE user_id = ? ORDER BY id ASC`, userID)
}

// UserOwnsGame reports whether the cached library of userID contains gameID.
func (s *Library) UserOwnsGame(ctx context.Context, userID int64, gameID string) (bool, error) {
	if err := s.check(ctx); err != nil {
		return false, err
	}
	var n int
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM library_items WHERE user_id = ? AND game_id = ?`,
		userID, gameID,
	).Scan(&n)
	if err != nil {
		return false, s.fail("user_owns_game", err)
	}
	return n > 0, nil
}

var _ store.LibraryTable = (*Library)(nil)
