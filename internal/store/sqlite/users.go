package sqlite

import (
	"context"
	"strings"

	"local-cache/internal/entity"
	"local-cache/internal/store"
)

const userColumns = `id, remote_id, name, email, phone, profile_photo_uri, cached_at`

// Users persists cached user profiles.
type Users struct {
	table
}

func scanUser(row scanner) (store.Cached[entity.User], error) {
	var (
		u        entity.User
		cachedAt int64
	)
	if err := row.Scan(&u.ID, &u.RemoteID, &u.Name, &u.Email, &u.Phone, &u.ProfilePhotoURI, &cachedAt); err != nil {
		return store.Cached[entity.User]{}, err
	}
	return store.Cached[entity.User]{Record: u, CachedAt: fromMillis(cachedAt)}, nil
}

func (s *Users) values(u entity.User) []any {
	u = u.Normalized()
	return []any{u.ID, u.RemoteID, u.Name, u.Email, u.Phone, u.ProfilePhotoURI, s.now()}
}

// InsertIfAbsent caches u unless a user with the same ID is cached.
func (s *Users) InsertIfAbsent(ctx context.Context, u entity.User) (bool, error) {
	return s.insert(ctx,
		`INSERT OR IGNORE INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.values(u)...)
}

// Put caches u, replacing a cached user with the same ID.
func (s *Users) Put(ctx context.Context, u entity.User) error {
	return s.upsert(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   remote_id = excluded.remote_id,
		   name = excluded.name,
		   email = excluded.email,
		   phone = excluded.phone,
		   profile_photo_uri = excluded.profile_photo_uri,
		   cached_at = excluded.cached_at`,
		s.values(u)...)
}

// GetByKey returns one cached user.
func (s *Users) GetByKey(ctx context.Context, id int64) (store.Cached[entity.User], error) {
	return queryOne(ctx, s.table, "get", scanUser,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetAll returns every cached user ordered by ID.
func (s *Users) GetAll(ctx context.Context) ([]store.Cached[entity.User], error) {
	return queryAll(ctx, s.table, "get_all", scanUser,
		`SELECT `+userColumns+` FROM users ORDER BY id ASC`)
}

// GetByEmail returns the cached user with the given email, ignoring case.
func (s *Users) GetByEmail(ctx context.Context, email string) (store.Cached[entity.User], error) {
	return queryOne(ctx, s.table, "get_by_email", scanUser,
		`SELECT `+userColumns+` FROM users WHERE email = ? COLLATE NOCASE ORDER BY id ASC LIMIT 1`,
		strings.TrimSpace(email))
}

var _ store.UserTable = (*Users)(nil)
