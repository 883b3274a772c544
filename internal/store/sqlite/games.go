package sqlite

import (
	"context"

	"local-cache/internal/entity"
	"local-cache/internal/store"
)

const gameColumns = `id, remote_id, name, description, price, stock, image_url, developer,
       release_date, category_id, genre_id, active, discount, cached_at`

// Games persists cached catalog entries.
type Games struct {
	table
}

func scanGame(row scanner) (store.Cached[entity.Game], error) {
	var (
		g        entity.Game
		cachedAt int64
	)
	err := row.Scan(
		&g.ID,
		&g.RemoteID,
		&g.Name,
		&g.Description,
		&g.Price,
		&g.Stock,
		&g.ImageURL,
		&g.Developer,
		&g.ReleaseDate,
		&g.CategoryID,
		&g.GenreID,
		&g.Active,
		&g.Discount,
		&cachedAt,
	)
	if err != nil {
		return store.Cached[entity.Game]{}, err
	}
	return store.Cached[entity.Game]{Record: g, CachedAt: fromMillis(cachedAt)}, nil
}

func (s *Games) values(g entity.Game) []any {
	return []any{
		g.ID,
		g.RemoteID,
		g.Name,
		g.Description,
		g.Price,
		g.Stock,
		g.ImageURL,
		g.Developer,
		g.ReleaseDate,
		g.CategoryID,
		g.GenreID,
		g.Active,
		g.Discount,
		s.now(),
	}
}

// InsertIfAbsent caches g unless a game with the same ID is cached.
func (s *Games) InsertIfAbsent(ctx context.Context, g entity.Game) (bool, error) {
	return s.insert(ctx,
		`INSERT OR IGNORE INTO games (`+gameColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.values(g)...)
}

// Put caches g, replacing a cached game with the same ID.
func (s *Games) Put(ctx context.Context, g entity.Game) error {
	return s.upsert(ctx,
		`INSERT INTO games (`+gameColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   remote_id = excluded.remote_id,
		   name = excluded.name,
		   description = excluded.description,
		   price = excluded.price,
		   stock = excluded.stock,
		   image_url = excluded.image_url,
		   developer = excluded.developer,
		   release_date = excluded.release_date,
		   category_id = excluded.category_id,
		   genre_id = excluded.genre_id,
		   active = excluded.active,
		   discount = excluded.discount,
		   cached_at = excluded.cached_at`,
		s.values(g)...)
}

// GetByKey returns one cached game.
func (s *Games) GetByKey(ctx context.Context, id int64) (store.Cached[entity.Game], error) {
	return queryOne(ctx, s.table, "get", scanGame,
		`SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
}

// GetAll returns every cached game ordered by ID, active or not.
func (s *Games) GetAll(ctx context.Context) ([]store.Cached[entity.Game], error) {
	return queryAll(ctx, s.table, "get_all", scanGame,
		`SELECT `+gameColumns+` FROM games ORDER BY id ASC`)
}

// ListActive returns the cached games still offered in the catalog.
func (s *Games) ListActive(ctx context.Context) ([]store.Cached[entity.Game], error) {
	return queryAll(ctx, s.table, "list_active", scanGame,
		`SELECT `+gameColumns+` FROM games WHERE active = 1 ORDER BY id ASC`)
}

var _ store.GameTable = (*Games)(nil)
