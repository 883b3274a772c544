// Package seed imports the remote game catalog into the local cache.
package seed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"local-cache/internal/entity"
	"local-cache/internal/logs"
	"local-cache/internal/metrics"
	"local-cache/internal/store"
	"local-cache/internal/syncflag"
)

// Fetcher loads the full catalog from the remote service.
type Fetcher func(ctx context.Context) ([]entity.Game, error)

// Importer copies the remote catalog into the game table.
type Importer struct {
	fetch   Fetcher
	games   store.Table[int64, entity.Game]
	flags   syncflag.Store
	clock   func() time.Time
	logger  *logs.Logger
	metrics *metrics.Registry
}

func NewImporter(
	fetch Fetcher,
	games store.Table[int64, entity.Game],
	flags syncflag.Store,
	clock func() time.Time,
	logger *logs.Logger,
	reg *metrics.Registry,
) *Importer {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = logs.NewLogger(0, logs.INFO)
	}
	return &Importer{
		fetch:   fetch,
		games:   games,
		flags:   flags,
		clock:   clock,
		logger:  logger,
		metrics: reg,
	}
}

// Run performs the first-run import once per installation. It is skipped when
// the catalog was already imported; a failed import leaves the flag unset so
// the next start tries again.
func (im *Importer) Run(ctx context.Context) (imported bool, err error) {
	im.metrics.Inc(metrics.SeedRunsTotal)

	ran, err := syncflag.Once(ctx, im.flags, syncflag.GamesImported, im.clock, func(ctx context.Context) error {
		games, err := im.fetch(ctx)
		if err != nil {
			return fmt.Errorf("fetch catalog: %w", err)
		}
		n, err := im.insert(ctx, games)
		if err != nil {
			return err
		}
		im.logger.Info("game catalog imported", zap.Int("fetched", len(games)), zap.Int("inserted", n))
		return nil
	})
	if err != nil {
		im.metrics.Inc(metrics.SeedFailuresTotal)
		im.logger.Failure("game catalog import failed", err)
		return false, err
	}
	if !ran {
		im.metrics.Inc(metrics.SeedSkippedTotal)
		im.logger.Debug("game catalog already imported")
	}
	return ran, nil
}

// Refresh replaces the cached catalog with the remote one regardless of the
// import flag. Every fetched game is written with a fresh cached-at before
// games missing from the catalog are dropped, so readers never see an empty
// table. Nothing changes when the fetch fails.
func (im *Importer) Refresh(ctx context.Context) (int, error) {
	games, err := im.fetch(ctx)
	if err != nil {
		im.metrics.Inc(metrics.SeedFailuresTotal)
		return 0, fmt.Errorf("fetch catalog: %w", err)
	}

	listed := make(map[int64]struct{}, len(games))
	for i, g := range games {
		if err := im.games.Put(ctx, g); err != nil {
			im.metrics.Inc(metrics.SeedFailuresTotal)
			return i, fmt.Errorf("put game %d: %w", g.ID, err)
		}
		listed[g.ID] = struct{}{}
	}
	im.metrics.Add(metrics.SeedRecordsTotal, int64(len(games)))

	cached, err := im.games.GetAll(ctx)
	if err != nil {
		im.metrics.Inc(metrics.SeedFailuresTotal)
		return len(games), fmt.Errorf("list games: %w", err)
	}
	removed := 0
	for _, c := range cached {
		if _, ok := listed[c.Record.ID]; ok {
			continue
		}
		if err := im.games.DeleteByKey(ctx, c.Record.ID); err != nil {
			im.metrics.Inc(metrics.SeedFailuresTotal)
			return len(games), fmt.Errorf("drop game %d: %w", c.Record.ID, err)
		}
		removed++
	}

	im.logger.Info("game catalog refreshed", zap.Int("written", len(games)), zap.Int("removed", removed))
	return len(games), nil
}

func (im *Importer) insert(ctx context.Context, games []entity.Game) (int, error) {
	inserted := 0
	for _, g := range games {
		written, err := im.games.InsertIfAbsent(ctx, g)
		if err != nil {
			return inserted, fmt.Errorf("insert game %d: %w", g.ID, err)
		}
		if written {
			inserted++
		}
	}
	im.metrics.Add(metrics.SeedRecordsTotal, int64(inserted))
	return inserted, nil
}
