// Package main starts the local cache server: expiry sweeps, the first-run
// catalog import and the admin HTTP surface.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"local-cache/internal/api"
	"local-cache/internal/cache"
	"local-cache/internal/config"
	"local-cache/internal/entity"
	"local-cache/internal/logs"
	"local-cache/internal/metrics"
	"local-cache/internal/platform/otel"
	"local-cache/internal/remote"
	"local-cache/internal/seed"
	"local-cache/internal/store"
	"local-cache/internal/store/sqlite"
	"local-cache/internal/syncflag"
	boltflags "local-cache/internal/syncflag/bbolt"
	"local-cache/internal/ttl"
	"local-cache/internal/watch"
)

const serviceName = "local-cache"

func main() {
	cfg, err := config.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatalf("server: %v", err)
	}
}

func newLogger(cfg config.Config) (*logs.Logger, *zap.Logger, error) {
	level, err := logs.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(logs.ZapLevel(level))
	z, err := zcfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build zap logger: %w", err)
	}
	return logs.NewLogger(cfg.LogBuffer, level).WithSink(z.Named(serviceName)), z, nil
}

func run(ctx context.Context, cfg config.Config) error {
	// Logger
	logger, z, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = z.Sync() }()

	// Metrics + tracing
	metricsRegistry := metrics.NewRegistry()

	shutdownTracing, err := otel.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	// Record stores
	db, err := sqlite.Open(ctx, cfg.DBPath, sqlite.WithMetrics(metricsRegistry))
	if err != nil {
		return fmt.Errorf("open record store: %w", err)
	}
	defer db.Close()

	// Sync flags
	var flags syncflag.Store = db.SyncFlags()
	if cfg.FlagBackend == config.FlagBackendBbolt {
		boltStore, err := boltflags.Open(cfg.FlagPath)
		if err != nil {
			return fmt.Errorf("open sync flag store: %w", err)
		}
		defer boltStore.Close()
		flags = boltStore
	}

	// Change notifications
	hub := watch.NewHub(logger, metricsRegistry)
	defer hub.Close()

	users := watch.Wrap[int64, entity.User](hub, entity.KindUser, db.Users())
	games := watch.Wrap[int64, entity.Game](hub, entity.KindGame, db.Games())
	library := watch.Wrap[int64, entity.LibraryItem](hub, entity.KindLibraryItem, db.Library())

	// Coordinator
	opts := []cache.Option{cache.WithLogger(logger), cache.WithMetrics(metricsRegistry)}
	if cfg.ParallelSweep {
		opts = append(opts, cache.WithParallel())
	}
	coordinator, err := cache.NewCoordinator(map[entity.Kind]store.Sweeper{
		entity.KindUser:        users,
		entity.KindGame:        games,
		entity.KindLibraryItem: library,
	}, opts...)
	if err != nil {
		return err
	}

	// Catalog import
	var importer *seed.Importer
	if cfg.CatalogURL != "" {
		client := remote.NewCatalogClient(cfg.CatalogURL, logger)
		importer = seed.NewImporter(client.FetchGames, games, flags, time.Now, logger, metricsRegistry)
	} else {
		logger.Warn("catalog url not set, first-run import disabled")
	}

	// API
	deps := api.Deps{
		Cache: coordinator,
		Flags: flags,
		Watch: func(kind entity.Kind, deliver func(int)) (*watch.Subscription, error) {
			switch kind {
			case entity.KindUser:
				return watch.Subscribe[int64, entity.User](hub, kind, users, func(s []store.Cached[entity.User]) { deliver(len(s)) })
			case entity.KindGame:
				return watch.Subscribe[int64, entity.Game](hub, kind, games, func(s []store.Cached[entity.Game]) { deliver(len(s)) })
			case entity.KindLibraryItem:
				return watch.Subscribe[int64, entity.LibraryItem](hub, kind, library, func(s []store.Cached[entity.LibraryItem]) { deliver(len(s)) })
			}
			return nil, &ttl.ConfigurationError{Kind: kind}
		},
		Metrics: metricsRegistry,
		Logger:  logger,
		Clock:   time.Now,
	}
	if importer != nil {
		deps.Catalog = importer
	}
	g, gctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.RegisterRoutes(mux, api.NewHandler(deps), logger),
		ReadHeaderTimeout: 5 * time.Second,
		// Ends open watch streams on shutdown.
		BaseContext: func(net.Listener) context.Context { return gctx },
	}

	// TTL cleaner
	ttlCleaner := ttl.NewCleaner(coordinator, cfg.SweepInterval, logger, metricsRegistry)
	g.Go(func() error {
		ttlCleaner.Start(gctx)
		return nil
	})

	if importer != nil {
		g.Go(func() error {
			// A failed import is retried on the next start.
			_, _ = importer.Run(gctx)
			return nil
		})
	}

	g.Go(func() error {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("server shutting down")
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
