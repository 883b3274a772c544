// Package config loads server configuration from the environment and flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"local-cache/internal/logs"
)

// Flag store backends.
const (
	FlagBackendSQLite = "sqlite"
	FlagBackendBbolt  = "bbolt"
)

// Config holds server configuration.
type Config struct {
	DBPath        string        `env:"LOCALCACHE_DB_PATH" envDefault:"local-cache.db"`
	FlagBackend   string        `env:"LOCALCACHE_FLAG_BACKEND" envDefault:"sqlite"`
	FlagPath      string        `env:"LOCALCACHE_FLAG_PATH" envDefault:"sync-flags.bolt"`
	HTTPAddr      string        `env:"LOCALCACHE_HTTP_ADDR" envDefault:":8080"`
	SweepInterval time.Duration `env:"LOCALCACHE_SWEEP_INTERVAL" envDefault:"5m"`
	ParallelSweep bool          `env:"LOCALCACHE_PARALLEL_SWEEP" envDefault:"false"`
	CatalogURL    string        `env:"LOCALCACHE_CATALOG_URL"`
	LogLevel      string        `env:"LOCALCACHE_LOG_LEVEL" envDefault:"info"`
	LogBuffer     int           `env:"LOCALCACHE_LOG_BUFFER" envDefault:"1000"`
	OTelEndpoint  string        `env:"LOCALCACHE_OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseConfig parses environment and then flags into Config. Flags win.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database file for cached records")
	fs.StringVar(&cfg.FlagBackend, "flag-backend", cfg.FlagBackend, "Sync flag store: sqlite or bbolt")
	fs.StringVar(&cfg.FlagPath, "flag-path", cfg.FlagPath, "bbolt file for sync flags")
	fs.StringVar(&cfg.HTTPAddr, "addr", cfg.HTTPAddr, "Admin HTTP listen address")
	fs.DurationVar(&cfg.SweepInterval, "sweep-interval", cfg.SweepInterval, "Interval between expiry sweeps")
	fs.BoolVar(&cfg.ParallelSweep, "parallel-sweep", cfg.ParallelSweep, "Sweep entity kinds concurrently")
	fs.StringVar(&cfg.CatalogURL, "catalog-url", cfg.CatalogURL, "Base URL of the game catalog service")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	switch c.FlagBackend {
	case FlagBackendSQLite:
	case FlagBackendBbolt:
		if c.FlagPath == "" {
			return errors.New("bbolt flag backend requires a flag path")
		}
	default:
		return fmt.Errorf("unknown flag backend %q", c.FlagBackend)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive, got %s", c.SweepInterval)
	}
	if c.LogBuffer < 0 {
		return fmt.Errorf("log buffer must not be negative, got %d", c.LogBuffer)
	}
	if _, err := logs.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}
