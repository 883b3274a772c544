// Package bbolt provides a BoltDB-backed sync flag store, for deployments
// that keep sync markers in a file separate from the record cache.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"local-cache/internal/syncflag"
)

const flagBucket = "sync_flags"

// Store persists sync flags in a single bucket, one JSON value per name.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed flag store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open flag db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(flagBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create flag bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) check(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s == nil || s.db == nil {
		return "", fmt.Errorf("storage is not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", syncflag.ErrNameRequired
	}
	return name, nil
}

// Get returns the stored flag or its default state.
func (s *Store) Get(ctx context.Context, name string) (syncflag.Flag, error) {
	name, err := s.check(ctx, name)
	if err != nil {
		return syncflag.Flag{}, err
	}

	flag := syncflag.Flag{Name: name}
	err = s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flagBucket))
		if bucket == nil {
			return fmt.Errorf("flag bucket is missing")
		}
		payload := bucket.Get([]byte(name))
		if payload == nil {
			return nil
		}
		return json.Unmarshal(payload, &flag)
	})
	if err != nil {
		return syncflag.Flag{}, fmt.Errorf("get sync flag %s: %w", name, err)
	}
	return flag, nil
}

func (s *Store) IsSynced(ctx context.Context, name string) (bool, error) {
	flag, err := s.Get(ctx, name)
	if err != nil {
		return false, err
	}
	return flag.Synced, nil
}

func (s *Store) LastSyncedAt(ctx context.Context, name string) (time.Time, bool, error) {
	flag, err := s.Get(ctx, name)
	if err != nil {
		return time.Time{}, false, err
	}
	if !flag.Synced {
		return time.Time{}, false, nil
	}
	return flag.SyncedAt, true, nil
}

// MarkSynced writes the flag in one committed transaction.
func (s *Store) MarkSynced(ctx context.Context, name string, at time.Time) error {
	name, err := s.check(ctx, name)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(syncflag.Flag{Name: name, Synced: true, SyncedAt: at.UTC()})
	if err != nil {
		return fmt.Errorf("marshal sync flag: %w", err)
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flagBucket))
		if bucket == nil {
			return fmt.Errorf("flag bucket is missing")
		}
		return bucket.Put([]byte(name), payload)
	})
	if err != nil {
		return fmt.Errorf("mark sync flag %s: %w", name, err)
	}
	return nil
}

func (s *Store) Reset(ctx context.Context, name string) error {
	name, err := s.check(ctx, name)
	if err != nil {
		return err
	}
	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(flagBucket))
		if bucket == nil {
			return fmt.Errorf("flag bucket is missing")
		}
		return bucket.Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("reset sync flag %s: %w", name, err)
	}
	return nil
}

var _ syncflag.Store = (*Store)(nil)
