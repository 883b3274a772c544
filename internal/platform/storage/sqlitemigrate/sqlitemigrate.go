// Package sqlitemigrate applies embedded SQL migrations to a SQLite database.
package sqlitemigrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"
)

const migrationTable = "schema_migrations"

const (
	upMarker   = "-- +migrate Up"
	downMarker = "-- +migrate Down"
)

// Apply executes the .sql files under root in name order, each at most once.
// Every file runs in its own transaction together with its bookkeeping row.
func Apply(ctx context.Context, db *sql.DB, migrationFS fs.FS, root string) error {
	if db == nil {
		return errors.New("sql db is required")
	}
	root = strings.TrimSpace(root)
	if root == "" {
		root = "."
	}

	entries, err := fs.ReadDir(migrationFS, root)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+migrationTable+` (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range files {
		content, err := fs.ReadFile(migrationFS, path.Join(root, file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}

		applied, err := isApplied(ctx, db, file)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", file, err)
		}
		if applied {
			continue
		}

		up := UpSection(string(content))
		if strings.TrimSpace(up) == "" {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx, up); err != nil && !isAlreadyExists(err) {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, time.Now().UTC().UnixMilli(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// UpSection returns the SQL between the Up and Down markers. Files without
// markers are returned whole.
func UpSection(content string) string {
	upIdx := strings.Index(content, upMarker)
	if upIdx == -1 {
		return content
	}
	rest := content[upIdx+len(upMarker):]
	if downIdx := strings.Index(rest, downMarker); downIdx != -1 {
		return rest[:downIdx]
	}
	return rest
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate column name")
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var found int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM "+migrationTable+" WHERE name = ?", name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
