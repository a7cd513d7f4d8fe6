// Package db stores the hub's profile configuration in SQLite.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB wraps a SQLite connection pool with the hub's stores.
type DB struct {
	*sql.DB
	path string
}

// Open opens or creates the database at path. An empty path selects the
// per-user config directory. WAL and foreign keys are enabled.
func Open(path string) (*DB, error) {
	if path == "" {
		var err error
		if path, err = defaultDBPath(); err != nil {
			return nil, fmt.Errorf("failed to determine database path: %w", err)
		}
	}

	dsn := path
	if path == MemoryPath {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	} else {
		if strings.HasPrefix(path, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to expand home directory: %w", err)
			}
			path = filepath.Join(home, path[1:])
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		// Every pooled connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &DB{DB: sqlDB, path: path}, nil
}

// OpenAndMigrate opens the database, migrates it and seeds first-run data.
func OpenAndMigrate(ctx context.Context, path string) (*DB, error) {
	d, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := d.Migrate(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	if err := d.Bootstrap(ctx); err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("failed to bootstrap database: %w", err)
	}
	return d, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// Tx runs fn in a transaction, rolling back if fn fails.
func (db *DB) Tx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// defaultDBPath honours XDG_CONFIG_HOME and falls back to ~/.config.
func defaultDBPath() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "homai-hub", "hub.db"), nil
}
