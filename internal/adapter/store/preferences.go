package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"relaychat/internal/infra/watch"
)

// Preferences is an observable key-value store persisted in SQLite.
// Every successful write bumps a revision that observers can watch.
type Preferences struct {
	db       *sql.DB
	revision *watch.Value[uint64]
}

// OpenPreferences opens (or creates) a SQLite database at dbPath and runs the
// schema migration. Use ":memory:" for a throwaway store.
func OpenPreferences(dbPath string) (*Preferences, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open preferences db: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and serializes writers.
	db.SetMaxOpenConns(1)
	if dbPath != ":memory:" {
		// WAL mode for better concurrent reads.
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate preferences db: %w", err)
	}
	return &Preferences{db: db, revision: watch.New[uint64](0)}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database connection.
func (p *Preferences) Close() error {
	return p.db.Close()
}

// Get returns the value stored under key. ok is false when the key is absent.
func (p *Preferences) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	row := p.db.QueryRowContext(ctx, "SELECT value FROM preferences WHERE key = ?", key)
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read preference %q: %w", key, err)
	}
	return value, true, nil
}

// SetAll upserts every entry in one transaction. An empty value deletes the key.
func (p *Preferences) SetAll(ctx context.Context, entries map[string]string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin preferences tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for k, v := range entries {
		if v == "" {
			if _, err := tx.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", k); err != nil {
				return fmt.Errorf("delete preference %q: %w", k, err)
			}
			continue
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			k, v, now,
		)
		if err != nil {
			return fmt.Errorf("write preference %q: %w", k, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit preferences: %w", err)
	}

	p.revision.Update(func(r uint64) uint64 { return r + 1 })
	return nil
}

// Set upserts a single key.
func (p *Preferences) Set(ctx context.Context, key, value string) error {
	return p.SetAll(ctx, map[string]string{key: value})
}

// Watch emits the current revision immediately and every later revision
// until ctx is done.
func (p *Preferences) Watch(ctx context.Context) <-chan uint64 {
	return p.revision.Subscribe(ctx)
}
