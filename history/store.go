// Package history persists content fingerprints per domain and path. The
// store holds the last fingerprint accepted by the backend: callers look it
// up to skip pushing unchanged content, and record only after a push
// succeeds.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS fingerprints (
	domain      TEXT NOT NULL,
	path        TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	updated_at  INTEGER NOT NULL,
	PRIMARY KEY (domain, path)
);
`

// Store is a fingerprint history backed by SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) a history database at path. Parent
// directories are created; WAL mode and a busy timeout are applied.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("history: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Lookup returns the stored fingerprint for domain+path, if any.
func (s *Store) Lookup(ctx context.Context, domain, path string) (string, bool, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM fingerprints WHERE domain = ? AND path = ?`,
		domain, path).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("history: lookup: %w", err)
	}
	return fp, true, nil
}

// Record stores (or replaces) the fingerprint for domain+path.
func (s *Store) Record(ctx context.Context, domain, path, fingerprint string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fingerprints (domain, path, fingerprint, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (domain, path) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			updated_at  = excluded.updated_at`,
		domain, path, fingerprint, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("history: record: %w", err)
	}
	return nil
}
