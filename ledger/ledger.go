// Package ledger records ingested objects and dispatch run outcomes in a
// SQLite database.
package ledger

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Ledger is a SQLite-backed record of ingestion state and run outcomes.
// Conversation history is never stored.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the database at path. The special path ":memory:"
// opens a private in-memory database.
func Open(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// In-memory databases exist per connection.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("exec %s: %w", p, err)
		}
	}

	l := &Ledger{db: db}
	if err := l.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return l, nil
}

// Close closes the database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS ingested_objects (
			bucket      TEXT NOT NULL,
			object_key  TEXT NOT NULL,
			etag        TEXT NOT NULL,
			document_id TEXT NOT NULL,
			class       TEXT NOT NULL,
			indexed_at  DATETIME NOT NULL,
			PRIMARY KEY (bucket, object_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingested_document ON ingested_objects(document_id)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			task        TEXT NOT NULL,
			outcome     TEXT,
			turns       INTEGER DEFAULT 0,
			error       TEXT,
			started_at  DATETIME NOT NULL,
			finished_at DATETIME
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,
	}

	for _, m := range migrations {
		if _, err := l.db.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}

	return nil
}
