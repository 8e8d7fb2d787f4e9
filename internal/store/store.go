// Package store persists canonical messages, employee identities, and the
// downstream review queue in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database backing the sync pipeline.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at dbPath and applies the
// schema.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection: SQLite serializes writers anyway, and one
	// connection keeps the busy-timeout behavior predictable under the
	// concurrent upserts the batch scheduler produces.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		display_name  TEXT,
		active        INTEGER NOT NULL DEFAULT 1,
		created_at    DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at    DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_employees_email ON employees(email);

	CREATE TABLE IF NOT EXISTS messages (
		id                   INTEGER PRIMARY KEY AUTOINCREMENT,
		provider             TEXT NOT NULL,
		provider_message_id  TEXT NOT NULL,
		owner_email          TEXT NOT NULL,
		sender_email         TEXT,
		sender_name          TEXT,
		recipients           TEXT, -- JSON array, ordered
		subject              TEXT,
		body_text            TEXT,
		body_html            TEXT,
		sent_at              DATETIME,
		has_attachments      INTEGER NOT NULL DEFAULT 0,
		direction            TEXT NOT NULL,
		risk_score           INTEGER NOT NULL DEFAULT 0,
		flagged              INTEGER NOT NULL DEFAULT 0,
		category             TEXT,
		created_at           DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at           DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(provider, provider_message_id, owner_email)
	);
	CREATE INDEX IF NOT EXISTS idx_messages_owner ON messages(owner_email, sent_at);
	CREATE INDEX IF NOT EXISTS idx_messages_flagged ON messages(flagged) WHERE flagged = 1;

	CREATE TABLE IF NOT EXISTS review_queue (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		employee_id  TEXT NOT NULL,
		reason       TEXT NOT NULL,
		status       TEXT NOT NULL DEFAULT 'pending',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_review_status ON review_queue(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
