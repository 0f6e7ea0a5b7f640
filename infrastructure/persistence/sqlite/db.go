// Package sqlite implements the persistence ports on a local SQLite
// database, the authoritative store behind the presence cache.
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// DB wraps the shared database handle.
type DB struct {
	conn   *sql.DB
	logger *zap.Logger
}

// Open opens (and creates if needed) the database file and applies the
// schema. Use ":memory:" for an ephemeral database in tests.
func Open(path string, logger *zap.Logger) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set synchronous pragma: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to verify database connection: %w", err)
	}

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	logger.Info("Database opened", zap.String("path", path))
	return db, nil
}

// Conn exposes the raw handle for health checks.
func (db *DB) Conn() *sql.DB { return db.conn }

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         TEXT PRIMARY KEY,
	username   TEXT NOT NULL UNIQUE,
	email      TEXT NOT NULL UNIQUE,
	avatar     TEXT NOT NULL DEFAULT '',
	is_online  INTEGER NOT NULL DEFAULT 0,
	last_seen  TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS diagrams (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	bpmn_xml      TEXT NOT NULL DEFAULT '',
	owner_id      TEXT NOT NULL REFERENCES users(id),
	collaborators TEXT NOT NULL DEFAULT '[]',
	is_public     INTEGER NOT NULL DEFAULT 0,
	version       INTEGER NOT NULL DEFAULT 1,
	last_modified TIMESTAMP NOT NULL,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_diagrams_owner ON diagrams(owner_id);

CREATE TABLE IF NOT EXISTS collab_sessions (
	id           TEXT PRIMARY KEY,
	diagram_id   TEXT NOT NULL,
	participants TEXT NOT NULL DEFAULT '[]',
	is_active    INTEGER NOT NULL DEFAULT 1,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_diagram ON collab_sessions(diagram_id, is_active);
`
	if _, err := db.conn.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
