// Package db provides the run history schema and query operations.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
-- One row per compile, upload or flash invocation
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	project TEXT NOT NULL,
	operation TEXT NOT NULL CHECK(operation IN ('compile', 'upload', 'flash')),
	status TEXT NOT NULL CHECK(status IN ('ok', 'failed')),
	exit_code INTEGER NOT NULL DEFAULT 0,
	error TEXT,
	stderr_tail TEXT,
	image_bytes INTEGER NOT NULL DEFAULT 0,
	started_at INTEGER NOT NULL, -- unix milliseconds
	duration_ms INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_project ON runs(project);
CREATE INDEX IF NOT EXISTS idx_runs_operation ON runs(operation);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
`

// InitDatabase creates and initializes a SQLite database with the schema.
// It creates the directory structure if it doesn't exist.
func InitDatabase(dbPath string) (*sql.DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection; concurrent writers would hit SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// ClearHistory removes all recorded runs.
func ClearHistory(db *sql.DB) error {
	if _, err := db.Exec("DELETE FROM runs"); err != nil {
		return fmt.Errorf("failed to clear runs: %w", err)
	}
	return nil
}
