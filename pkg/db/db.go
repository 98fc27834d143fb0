// Package db owns the SQLite connection and schema.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	d := &DB{db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS session (
			id TEXT PRIMARY KEY,
			field_id TEXT,
			equipment_id TEXT,
			storage_id TEXT,
			manure_color TEXT,
			spread_width_ft REAL NOT NULL,
			capacity_gallons REAL,
			load_count INTEGER,
			target_rate REAL,
			start_time TIMESTAMP NOT NULL,
			end_time TIMESTAMP,
			distance_m REAL NOT NULL DEFAULT 0,
			acres REAL,
			calculated_rate REAL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS session_point (
			session_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			time TIMESTAMP NOT NULL,
			accuracy REAL,
			heading REAL,
			speed REAL,
			PRIMARY KEY (session_id, seq),
			FOREIGN KEY (session_id) REFERENCES session(id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_session_field ON session(field_id)`,
		`CREATE INDEX IF NOT EXISTS idx_session_start ON session(start_time)`,
	}

	for _, stmt := range stmts {
		if _, err := d.Exec(stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
