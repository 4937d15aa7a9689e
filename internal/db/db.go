// Package db opens the SQLite database that holds the docqa event log and
// keeps its schema current.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DB is a migrated SQLite handle.
type DB struct {
	*sql.DB
	path string
}

// migrations are applied in order. The index of the last applied step is
// kept in PRAGMA user_version, so entries must only ever be appended.
var migrations = []string{
	`CREATE TABLE audit_entries (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		actor_type TEXT NOT NULL CHECK(actor_type IN ('user','system')),
		actor_id TEXT NOT NULL,
		action TEXT NOT NULL,
		scope TEXT NOT NULL,
		scope_id TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		detail TEXT NOT NULL DEFAULT '',
		affected_ids TEXT NOT NULL DEFAULT '[]',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX idx_audit_timestamp ON audit_entries(timestamp);
	CREATE INDEX idx_audit_action ON audit_entries(action);
	CREATE INDEX idx_audit_scope ON audit_entries(scope, scope_id);`,
}

// Open opens or creates the database file at path, creating parent
// directories as needed.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return prepare(sqlDB, path)
}

// OpenMemory opens a private in-memory database for tests.
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	sqlDB.SetMaxOpenConns(1)
	return prepare(sqlDB, ":memory:")
}

func prepare(sqlDB *sql.DB, path string) (*DB, error) {
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return d, nil
}

// Path returns the database file path, or ":memory:".
func (d *DB) Path() string {
	return d.path
}

// Version returns the number of applied migrations.
func (d *DB) Version() (int, error) {
	var v int
	err := d.QueryRow("PRAGMA user_version").Scan(&v)
	return v, err
}

func (d *DB) migrate() error {
	current, err := d.Version()
	if err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	for i := current; i < len(migrations); i++ {
		if err := d.apply(i); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

func (d *DB) apply(i int) error {
	tx, err := d.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migrations[i]); err != nil {
		return err
	}
	// PRAGMA does not accept bound parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
		return err
	}
	return tx.Commit()
}
