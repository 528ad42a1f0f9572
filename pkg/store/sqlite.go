package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite ResultStore.
type Store struct {
	db *sql.DB
}

var _ ResultStore = (*Store)(nil)

// NewStore opens (or creates) the result database at dbPath.
// It enables WAL mode so concurrent campaign workers can write.
func NewStore(dbPath string) (*Store, error) {
	// Connection-scoped pragmas go in the DSN so every pooled connection
	// gets them.
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	// SQLite allows one writer; serialising on a single connection avoids
	// SQLITE_BUSY under concurrent campaign workers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the result tables if they don't exist.
func (s *Store) migrate() error {
	// One row per job; per-relation outcomes and failed tests hang off it.
	// The campaign column scopes job ids, so one database can hold many
	// campaigns.
	query := `
	CREATE TABLE IF NOT EXISTS jobs (
		campaign TEXT NOT NULL,
		job_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		operator TEXT,
		cause TEXT,
		effect TEXT,
		seed INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL,
		PRIMARY KEY (campaign, job_id)
	);

	CREATE TABLE IF NOT EXISTS relation_results (
		campaign TEXT NOT NULL,
		job_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		kind TEXT NOT NULL,
		total INTEGER NOT NULL,
		failures INTEGER NOT NULL,
		failed BOOLEAN NOT NULL,
		PRIMARY KEY (campaign, job_id, relation),
		FOREIGN KEY (campaign, job_id) REFERENCES jobs(campaign, job_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS test_failures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		campaign TEXT NOT NULL,
		job_id TEXT NOT NULL,
		relation TEXT NOT NULL,
		payload JSON NOT NULL,
		FOREIGN KEY (campaign, job_id) REFERENCES jobs(campaign, job_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS mutation_specs (
		campaign TEXT PRIMARY KEY,
		format TEXT NOT NULL,
		document BLOB NOT NULL,
		deletions INTEGER NOT NULL,
		insertions INTEGER NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_jobs_kind ON jobs(campaign, kind);
	CREATE INDEX IF NOT EXISTS idx_relation_results_relation ON relation_results(campaign, relation);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create result tables: %w", err)
	}

	return nil
}
