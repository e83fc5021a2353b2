// Package store provides the SQLite-backed transactional store of record
// for subjects and their artifacts.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/casevault/internal/models"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS subjects (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	notes      TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS artifacts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id     INTEGER NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
	filename       TEXT NOT NULL,
	kind           TEXT NOT NULL,
	rel_path       TEXT NOT NULL,
	annotation     TEXT NOT NULL DEFAULT '',
	checksum       TEXT NOT NULL DEFAULT '',
	status         TEXT NOT NULL DEFAULT 'pending',
	extracted_text TEXT,
	processed_at   DATETIME,
	error_detail   TEXT,
	uploaded_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artifacts_subject ON artifacts(subject_id);
`

// DB wraps a sql.DB with case-record operations and an in-process read
// cache for artifact listings. The cache exists to make the freshness
// contract explicit: a caller that must observe just-committed writes
// calls InvalidateCache before reading.
type DB struct {
	conn *sql.DB

	mu    sync.RWMutex
	lists map[int64][]models.Artifact // subject id → cached store-order listing
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}
	return &DB{conn: conn, lists: make(map[int64][]models.Artifact)}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// InvalidateCache drops every cached artifact listing so the next read
// hits the database.
func (db *DB) InvalidateCache() {
	db.mu.Lock()
	db.lists = make(map[int64][]models.Artifact)
	db.mu.Unlock()
}

// invalidateSubject drops the cached listing for one subject. Every
// artifact mutation writes through here.
func (db *DB) invalidateSubject(subjectID int64) {
	db.mu.Lock()
	delete(db.lists, subjectID)
	db.mu.Unlock()
}
