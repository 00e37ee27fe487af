// Package store is priceguard's durable persistence layer, backed by
// sqlite via jmoiron/sqlx so the alert engine, connect-token flow, and auth
// blacklist are testable without a live Postgres instance.
package store

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"priceguard/metrics"
)

// Store wraps a *sqlx.DB with priceguard's schema. It is safe for concurrent
// use; sqlite serializes writers internally and reads are cheap.
type Store struct {
	db *sqlx.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS alerts (
	id            TEXT PRIMARY KEY,
	user_id       TEXT NOT NULL,
	name          TEXT NOT NULL DEFAULT '',
	description   TEXT NOT NULL DEFAULT '',
	exchange      TEXT NOT NULL,
	market        TEXT NOT NULL,
	symbols       TEXT NOT NULL,
	target_value  REAL NOT NULL,
	initial_price REAL,
	condition     TEXT,
	active        INTEGER NOT NULL DEFAULT 1,
	triggered     INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_active ON alerts(active, triggered);

CREATE TABLE IF NOT EXISTS connect_tokens (
	token      TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	consumed   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS token_blacklist (
	token_hash TEXT PRIMARY KEY,
	expires_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS telegram_links (
	user_id TEXT PRIMARY KEY,
	chat_id INTEGER NOT NULL
);
`

// Open opens (creating if needed) the sqlite database at path and ensures
// the schema exists.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// sqlite serializes writes; a single connection avoids "database is
	// locked" errors under concurrent sweep/API access.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// timed wraps a query with priceguard_db_query_{total,duration_seconds},
// the same operation-labeled style every prometheus recorder in this
// codebase follows.
func timed(operation string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "failed"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	return err
}
