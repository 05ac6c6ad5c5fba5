package cache

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is the cache store layout. expires_at is indexed for the lazy
// expiry sweep; (system_type, last_accessed) serves the recency-ordered
// candidate scan. Timestamps are unix milliseconds.
const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    query           TEXT    NOT NULL,
    query_embedding BLOB    NOT NULL,
    answer          TEXT    NOT NULL,
    metadata        TEXT,
    system_type     TEXT    NOT NULL,
    created_at      INTEGER NOT NULL,
    last_accessed   INTEGER NOT NULL,
    access_count    INTEGER NOT NULL DEFAULT 0,
    expires_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_expires_at
    ON cache_entries(expires_at);

CREATE INDEX IF NOT EXISTS idx_cache_recency
    ON cache_entries(system_type, last_accessed);
`

// openStore opens the SQLite database and prepares it for use.
// A single pooled connection serializes all access, which SQLite handles
// best and which keeps an in-memory database from evaporating between
// calls. WAL mode lets a reader coexist with the writer on file-backed
// stores.
func openStore(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize cache schema: %w", err)
	}

	return db, nil
}
