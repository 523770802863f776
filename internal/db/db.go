// Package db provides a PostgreSQL-backed job index store.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS job_records (
	key                 TEXT PRIMARY KEY,
	source_url          TEXT NOT NULL DEFAULT '',
	title               TEXT NOT NULL DEFAULT '',
	duration_seconds    DOUBLE PRECISION,
	status              TEXT NOT NULL,
	audio_file_path     TEXT NOT NULL DEFAULT '',
	raw_transcript_path TEXT NOT NULL DEFAULT '',
	conversation_path   TEXT NOT NULL DEFAULT '',
	remote_job_id       TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	transcribed_at      TIMESTAMPTZ,
	last_error          TEXT NOT NULL DEFAULT '',
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// EnsureSchema creates the job_records table if it does not exist.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}
