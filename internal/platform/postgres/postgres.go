// Package postgres opens the shared database handle used by the ledger and
// index status stores.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to Postgres via the pgx stdlib driver and verifies the
// connection before returning.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// EnsureSchema creates the tables this service owns if they do not exist.
// The schema is deliberately small: one singleton status row and one ledger
// row per prisoner.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS index_status (
			id            TEXT PRIMARY KEY,
			current_index TEXT NOT NULL,
			in_progress   BOOLEAN NOT NULL,
			start_time    TIMESTAMPTZ,
			end_time      TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS prisoner_event_hash (
			prisoner_number TEXT PRIMARY KEY,
			hash            TEXT NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS prisoner_event_hash_updated_at_idx
			ON prisoner_event_hash (updated_at)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
