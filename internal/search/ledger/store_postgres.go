package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	id "prisoner-search/pkg/domain"
	txcontext "prisoner-search/pkg/platform/tx"
)

// PostgresStore implements Store on the prisoner_event_hash table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed ledger store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// UpsertIfChanged is one round trip: the conditional update predicate runs
// inside the INSERT ... ON CONFLICT statement, so concurrent duplicate
// deliveries of the same hash race in the database, and the database lets
// exactly one of them through.
func (s *PostgresStore) UpsertIfChanged(ctx context.Context, prisonerNumber id.PrisonerNumber, hash string, updatedAt time.Time) (bool, error) {
	query := `
		INSERT INTO prisoner_event_hash (prisoner_number, hash, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (prisoner_number) DO UPDATE
		SET hash = EXCLUDED.hash, updated_at = EXCLUDED.updated_at
		WHERE prisoner_event_hash.hash IS DISTINCT FROM EXCLUDED.hash
	`
	result, err := s.execer(ctx).ExecContext(ctx, query, prisonerNumber.String(), hash, updatedAt)
	if err != nil {
		return false, fmt.Errorf("upsert event hash for %s: %w", prisonerNumber, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("upsert event hash for %s: rows affected: %w", prisonerNumber, err)
	}
	return affected > 0, nil
}

// PruneOlderThan deletes ledger rows last updated before the threshold.
func (s *PostgresStore) PruneOlderThan(ctx context.Context, threshold time.Time) (int64, error) {
	query := `DELETE FROM prisoner_event_hash WHERE updated_at < $1`
	result, err := s.execer(ctx).ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("prune event hashes: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune event hashes: rows affected: %w", err)
	}
	return affected, nil
}
