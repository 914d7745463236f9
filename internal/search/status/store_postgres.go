package status

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"prisoner-search/internal/search/models"
	"prisoner-search/pkg/platform/sentinel"
)

// statusRowID is the fixed key of the singleton row.
const statusRowID = "STATUS"

// PostgresStore implements Store on the index_status table. Transitions are
// single UPDATE statements whose WHERE clause carries the precondition, so
// the database serialises concurrent operators and the losing caller sees
// zero rows affected.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a Postgres-backed status store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Get(ctx context.Context) (models.IndexStatus, error) {
	if err := s.ensureRow(ctx); err != nil {
		return models.IndexStatus{}, err
	}

	query := `
		SELECT current_index, in_progress, start_time, end_time
		FROM index_status WHERE id = $1
	`
	var status models.IndexStatus
	var current string
	var startTime, endTime sql.NullTime
	err := s.db.QueryRowContext(ctx, query, statusRowID).
		Scan(&current, &status.InProgress, &startTime, &endTime)
	if err != nil {
		return models.IndexStatus{}, fmt.Errorf("read index status: %w", err)
	}

	status.CurrentIndex = models.SyncIndex(current)
	if startTime.Valid {
		status.StartTime = &startTime.Time
	}
	if endTime.Valid {
		status.EndTime = &endTime.Time
	}
	return status, nil
}

func (s *PostgresStore) StartBuild(ctx context.Context, startTime time.Time) error {
	if err := s.ensureRow(ctx); err != nil {
		return err
	}

	query := `
		UPDATE index_status
		SET in_progress = TRUE, start_time = $2, end_time = NULL
		WHERE id = $1 AND in_progress = FALSE
	`
	return s.conditionalUpdate(ctx, "start build", query, statusRowID, startTime)
}

func (s *PostgresStore) CompleteBuild(ctx context.Context, endTime time.Time) error {
	if err := s.ensureRow(ctx); err != nil {
		return err
	}

	query := `
		UPDATE index_status
		SET in_progress = FALSE, end_time = $2
		WHERE id = $1 AND in_progress = TRUE
	`
	return s.conditionalUpdate(ctx, "complete build", query, statusRowID, endTime)
}

func (s *PostgresStore) Switch(ctx context.Context) (models.SyncIndex, error) {
	if err := s.ensureRow(ctx); err != nil {
		return "", err
	}

	query := `
		UPDATE index_status
		SET current_index = CASE current_index WHEN 'A' THEN 'B' ELSE 'A' END
		WHERE id = $1 AND in_progress = FALSE
		RETURNING current_index
	`
	var current string
	err := s.db.QueryRowContext(ctx, query, statusRowID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("switch index: %w", sentinel.ErrConflict)
	}
	if err != nil {
		return "", fmt.Errorf("switch index: %w", err)
	}
	return models.SyncIndex(current), nil
}

func (s *PostgresStore) conditionalUpdate(ctx context.Context, op, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return nil
}

func (s *PostgresStore) ensureRow(ctx context.Context) error {
	query := `
		INSERT INTO index_status (id, current_index, in_progress)
		VALUES ($1, 'A', FALSE)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, query, statusRowID); err != nil {
		return fmt.Errorf("ensure index status row: %w", err)
	}
	return nil
}
