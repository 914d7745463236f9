// Package status persists the IndexStatus singleton: which slot is live and
// whether a rebuild is in flight. It is the only shared mutable state in
// the system, so every transition is a conditional write that either wins
// or reports sentinel.ErrConflict without mutating anything.
package status

import (
	"context"
	"time"

	"prisoner-search/internal/search/models"
)

// Store guards the singleton IndexStatus row.
type Store interface {
	// Get returns the current status, initialising it on first read.
	Get(ctx context.Context) (models.IndexStatus, error)

	// StartBuild marks a rebuild in progress. Returns sentinel.ErrConflict
	// if one already is.
	StartBuild(ctx context.Context, startTime time.Time) error

	// CompleteBuild marks the in-flight rebuild finished. Returns
	// sentinel.ErrConflict if none is in flight.
	CompleteBuild(ctx context.Context, endTime time.Time) error

	// Switch atomically flips the live slot and returns the new one.
	// Returns sentinel.ErrConflict while a rebuild is in progress.
	Switch(ctx context.Context) (models.SyncIndex, error)
}
