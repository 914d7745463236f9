// Package ledger records, per prisoner, the hash of the last snapshot whose
// events were emitted. It gatekeeps event publication under at-least-once
// delivery: a redelivered unchanged state upserts to a no-op.
package ledger

import (
	"context"
	"time"

	id "prisoner-search/pkg/domain"
)

// Entry is one ledger row. There is exactly one per prisoner, and it always
// reflects the most recently emitted state, never a state that was computed
// but suppressed as unchanged.
type Entry struct {
	PrisonerNumber id.PrisonerNumber
	Hash           string
	UpdatedAt      time.Time
}

// Store is the durable ledger.
type Store interface {
	// UpsertIfChanged inserts the row if the prisoner is unseen, or updates
	// hash and timestamp only when the stored hash differs. It reports true
	// exactly when a write occurred. Implementations must make this a
	// single atomic conditional write, not a read followed by a write:
	// under concurrent duplicate deliveries of the same state at most one
	// caller may observe true.
	UpsertIfChanged(ctx context.Context, prisonerNumber id.PrisonerNumber, hash string, updatedAt time.Time) (bool, error)

	// PruneOlderThan deletes rows last updated before the threshold and
	// reports how many went. Pure housekeeping; the sync path does not
	// depend on it.
	PruneOlderThan(ctx context.Context, threshold time.Time) (int64, error)
}
