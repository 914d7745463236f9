// Package index stores prisoner snapshots in two independently addressable
// physical slots. Exactly one slot is live at a time; the other either
// holds the previous generation or is being rebuilt into.
package index

import (
	"context"

	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

// Store is one addressing surface over both physical slots.
type Store interface {
	// Get returns the snapshot held in the slot, or nil when absent.
	Get(ctx context.Context, slot models.SyncIndex, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error)

	// Put writes the snapshot into the slot, replacing any previous one.
	Put(ctx context.Context, slot models.SyncIndex, prisoner *models.Prisoner) error

	// Delete removes one prisoner from the slot. Removing an absent
	// prisoner is not an error.
	Delete(ctx context.Context, slot models.SyncIndex, prisonerNumber id.PrisonerNumber) error

	// Clear empties the slot. Used before a rebuild streams into it.
	Clear(ctx context.Context, slot models.SyncIndex) error

	// Count returns the number of snapshots held in the slot.
	Count(ctx context.Context, slot models.SyncIndex) (int64, error)
}
