// Package ports declares the outbound interfaces the search domain
// consumes. Implementations live at the edges; the core depends only on
// these shapes.
package ports

import (
	"context"
	"time"

	"prisoner-search/internal/search/events"
	"prisoner-search/internal/search/models"
	id "prisoner-search/pkg/domain"
)

// Clock supplies the current time. Injected so lifecycle timestamps and
// ledger rows are testable.
type Clock func() time.Time

// SnapshotSource is the system of record the index is kept in sync with.
type SnapshotSource interface {
	// Fetch returns the current snapshot for one prisoner, or nil when the
	// system of record no longer knows the identity.
	Fetch(ctx context.Context, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error)

	// StreamAll invokes fn for every prisoner in the system of record.
	// The stream is finite and restartable: a failed rebuild simply calls
	// StreamAll again. Returning an error from fn stops the stream.
	StreamAll(ctx context.Context, fn func(*models.Prisoner) error) error
}

// EventSink publishes domain events. Fire-and-forget from the caller's
// perspective; delivery guarantees are the sink's responsibility.
type EventSink interface {
	Publish(ctx context.Context, envelope events.Envelope) error
}
