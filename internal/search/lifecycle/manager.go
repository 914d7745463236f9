// Package lifecycle owns the rebuild/swap state machine over the two index
// slots. Every transition validates its precondition atomically in the
// status store and fails fast with a typed conflict error; no partial
// transition is ever observable.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"prisoner-search/internal/search/index"
	"prisoner-search/internal/search/models"
	"prisoner-search/internal/search/status"
	dErrors "prisoner-search/pkg/domain-errors"
	"prisoner-search/pkg/platform/sentinel"
)

// Typed state-machine violations. They indicate a legitimate operational
// conflict, not a defect: the HTTP layer maps them to 409.
var (
	ErrBuildAlreadyInProgress = dErrors.New(dErrors.CodeConflict, "index build already in progress")
	ErrBuildNotInProgress     = dErrors.New(dErrors.CodeConflict, "no index build in progress")
	ErrSwitchWhileBuilding    = dErrors.New(dErrors.CodeConflict, "cannot switch index while a build is in progress")
)

// Manager drives the dual-index lifecycle. Build, complete, and switch are
// three individually guarded operations rather than one "reindex" call, so
// an external batch process can finish a rebuild and delay or abort the
// swap without losing live traffic on the still-active slot.
type Manager struct {
	status status.Store
	index  index.Store
	clock  func() time.Time
	logger *slog.Logger
}

// New constructs a lifecycle manager.
func New(statusStore status.Store, indexStore index.Store, clock func() time.Time, logger *slog.Logger) (*Manager, error) {
	if statusStore == nil {
		return nil, fmt.Errorf("status store is required")
	}
	if indexStore == nil {
		return nil, fmt.Errorf("index store is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Manager{status: statusStore, index: indexStore, clock: clock, logger: logger}, nil
}

// Status returns the current IndexStatus record.
func (m *Manager) Status(ctx context.Context) (models.IndexStatus, error) {
	return m.status.Get(ctx)
}

// BuildIndex transitions IDLE -> BUILDING and clears the inactive slot
// ready for repopulation. Fails with ErrBuildAlreadyInProgress if a build
// is in flight.
func (m *Manager) BuildIndex(ctx context.Context) (models.IndexStatus, error) {
	if err := m.status.StartBuild(ctx, m.clock()); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.IndexStatus{}, ErrBuildAlreadyInProgress
		}
		return models.IndexStatus{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to start index build")
	}

	current, err := m.status.Get(ctx)
	if err != nil {
		return models.IndexStatus{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read index status")
	}

	if err := m.index.Clear(ctx, current.CurrentIndex.Other()); err != nil {
		// Give the operator a way back to IDLE rather than stranding the
		// state machine in BUILDING over an empty-clear failure.
		if revertErr := m.status.CompleteBuild(ctx, m.clock()); revertErr != nil {
			m.logger.Error("failed to revert build start after clear failure", "error", revertErr)
		}
		return models.IndexStatus{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to clear inactive slot")
	}

	m.logger.Info("index build started",
		"activeIndex", current.CurrentIndex,
		"buildingIndex", current.CurrentIndex.Other(),
	)
	return current, nil
}

// MarkComplete transitions BUILDING -> IDLE. Fails with
// ErrBuildNotInProgress when no build is in flight.
func (m *Manager) MarkComplete(ctx context.Context) (models.IndexStatus, error) {
	if err := m.status.CompleteBuild(ctx, m.clock()); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return models.IndexStatus{}, ErrBuildNotInProgress
		}
		return models.IndexStatus{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to mark index build complete")
	}

	current, err := m.status.Get(ctx)
	if err != nil {
		return models.IndexStatus{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read index status")
	}

	m.logger.Info("index build marked complete", "activeIndex", current.CurrentIndex)
	return current, nil
}

// SwitchIndex atomically flips which slot is live. All readers observe the
// swap instantaneously; there is no partially-switched state. Fails with
// ErrSwitchWhileBuilding during a rebuild, preventing a swap onto a
// half-built index.
func (m *Manager) SwitchIndex(ctx context.Context) (models.SyncIndex, error) {
	current, err := m.status.Switch(ctx)
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return "", ErrSwitchWhileBuilding
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to switch index")
	}

	m.logger.Info("live index switched", "activeIndex", current)
	return current, nil
}

// CountIndex returns the document count of one physical slot. Diagnostic
// read; no state change.
func (m *Manager) CountIndex(ctx context.Context, slot models.SyncIndex) (int64, error) {
	if !slot.Valid() {
		return 0, dErrors.New(dErrors.CodeBadRequest, "unknown index slot")
	}
	count, err := m.index.Count(ctx, slot)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to count index")
	}
	return count, nil
}
