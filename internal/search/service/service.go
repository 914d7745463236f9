// Package service orchestrates the sync pipeline: fetch previous snapshot,
// compute current, diff, gate through the dedupe ledger, persist, publish.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"prisoner-search/internal/search/diff"
	"prisoner-search/internal/search/events"
	"prisoner-search/internal/search/index"
	"prisoner-search/internal/search/ledger"
	"prisoner-search/internal/search/metrics"
	"prisoner-search/internal/search/models"
	"prisoner-search/internal/search/ports"
	"prisoner-search/internal/search/status"
	id "prisoner-search/pkg/domain"
	dErrors "prisoner-search/pkg/domain-errors"
)

// Outcome summarises what one reconcile did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeDeleted   Outcome = "deleted"
)

// Service keeps the live index in step with the system of record, one
// prisoner at a time. Callers must serialise reconciles per identity (the
// listener's keyed workers do); the ledger only deduplicates identical
// states, it does not reorder divergent ones.
type Service struct {
	source  ports.SnapshotSource
	index   index.Store
	ledger  ledger.Store
	status  status.Store
	sink    ports.EventSink
	clock   ports.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	rebuildConcurrency int
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock ports.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics attaches domain metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithRebuildConcurrency bounds the rebuild worker pool.
func WithRebuildConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.rebuildConcurrency = n
		}
	}
}

// New constructs the sync service.
func New(source ports.SnapshotSource, indexStore index.Store, ledgerStore ledger.Store, statusStore status.Store, sink ports.EventSink, logger *slog.Logger, opts ...Option) (*Service, error) {
	if source == nil {
		return nil, fmt.Errorf("snapshot source is required")
	}
	if indexStore == nil {
		return nil, fmt.Errorf("index store is required")
	}
	if ledgerStore == nil {
		return nil, fmt.Errorf("ledger store is required")
	}
	if statusStore == nil {
		return nil, fmt.Errorf("status store is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}

	svc := &Service{
		source:             source,
		index:              indexStore,
		ledger:             ledgerStore,
		status:             statusStore,
		sink:               sink,
		clock:              time.Now,
		logger:             logger,
		tracer:             otel.Tracer("prisoner-search/search"),
		rebuildConcurrency: 8,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Reconcile brings one prisoner's index entry up to date with the system
// of record and publishes domain events for any observable change. The
// dedupe ledger gates both persistence and publication: a redelivered
// unchanged state does nothing.
func (s *Service) Reconcile(ctx context.Context, prisonerNumber id.PrisonerNumber) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "Reconcile",
		trace.WithAttributes(attribute.String("prisoner.number", prisonerNumber.String())))
	defer span.End()

	if prisonerNumber.IsNil() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "prisoner number is required")
	}

	indexStatus, err := s.status.Get(ctx)
	if err != nil {
		span.RecordError(err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read index status")
	}
	liveSlot := indexStatus.CurrentIndex

	previous, err := s.index.Get(ctx, liveSlot, prisonerNumber)
	if err != nil {
		span.RecordError(err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read previous snapshot")
	}

	current, err := s.source.Fetch(ctx, prisonerNumber)
	if err != nil {
		span.RecordError(err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to fetch snapshot from system of record")
	}

	if current == nil {
		return s.remove(ctx, indexStatus, prisonerNumber, previous)
	}
	if err := current.Validate(); err != nil {
		s.metrics.RecordSync("malformed")
		return "", err
	}

	differences := diff.Compare(previous, current)
	for category, diffs := range differences {
		for range diffs {
			s.metrics.RecordDifference(string(category))
		}
	}

	changed, err := s.ledger.UpsertIfChanged(ctx, prisonerNumber, current.Hash(), s.clock())
	if err != nil {
		span.RecordError(err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to upsert event hash")
	}
	if !changed {
		s.metrics.RecordSync(string(OutcomeUnchanged))
		s.logger.DebugContext(ctx, "snapshot unchanged, suppressing",
			"prisonerNumber", prisonerNumber,
		)
		return OutcomeUnchanged, nil
	}

	// While a rebuild is in flight every live mutation goes to both the
	// active slot and the building slot; otherwise the swap would lose
	// updates made during the rebuild window.
	if err := s.index.Put(ctx, liveSlot, current); err != nil {
		span.RecordError(err)
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to write snapshot to live slot")
	}
	if indexStatus.InProgress {
		if err := s.index.Put(ctx, liveSlot.Other(), current); err != nil {
			span.RecordError(err)
			return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to write snapshot to building slot")
		}
	}

	if err := s.publishEvents(ctx, previous, current); err != nil {
		span.RecordError(err)
		return "", err
	}

	outcome := OutcomeUpdated
	if previous == nil {
		outcome = OutcomeCreated
	}
	s.metrics.RecordSync(string(outcome))
	s.logger.InfoContext(ctx, "prisoner reconciled",
		"prisonerNumber", prisonerNumber,
		"outcome", outcome,
		"changedCategories", len(differences),
	)
	return outcome, nil
}

// GetPrisoner reads one prisoner from the live slot. Returns nil when the
// index holds no snapshot for the identity.
func (s *Service) GetPrisoner(ctx context.Context, prisonerNumber id.PrisonerNumber) (*models.Prisoner, error) {
	indexStatus, err := s.status.Get(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read index status")
	}
	prisoner, err := s.index.Get(ctx, indexStatus.CurrentIndex, prisonerNumber)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read snapshot")
	}
	return prisoner, nil
}

func (s *Service) remove(ctx context.Context, indexStatus models.IndexStatus, prisonerNumber id.PrisonerNumber, previous *models.Prisoner) (Outcome, error) {
	if previous == nil {
		s.metrics.RecordSync(string(OutcomeUnchanged))
		return OutcomeUnchanged, nil
	}

	slots := []models.SyncIndex{indexStatus.CurrentIndex}
	if indexStatus.InProgress {
		slots = append(slots, indexStatus.CurrentIndex.Other())
	}
	for _, slot := range slots {
		if err := s.index.Delete(ctx, slot, prisonerNumber); err != nil {
			return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to remove snapshot")
		}
	}

	s.metrics.RecordSync(string(OutcomeDeleted))
	s.logger.InfoContext(ctx, "prisoner removed from index",
		"prisonerNumber", prisonerNumber,
	)
	return OutcomeDeleted, nil
}

func (s *Service) publishEvents(ctx context.Context, previous, current *models.Prisoner) error {
	now := s.clock()

	if update := events.DiffAlerts(previous, current); update != nil {
		envelope := events.NewAlertsUpdatedEnvelope(now, update)
		if err := s.sink.Publish(ctx, envelope); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to publish alerts event")
		}
		s.metrics.RecordEventPublished(envelope.EventType)
	}

	if transfer, ok := events.DetectMovement(previous, current).(events.TransferIn); ok {
		envelope := events.NewReceivedEnvelope(now, transfer)
		if err := s.sink.Publish(ctx, envelope); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to publish received event")
		}
		s.metrics.RecordEventPublished(envelope.EventType)
	}
	return nil
}
