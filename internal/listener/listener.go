// Package listener consumes offender-change notifications and drives a
// reconcile for each one.
package listener

import (
	"context"
	"encoding/json"
	"log/slog"

	"prisoner-search/internal/platform/kafka/consumer"
	"prisoner-search/internal/search/service"
	id "prisoner-search/pkg/domain"
	dErrors "prisoner-search/pkg/domain-errors"
)

const defaultQueueDepth = 64

// ChangeNotification is the inbound message shape on the offender-change
// topic. Only the identity matters: the notification is a doorbell, the
// current state is always re-fetched from the system of record.
type ChangeNotification struct {
	EventType      string `json:"eventType"`
	PrisonerNumber string `json:"prisonerNumber"`
}

// Reconciler is the piece of the sync service the listener drives.
type Reconciler interface {
	Reconcile(ctx context.Context, prisonerNumber id.PrisonerNumber) (service.Outcome, error)
}

// Listener handles consumed change notifications, fanning them out over a
// keyed worker pool so messages for one prisoner are processed in order.
type Listener struct {
	reconciler Reconciler
	pool       *keyedPool
	logger     *slog.Logger
}

// New creates a Listener with the given number of workers.
func New(reconciler Reconciler, workers int, logger *slog.Logger) *Listener {
	return &Listener{
		reconciler: reconciler,
		pool:       newKeyedPool(workers, defaultQueueDepth),
		logger:     logger,
	}
}

// Submit implements consumer.Handler. Messages enqueue onto the keyed pool
// in call order, so same-identity notifications reconcile in sequence while
// distinct identities run on other workers concurrently. A malformed
// notification resolves successfully after logging: redelivering it can
// never succeed. A failed reconcile resolves with its error so the message
// stays uncommitted for redelivery.
func (l *Listener) Submit(ctx context.Context, msg *consumer.Message) (<-chan error, error) {
	var notification ChangeNotification
	if err := json.Unmarshal(msg.Value, &notification); err != nil {
		l.logger.ErrorContext(ctx, "dropping undecodable change notification",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return resolved(nil), nil
	}

	prisonerNumber, err := id.ParsePrisonerNumber(notification.PrisonerNumber)
	if err != nil {
		l.logger.ErrorContext(ctx, "dropping change notification with invalid prisoner number",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return resolved(nil), nil
	}

	return l.pool.Enqueue(ctx, prisonerNumber.String(), func(ctx context.Context) error {
		outcome, err := l.reconciler.Reconcile(ctx, prisonerNumber)
		if err != nil {
			// Invalid snapshots will never become valid on retry; let the
			// offset advance and surface the problem in logs instead.
			if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
				l.logger.ErrorContext(ctx, "skipping malformed snapshot",
					"prisonerNumber", prisonerNumber,
					"error", err,
				)
				return nil
			}
			return err
		}
		l.logger.DebugContext(ctx, "change notification handled",
			"prisonerNumber", prisonerNumber,
			"outcome", outcome,
		)
		return nil
	})
}

// Close drains the worker pool.
func (l *Listener) Close() {
	l.pool.Close()
}

// resolved returns a result channel that already holds err.
func resolved(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	return ch
}
