package ledger

import (
	"context"
	"log/slog"
	"time"
)

// Pruner periodically drops ledger rows untouched for longer than the
// retention window. A pruned identity's next notification is treated as a
// first observation, which is the documented cost of bounding the table.
type Pruner struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	clock     func() time.Time
	logger    *slog.Logger
}

// NewPruner creates a Pruner over the given store.
func NewPruner(store Store, retention, interval time.Duration, clock func() time.Time, logger *slog.Logger) *Pruner {
	if clock == nil {
		clock = time.Now
	}
	return &Pruner{
		store:     store,
		retention: retention,
		interval:  interval,
		clock:     clock,
		logger:    logger,
	}
}

// Run prunes on the configured interval until ctx is cancelled. Prune
// failures are logged and retried next tick rather than stopping the loop.
func (p *Pruner) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := p.PruneOnce(ctx); err != nil {
				p.logger.ErrorContext(ctx, "ledger prune failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PruneOnce removes rows older than the retention window as of now.
func (p *Pruner) PruneOnce(ctx context.Context) error {
	threshold := p.clock().Add(-p.retention)
	pruned, err := p.store.PruneOlderThan(ctx, threshold)
	if err != nil {
		return err
	}
	if pruned > 0 {
		p.logger.InfoContext(ctx, "pruned stale ledger rows",
			"rows", pruned,
			"threshold", threshold,
		)
	}
	return nil
}
