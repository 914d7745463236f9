package service

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"prisoner-search/internal/search/lifecycle"
	"prisoner-search/internal/search/models"
	dErrors "prisoner-search/pkg/domain-errors"
)

// PopulateIndex streams every prisoner from the system of record into the
// building slot. A rebuild must already be in flight; live mutations keep
// landing in the building slot concurrently via Reconcile's dual write, so
// the slot is complete when the stream finishes. Returns the number of
// snapshots written.
func (s *Service) PopulateIndex(ctx context.Context) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "PopulateIndex")
	defer span.End()

	indexStatus, err := s.status.Get(ctx)
	if err != nil {
		span.RecordError(err)
		return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read index status")
	}
	if !indexStatus.InProgress {
		return 0, lifecycle.ErrBuildNotInProgress
	}
	target := indexStatus.CurrentIndex.Other()

	started := s.clock()
	var written atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.rebuildConcurrency)

	streamErr := s.source.StreamAll(gCtx, func(prisoner *models.Prisoner) error {
		p := prisoner
		g.Go(func() error {
			if err := p.Validate(); err != nil {
				s.metrics.RecordSync("malformed")
				s.logger.WarnContext(gCtx, "skipping malformed snapshot during rebuild",
					"prisonerNumber", p.PrisonerNumber,
					"error", err,
				)
				return nil
			}
			if err := s.index.Put(gCtx, target, p); err != nil {
				return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to write snapshot during rebuild")
			}
			written.Add(1)
			s.metrics.RecordRebuildDocument()
			return nil
		})
		return gCtx.Err()
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return written.Load(), err
	}
	if streamErr != nil {
		span.RecordError(streamErr)
		return written.Load(), dErrors.Wrap(streamErr, dErrors.CodeUnavailable, "snapshot stream failed")
	}

	elapsed := s.clock().Sub(started)
	s.metrics.RecordRebuildDuration(elapsed.Seconds())
	s.logger.InfoContext(ctx, "index populated",
		"index", target,
		"documents", written.Load(),
		"elapsed", elapsed,
	)
	return written.Load(), nil
}
