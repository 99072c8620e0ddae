// File: internal/infra/sched/status_reconciler.go
package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain/ports/repository"
	"video-analysis-platform/internal/usecase"
)

// StatusReconciler periodically sweeps running jobs nobody has polled recently
// and runs a full status query on each. This catches jobs whose worker died
// silently while no client was watching: the webhook never fires for a crash,
// so without the sweep such a job would stay "running" forever.
type StatusReconciler struct {
	status     usecase.StatusUseCase
	jobs       repository.ProcessingJobRepository
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

func NewStatusReconciler(
	status usecase.StatusUseCase,
	jobs repository.ProcessingJobRepository,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *StatusReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &StatusReconciler{
		status:     status,
		jobs:       jobs,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      200,
		log:        logger,
	}
}

func (w *StatusReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *StatusReconciler) tick(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.jobs.ListRunningOlderThan(ctx, repository.NoTX, cutoff, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("status-reconciler: list stale jobs failed")
		return
	}
	for _, job := range stale {
		if ctx.Err() != nil {
			return
		}
		// Query stamps last_checked_at itself, so a job that errors here will
		// not be re-picked on every single sweep either.
		view, err := w.status.Query(ctx, job.ID)
		if err != nil {
			w.log.Warn().Str("job_id", job.ID).Err(err).Msg("status-reconciler: query failed")
			continue
		}
		if view.Job.Status != job.Status {
			w.log.Info().Str("job_id", job.ID).
				Str("from", string(job.Status)).
				Str("to", string(view.Job.Status)).
				Msg("status-reconciler: reconciled stale job")
		}
	}
}
