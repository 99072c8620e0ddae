package repository

import (
	"context"
	"time"

	"video-analysis-platform/internal/domain/model"
)

// ProcessingJobRepository is durable state for every dispatch attempt.
type ProcessingJobRepository interface {
	// Create inserts a new job. Returns domain.ErrAlreadyExists when the id is taken.
	Create(ctx context.Context, tx Tx, job *model.ProcessingJob) error
	// Update persists mutable fields (status, remote id, errors, timestamps).
	Update(ctx context.Context, tx Tx, job *model.ProcessingJob) error
	// FindByID returns domain.ErrNotFound when missing.
	FindByID(ctx context.Context, tx Tx, id string) (*model.ProcessingJob, error)
	// FindByRemoteID resolves a job from the remote execution id.
	FindByRemoteID(ctx context.Context, tx Tx, remoteID string) (*model.ProcessingJob, error)
	// FindByIDForUpdate locks the row for the duration of the transaction.
	FindByIDForUpdate(ctx context.Context, tx Tx, id string) (*model.ProcessingJob, error)
	// ListRunningOlderThan returns running jobs whose last check predates cutoff.
	ListRunningOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.ProcessingJob, error)
	// TouchLastChecked stamps last_checked_at without touching anything else.
	TouchLastChecked(ctx context.Context, tx Tx, id string, at time.Time) error
}
