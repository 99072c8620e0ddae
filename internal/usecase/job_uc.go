// File: internal/usecase/job_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/domain/ports/adapter"
	"video-analysis-platform/internal/domain/ports/repository"
	"video-analysis-platform/internal/infra/metrics"
	red "video-analysis-platform/internal/infra/redis"
)

// Compile-time check
var _ JobUseCase = (*jobUC)(nil)

// TokenIssuer mints the callback token embedded in the webhook URL.
type TokenIssuer interface {
	Issue(jobID string) (string, error)
}

type JobUseCase interface {
	// Create registers a new job and dispatches it to the execution service.
	// Returns domain.ErrAlreadyExists when the job id is taken.
	Create(ctx context.Context, jobID, userID, videoID string, params model.JobParams) (*model.ProcessingJob, error)
	// Transition moves a job to a new status, enforcing lifecycle legality.
	// Re-applying the current status is a no-op, so duplicate concurrent polls
	// cannot corrupt state.
	Transition(ctx context.Context, jobID string, status model.JobStatus, msg string, detail *model.ErrorDetail) (*model.ProcessingJob, error)
	// Retry spawns exactly one successor for a retryable job and rewrites the
	// parent to cancelled. Denied with ErrNotRetryable / ErrRetryCeiling.
	Retry(ctx context.Context, jobID string) (*model.ProcessingJob, error)
	Get(ctx context.Context, jobID string) (*model.ProcessingJob, error)
	GetByRemoteID(ctx context.Context, remoteID string) (*model.ProcessingJob, error)
	// MarkChecked stamps last_checked_at; called on every poll.
	MarkChecked(ctx context.Context, jobID string) error
}

type jobUC struct {
	jobs       repository.ProcessingJobRepository
	tm         repository.TransactionManager
	runner     adapter.RunnerClient
	locker     red.Locker
	tokens     TokenIssuer
	webhookURL string // externally reachable webhook endpoint, token appended per job
	retryLimit int
	log        *zerolog.Logger
}

func NewJobUseCase(
	jobs repository.ProcessingJobRepository,
	tm repository.TransactionManager,
	runner adapter.RunnerClient,
	locker red.Locker,
	tokens TokenIssuer,
	webhookURL string,
	retryLimit int,
	logger *zerolog.Logger,
) *jobUC {
	return &jobUC{
		jobs:       jobs,
		tm:         tm,
		runner:     runner,
		locker:     locker,
		tokens:     tokens,
		webhookURL: webhookURL,
		retryLimit: retryLimit,
		log:        logger,
	}
}

func (u *jobUC) Create(ctx context.Context, jobID, userID, videoID string, params model.JobParams) (*model.ProcessingJob, error) {
	job, err := model.NewProcessingJob(jobID, userID, videoID, params, u.retryLimit)
	if err != nil {
		return nil, err
	}
	if err := u.jobs.Create(ctx, repository.NoTX, job); err != nil {
		return nil, err
	}
	return u.dispatch(ctx, job)
}

// dispatch hands the job descriptor to the execution service and records the
// outcome. A failed dispatch leaves the job in a retryable failed state with
// the never_ran category; it never leaves the job stuck in queued.
func (u *jobUC) dispatch(ctx context.Context, job *model.ProcessingJob) (*model.ProcessingJob, error) {
	input := map[string]any{
		"job_id":        job.ID,
		"user_id":       job.UserID,
		"video_id":      job.VideoID,
		"source_bucket": job.Params.SourceBucket,
		"source_key":    job.Params.SourceKey,
	}
	if len(job.Params.Options) > 0 {
		input["options"] = job.Params.Options
	}

	webhook := ""
	if u.webhookURL != "" && u.tokens != nil {
		token, err := u.tokens.Issue(job.ID)
		if err != nil {
			return nil, fmt.Errorf("issue callback token: %w", err)
		}
		webhook = u.webhookURL + "?token=" + token
	}

	remoteID, err := u.runner.Dispatch(ctx, input, webhook)
	if err != nil {
		now := time.Now()
		job.Status = model.JobStatusFailed
		job.LastError = fmt.Sprintf("dispatch failed: %v", err)
		job.ErrorDetail = model.ErrorDetail{Category: model.ErrCategoryNeverRan, Context: "dispatch"}
		job.CompletedAt = &now
		if saveErr := u.jobs.Update(ctx, repository.NoTX, job); saveErr != nil {
			u.log.Error().Str("job_id", job.ID).Err(saveErr).Msg("failed to record dispatch failure")
		}
		metrics.IncJobTransition(string(model.JobStatusFailed))
		return job, fmt.Errorf("dispatch job %s: %w", job.ID, err)
	}

	now := time.Now()
	job.RemoteID = remoteID
	job.Status = model.JobStatusRunning
	job.StartedAt = &now
	if err := u.jobs.Update(ctx, repository.NoTX, job); err != nil {
		return nil, fmt.Errorf("record dispatch: %w", err)
	}
	metrics.IncJobTransition(string(model.JobStatusRunning))
	u.log.Info().Str("job_id", job.ID).Str("remote_id", remoteID).Msg("job dispatched")
	return job, nil
}

func (u *jobUC) Transition(ctx context.Context, jobID string, status model.JobStatus, msg string, detail *model.ErrorDetail) (*model.ProcessingJob, error) {
	if !model.ValidStatus(status) {
		return nil, domain.ErrInvalidArgument
	}

	var job *model.ProcessingJob
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		j, err := u.jobs.FindByIDForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if j.Status == status {
			job = j // idempotent repeat, nothing to write
			return nil
		}
		if j.Status.IsTerminal() {
			// Terminal states are left only through explicit retry creation,
			// with one exception: a failed-family status may be upgraded to
			// completed when storage proves every artifact actually landed.
			if !(j.Status.IsRetryable() && status == model.JobStatusCompleted) {
				return fmt.Errorf("%w: %s -> %s", domain.ErrIllegalTransition, j.Status, status)
			}
		}

		now := time.Now()
		j.Status = status
		if status == model.JobStatusRunning && j.StartedAt == nil {
			j.StartedAt = &now
		}
		if status.IsTerminal() {
			j.CompletedAt = &now
		}
		if msg != "" {
			j.LastError = msg
		}
		if detail != nil {
			j.ErrorDetail = *detail
		}
		if err := u.jobs.Update(ctx, tx, j); err != nil {
			return err
		}
		job = j
		metrics.IncJobTransition(string(status))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (u *jobUC) Retry(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	// The lock plus the row-level FOR UPDATE re-check below guarantee at most
	// one successor: whichever call wins flips the parent out of a retryable
	// state before the lock is released.
	lockKey := "job:retry:" + jobID
	token, err := u.locker.TryLock(ctx, lockKey, 30*time.Second)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := u.locker.Unlock(context.Background(), lockKey, token); err != nil {
			u.log.Warn().Str("job_id", jobID).Err(err).Msg("retry lock release failed")
		}
	}()

	var (
		successor *model.ProcessingJob
		parent    *model.ProcessingJob
	)
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.jobs.FindByIDForUpdate(ctx, tx, jobID)
		if err != nil {
			return err
		}
		next, err := p.NewRetry(uuid.NewString())
		if err != nil {
			return err
		}
		if err := u.jobs.Create(ctx, tx, next); err != nil {
			return err
		}

		// Supersede the parent: terminal status rewritten to cancelled with a
		// note pointing at the successor. The attempt record itself survives.
		now := time.Now()
		p.Status = model.JobStatusCancelled
		p.LastError = model.SupersededNote(next.ID)
		p.ErrorDetail = model.ErrorDetail{Category: model.ErrCategorySuperseded, Context: next.ID}
		p.CompletedAt = &now
		if err := u.jobs.Update(ctx, tx, p); err != nil {
			return err
		}

		successor, parent = next, p
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.IncJobRetry()
	u.log.Info().Str("job_id", parent.ID).Str("successor_id", successor.ID).
		Int("retry_count", successor.RetryCount).Msg("job superseded by retry")

	// Best-effort: tell the service to stop the dead parent run.
	if parent.RemoteID != "" {
		if err := u.runner.Cancel(ctx, parent.RemoteID); err != nil {
			u.log.Warn().Str("job_id", parent.ID).Err(err).Msg("cancel of superseded run failed")
		}
	}

	return u.dispatch(ctx, successor)
}

func (u *jobUC) Get(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	return u.jobs.FindByID(ctx, repository.NoTX, jobID)
}

func (u *jobUC) GetByRemoteID(ctx context.Context, remoteID string) (*model.ProcessingJob, error) {
	return u.jobs.FindByRemoteID(ctx, repository.NoTX, remoteID)
}

func (u *jobUC) MarkChecked(ctx context.Context, jobID string) error {
	return u.jobs.TouchLastChecked(ctx, repository.NoTX, jobID, time.Now())
}
