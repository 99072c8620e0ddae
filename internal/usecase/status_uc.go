// File: internal/usecase/status_uc.go
package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
)

// Compile-time check
var _ StatusUseCase = (*statusUC)(nil)

// JobStatusView is the unified answer of one status poll: the stored record,
// the classifier's verdict, and storage-ground-truth progress.
type JobStatusView struct {
	Job              *model.ProcessingJob
	Dispatched       bool
	Verdict          *HealthVerdict
	Progress         *StageProgress
	RetriesRemaining int
}

type StatusUseCase interface {
	// Query accepts either an internal job id or a remote execution id. A job
	// that exists but has no remote id yet yields Dispatched=false rather
	// than an error.
	Query(ctx context.Context, ref string) (*JobStatusView, error)
}

// statusUC reconciles three independent signals about the same job: the
// stored status, the execution service's claim, and the artifacts actually
// present in storage. It never regresses a terminal status, and when the
// signals disagree it prefers storage-verified ground truth over either
// self-reported source.
type statusUC struct {
	jobs     JobUseCase
	health   WorkerHealthUseCase
	progress ProgressUseCase
	log      *zerolog.Logger
}

func NewStatusUseCase(jobs JobUseCase, health WorkerHealthUseCase, progress ProgressUseCase, logger *zerolog.Logger) *statusUC {
	return &statusUC{jobs: jobs, health: health, progress: progress, log: logger}
}

func (u *statusUC) Query(ctx context.Context, ref string) (*JobStatusView, error) {
	if ref == "" {
		return nil, domain.ErrInvalidArgument
	}

	job, err := u.jobs.Get(ctx, ref)
	if errors.Is(err, domain.ErrNotFound) {
		job, err = u.jobs.GetByRemoteID(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	view := &JobStatusView{Job: job, RetriesRemaining: job.RetriesRemaining()}
	if job.RemoteID == "" {
		// Known job, not yet handed to the execution service. A distinct
		// answer, not an error.
		return view, nil
	}
	view.Dispatched = true

	if err := u.jobs.MarkChecked(ctx, job.ID); err != nil && u.log != nil {
		u.log.Warn().Str("job_id", job.ID).Err(err).Msg("mark checked failed")
	}

	verdict, err := u.health.Check(ctx, job.RemoteID)
	if err != nil {
		return nil, err
	}
	view.Verdict = verdict

	prog, err := u.progress.Check(ctx, job.UserID, job.VideoID)
	if err != nil {
		return nil, err
	}
	view.Progress = prog

	updated, err := u.reconcile(ctx, job, verdict, prog)
	if err != nil {
		return nil, err
	}
	view.Job = updated
	view.RetriesRemaining = updated.RetriesRemaining()
	return view, nil
}

// reconcile folds the verdict and the oracle into at most one transition.
func (u *statusUC) reconcile(ctx context.Context, job *model.ProcessingJob, v *HealthVerdict, prog *StageProgress) (*model.ProcessingJob, error) {
	// Storage says everything is there: that outranks any claim of failure.
	// Only an explicit cancellation or an already-completed record stands.
	if prog.AllComplete && job.Status != model.JobStatusCancelled {
		if job.Status == model.JobStatusCompleted {
			return job, nil
		}
		// Transition permits the failed-family -> completed upgrade.
		return u.jobs.Transition(ctx, job.ID, model.JobStatusCompleted, "", nil)
	}

	// Never regress a terminal status on the say-so of a poll.
	if job.Status.IsTerminal() {
		return job, nil
	}

	switch {
	case v.CompletedSuccessfully:
		return u.jobs.Transition(ctx, job.ID, model.JobStatusCompleted, "", nil)

	case v.WorkerDied:
		status := model.JobStatusFailed
		switch v.Category {
		case model.ErrCategoryWorkerDied:
			status = model.JobStatusWorkerDied
		case model.ErrCategoryTimeout:
			status = model.JobStatusTimedOut
		}
		detail := &model.ErrorDetail{
			Category:   v.Category,
			RemoteCode: string(v.RemoteState),
			Context:    "status poll",
		}
		return u.jobs.Transition(ctx, job.ID, status, v.ErrorMessage, detail)

	case v.IsAlive:
		if job.Status == model.JobStatusQueued {
			return u.jobs.Transition(ctx, job.ID, model.JobStatusRunning, "", nil)
		}
		return job, nil

	default:
		// Cancelled remotely: terminal here too, and not retryable.
		return u.jobs.Transition(ctx, job.ID, model.JobStatusCancelled, v.ErrorMessage, nil)
	}
}
