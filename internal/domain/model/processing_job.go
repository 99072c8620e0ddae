package model

import (
	"fmt"
	"time"

	"video-analysis-platform/internal/domain"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusWorkerDied JobStatus = "worker_died"
	JobStatusCancelled  JobStatus = "cancelled"
	JobStatusTimedOut   JobStatus = "timed_out"
)

// ErrorCategory classifies what went wrong with a job, so operators can tell
// "never ran" apart from "ran and failed".
type ErrorCategory string

const (
	ErrCategoryNone       ErrorCategory = ""
	ErrCategoryWorkerDied ErrorCategory = "worker_died"
	ErrCategoryNeverRan   ErrorCategory = "never_ran"
	ErrCategoryTimeout    ErrorCategory = "timeout"
	ErrCategoryRemote     ErrorCategory = "remote_failure"
	ErrCategorySuperseded ErrorCategory = "superseded"
)

// ErrorDetail is the structured diagnostic attached to a failed job.
type ErrorDetail struct {
	Category   ErrorCategory `json:"category,omitempty"`
	RemoteCode string        `json:"remote_code,omitempty"`
	Context    string        `json:"context,omitempty"`
}

// JobParams is the execution descriptor: everything needed to re-dispatch
// equivalent work. Stored as JSONB so a retry can reconstruct the dispatch
// without consulting any other table.
type JobParams struct {
	SourceBucket string            `json:"source_bucket"`
	SourceKey    string            `json:"source_key"`
	Options      map[string]string `json:"options,omitempty"`
}

// ProcessingJob is one dispatch attempt of analysis work against a video.
// Retries never mutate an attempt in place; a successor job is created and
// the superseded attempt is rewritten to cancelled.
type ProcessingJob struct {
	ID          string
	RemoteID    string // assigned once dispatched; empty while queued
	UserID      string
	VideoID     string
	Params      JobParams
	Status      JobStatus
	RetryCount  int
	RetryLimit  int
	ParentJobID *string
	LastError   string
	ErrorDetail ErrorDetail
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	LastChecked *time.Time
}

// NewProcessingJob validates and constructs a queued job.
func NewProcessingJob(id, userID, videoID string, params JobParams, retryLimit int) (*ProcessingJob, error) {
	if id == "" || userID == "" || videoID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if params.SourceBucket == "" || params.SourceKey == "" {
		return nil, domain.ErrInvalidArgument
	}
	if retryLimit < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &ProcessingJob{
		ID:         id,
		UserID:     userID,
		VideoID:    videoID,
		Params:     params,
		Status:     JobStatusQueued,
		RetryLimit: retryLimit,
		CreatedAt:  time.Now(),
	}, nil
}

// IsTerminal reports whether no further transitions are allowed except
// supersession through an explicit retry.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusWorkerDied, JobStatusCancelled, JobStatusTimedOut:
		return true
	}
	return false
}

// IsRetryable reports whether a job in this status may spawn a successor.
// Completed and cancelled jobs are terminal for good.
func (s JobStatus) IsRetryable() bool {
	switch s {
	case JobStatusFailed, JobStatusWorkerDied, JobStatusTimedOut:
		return true
	}
	return false
}

func ValidStatus(s JobStatus) bool {
	switch s {
	case JobStatusQueued, JobStatusRunning, JobStatusCompleted, JobStatusFailed,
		JobStatusWorkerDied, JobStatusCancelled, JobStatusTimedOut:
		return true
	}
	return false
}

// CanRetry checks both the status and the retry accounting.
func (j *ProcessingJob) CanRetry() error {
	if !j.Status.IsRetryable() {
		return domain.ErrNotRetryable
	}
	if j.RetryCount >= j.RetryLimit {
		return domain.ErrRetryCeiling
	}
	return nil
}

// RetriesRemaining is surfaced alongside user-visible failures.
func (j *ProcessingJob) RetriesRemaining() int {
	if n := j.RetryLimit - j.RetryCount; n > 0 {
		return n
	}
	return 0
}

// NewRetry builds the successor attempt for a retryable parent.
func (j *ProcessingJob) NewRetry(newID string) (*ProcessingJob, error) {
	if err := j.CanRetry(); err != nil {
		return nil, err
	}
	if newID == "" {
		return nil, domain.ErrInvalidArgument
	}
	parentID := j.ID
	return &ProcessingJob{
		ID:          newID,
		UserID:      j.UserID,
		VideoID:     j.VideoID,
		Params:      j.Params,
		Status:      JobStatusQueued,
		RetryCount:  j.RetryCount + 1,
		RetryLimit:  j.RetryLimit,
		ParentJobID: &parentID,
		CreatedAt:   time.Now(),
	}, nil
}

// SupersededNote is written into the parent's LastError when a retry replaces it.
func SupersededNote(successorID string) string {
	return fmt.Sprintf("superseded by retry job %s", successorID)
}
