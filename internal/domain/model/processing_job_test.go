package model_test

import (
	"errors"
	"reflect"
	"testing"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
)

func validParams() model.JobParams {
	return model.JobParams{SourceBucket: "videos", SourceKey: "users/u1/videos/v1/raw.mp4"}
}

func TestNewProcessingJob(t *testing.T) {
	t.Run("constructs a queued job", func(t *testing.T) {
		job, err := model.NewProcessingJob("job-1", "u1", "v1", validParams(), 3)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if job.Status != model.JobStatusQueued {
			t.Errorf("expected queued, got %s", job.Status)
		}
		if job.RetryCount != 0 || job.RetryLimit != 3 {
			t.Errorf("unexpected retry accounting: %d/%d", job.RetryCount, job.RetryLimit)
		}
		if job.CreatedAt.IsZero() {
			t.Error("expected CreatedAt to be set")
		}
	})

	t.Run("rejects missing identifiers and params", func(t *testing.T) {
		cases := []struct {
			name            string
			id, user, video string
			params          model.JobParams
			limit           int
		}{
			{"missing id", "", "u1", "v1", validParams(), 3},
			{"missing user", "job-1", "", "v1", validParams(), 3},
			{"missing video", "job-1", "u1", "", validParams(), 3},
			{"missing source bucket", "job-1", "u1", "v1", model.JobParams{SourceKey: "k"}, 3},
			{"missing source key", "job-1", "u1", "v1", model.JobParams{SourceBucket: "b"}, 3},
			{"negative retry limit", "job-1", "u1", "v1", validParams(), -1},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := model.NewProcessingJob(tc.id, tc.user, tc.video, tc.params, tc.limit)
				if !errors.Is(err, domain.ErrInvalidArgument) {
					t.Errorf("expected ErrInvalidArgument, got %v", err)
				}
			})
		}
	})
}

func TestJobStatus_Classification(t *testing.T) {
	terminal := []model.JobStatus{
		model.JobStatusCompleted, model.JobStatusFailed, model.JobStatusWorkerDied,
		model.JobStatusCancelled, model.JobStatusTimedOut,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []model.JobStatus{model.JobStatusQueued, model.JobStatusRunning} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}

	retryable := []model.JobStatus{model.JobStatusFailed, model.JobStatusWorkerDied, model.JobStatusTimedOut}
	for _, s := range retryable {
		if !s.IsRetryable() {
			t.Errorf("%s should be retryable", s)
		}
	}
	// Completed and cancelled are terminal for good.
	for _, s := range []model.JobStatus{model.JobStatusCompleted, model.JobStatusCancelled} {
		if s.IsRetryable() {
			t.Errorf("%s should not be retryable", s)
		}
	}

	if model.ValidStatus(model.JobStatus("exploded")) {
		t.Error("unknown status should not validate")
	}
}

func TestProcessingJob_Retry(t *testing.T) {
	t.Run("successor inherits params and advances the count", func(t *testing.T) {
		parent, _ := model.NewProcessingJob("job-1", "u1", "v1", validParams(), 3)
		parent.Status = model.JobStatusWorkerDied
		parent.RetryCount = 1

		next, err := parent.NewRetry("job-2")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if next.RetryCount != 2 {
			t.Errorf("expected count 2, got %d", next.RetryCount)
		}
		if next.Status != model.JobStatusQueued {
			t.Errorf("expected queued successor, got %s", next.Status)
		}
		if next.ParentJobID == nil || *next.ParentJobID != "job-1" {
			t.Errorf("expected parent lineage, got %v", next.ParentJobID)
		}
		if !reflect.DeepEqual(next.Params, parent.Params) {
			t.Errorf("expected params inherited")
		}
		if next.RemoteID != "" {
			t.Error("successor must start without a remote id")
		}
	})

	t.Run("denied at the ceiling", func(t *testing.T) {
		parent, _ := model.NewProcessingJob("job-1", "u1", "v1", validParams(), 2)
		parent.Status = model.JobStatusFailed
		parent.RetryCount = 2

		if _, err := parent.NewRetry("job-2"); !errors.Is(err, domain.ErrRetryCeiling) {
			t.Errorf("expected ErrRetryCeiling, got %v", err)
		}
	})

	t.Run("denied outside the failed family", func(t *testing.T) {
		parent, _ := model.NewProcessingJob("job-1", "u1", "v1", validParams(), 3)
		parent.Status = model.JobStatusRunning

		if _, err := parent.NewRetry("job-2"); !errors.Is(err, domain.ErrNotRetryable) {
			t.Errorf("expected ErrNotRetryable, got %v", err)
		}
	})

	t.Run("retries remaining never goes negative", func(t *testing.T) {
		job, _ := model.NewProcessingJob("job-1", "u1", "v1", validParams(), 2)
		job.RetryCount = 5
		if n := job.RetriesRemaining(); n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})
}
