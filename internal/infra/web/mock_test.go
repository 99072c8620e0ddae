//go:build !integration

package web_test

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// ---- Mock JobUseCase ----

type MockJobUC struct {
	CreateFunc     func(ctx context.Context, jobID, userID, videoID string, params model.JobParams) (*model.ProcessingJob, error)
	TransitionFunc func(ctx context.Context, jobID string, status model.JobStatus, msg string, detail *model.ErrorDetail) (*model.ProcessingJob, error)
	RetryFunc      func(ctx context.Context, jobID string) (*model.ProcessingJob, error)
	GetFunc        func(ctx context.Context, jobID string) (*model.ProcessingJob, error)
	Transitions    []model.JobStatus
}

var _ usecase.JobUseCase = (*MockJobUC)(nil)

func (m *MockJobUC) Create(ctx context.Context, jobID, userID, videoID string, params model.JobParams) (*model.ProcessingJob, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, jobID, userID, videoID, params)
	}
	return model.NewProcessingJob(jobID, userID, videoID, params, 3)
}

func (m *MockJobUC) Transition(ctx context.Context, jobID string, status model.JobStatus, msg string, detail *model.ErrorDetail) (*model.ProcessingJob, error) {
	m.Transitions = append(m.Transitions, status)
	if m.TransitionFunc != nil {
		return m.TransitionFunc(ctx, jobID, status, msg, detail)
	}
	return nil, nil
}

func (m *MockJobUC) Retry(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	if m.RetryFunc != nil {
		return m.RetryFunc(ctx, jobID)
	}
	return nil, errors.New("not configured")
}

func (m *MockJobUC) Get(ctx context.Context, jobID string) (*model.ProcessingJob, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, jobID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockJobUC) GetByRemoteID(ctx context.Context, remoteID string) (*model.ProcessingJob, error) {
	return nil, domain.ErrNotFound
}

func (m *MockJobUC) MarkChecked(ctx context.Context, jobID string) error { return nil }

// ---- Mock StatusUseCase ----

type MockStatusUC struct {
	QueryFunc func(ctx context.Context, ref string) (*usecase.JobStatusView, error)
}

var _ usecase.StatusUseCase = (*MockStatusUC)(nil)

func (m *MockStatusUC) Query(ctx context.Context, ref string) (*usecase.JobStatusView, error) {
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, ref)
	}
	return nil, domain.ErrNotFound
}

// ---- Mock UploadUseCase ----

type MockUploadUC struct {
	InitializeFunc func(ctx context.Context, ownerID, filename string, size int64, contentType string) (*model.UploadPlan, error)
	CompleteFunc   func(ctx context.Context, plan *model.UploadPlan, parts []model.PartAck) (*model.FinalizedAsset, error)
	AbortFunc      func(ctx context.Context, plan *model.UploadPlan) error
}

var _ usecase.UploadUseCase = (*MockUploadUC)(nil)

func (m *MockUploadUC) Initialize(ctx context.Context, ownerID, filename string, size int64, contentType string) (*model.UploadPlan, error) {
	if m.InitializeFunc != nil {
		return m.InitializeFunc(ctx, ownerID, filename, size, contentType)
	}
	return &model.UploadPlan{
		UploadID:  "up-1",
		OwnerID:   ownerID,
		Bucket:    "test-bucket",
		ObjectKey: "uploads/" + ownerID + "/up-1/" + filename,
		TotalSize: size,
		PutURL:    "https://signed.example/put",
		ExpiresAt: time.Now().Add(15 * time.Minute),
	}, nil
}

func (m *MockUploadUC) Complete(ctx context.Context, plan *model.UploadPlan, parts []model.PartAck) (*model.FinalizedAsset, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, plan, parts)
	}
	return &model.FinalizedAsset{Bucket: plan.Bucket, ObjectKey: plan.ObjectKey, Size: plan.TotalSize, CreatedAt: time.Now()}, nil
}

func (m *MockUploadUC) Abort(ctx context.Context, plan *model.UploadPlan) error {
	if m.AbortFunc != nil {
		return m.AbortFunc(ctx, plan)
	}
	return nil
}

// ---- Mock TokenVerifier ----

// MockVerifier accepts tokens of the form "tok-<jobID>".
type MockVerifier struct{}

func (MockVerifier) Verify(token string) (string, error) {
	const prefix = "tok-"
	if len(token) <= len(prefix) || token[:len(prefix)] != prefix {
		return "", errors.New("bad token")
	}
	return token[len(prefix):], nil
}
