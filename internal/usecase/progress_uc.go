// File: internal/usecase/progress_uc.go
package usecase

import (
	"context"
	"fmt"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/ports/adapter"
)

// Compile-time check
var _ ProgressUseCase = (*progressUC)(nil)

// StageProgress reports which pipeline stages have their expected artifact in
// object storage. This is storage-ground-truth progress, deliberately
// decoupled from whatever the worker or webhook claims.
type StageProgress struct {
	Order       []string        `json:"order"`
	Stages      map[string]bool `json:"stages"`
	AllComplete bool            `json:"all_complete"`
}

type ProgressUseCase interface {
	Check(ctx context.Context, userID, videoID string) (*StageProgress, error)
}

type progressUC struct {
	store  adapter.ObjectStore
	stages []string
}

func NewProgressUseCase(store adapter.ObjectStore, stages []string) *progressUC {
	return &progressUC{store: store, stages: stages}
}

// ArtifactKey is where the pipeline writes the named artifact for a video.
func ArtifactKey(userID, videoID, artifact string) string {
	return fmt.Sprintf("users/%s/videos/%s/results/%s", userID, videoID, artifact)
}

// Check runs a metadata-only existence probe per expected artifact.
// AllComplete is the AND of every stage.
func (u *progressUC) Check(ctx context.Context, userID, videoID string) (*StageProgress, error) {
	if userID == "" || videoID == "" {
		return nil, domain.ErrInvalidArgument
	}

	p := &StageProgress{
		Order:       u.stages,
		Stages:      make(map[string]bool, len(u.stages)),
		AllComplete: true,
	}
	for _, stage := range u.stages {
		stat, err := u.store.Stat(ctx, ArtifactKey(userID, videoID, stage))
		if err != nil {
			return nil, fmt.Errorf("check artifact %s: %w", stage, err)
		}
		present := stat.Exists && stat.Size > 0
		p.Stages[stage] = present
		if !present {
			p.AllComplete = false
		}
	}
	return p, nil
}
