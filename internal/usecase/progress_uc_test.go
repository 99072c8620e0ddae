//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/ports/adapter"
	"video-analysis-platform/internal/usecase"
)

func TestProgressUseCase_Check(t *testing.T) {
	ctx := context.Background()
	stages := []string{"metadata.json", "detections.json", "report.json"}

	t.Run("all artifacts present means all complete", func(t *testing.T) {
		store := NewMockObjectStore()
		for _, s := range stages {
			store.PutObject(usecase.ArtifactKey("u1", "v1", s), 100)
		}
		uc := usecase.NewProgressUseCase(store, stages)

		p, err := uc.Check(ctx, "u1", "v1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !p.AllComplete {
			t.Error("expected AllComplete")
		}
		for _, s := range stages {
			if !p.Stages[s] {
				t.Errorf("expected stage %s present", s)
			}
		}
	})

	t.Run("one missing artifact fails the whole check", func(t *testing.T) {
		store := NewMockObjectStore()
		store.PutObject(usecase.ArtifactKey("u1", "v1", "metadata.json"), 100)
		store.PutObject(usecase.ArtifactKey("u1", "v1", "report.json"), 100)
		uc := usecase.NewProgressUseCase(store, stages)

		p, err := uc.Check(ctx, "u1", "v1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.AllComplete {
			t.Error("expected AllComplete to be false")
		}
		if p.Stages["detections.json"] {
			t.Error("expected detections.json to be missing")
		}
		if !p.Stages["metadata.json"] {
			t.Error("expected metadata.json to be present")
		}
	})

	t.Run("a zero-byte artifact does not count", func(t *testing.T) {
		// A crash mid-write can leave an empty object behind.
		store := NewMockObjectStore()
		for _, s := range stages {
			store.PutObject(usecase.ArtifactKey("u1", "v1", s), 100)
		}
		store.PutObject(usecase.ArtifactKey("u1", "v1", "report.json"), 0)
		uc := usecase.NewProgressUseCase(store, stages)

		p, err := uc.Check(ctx, "u1", "v1")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if p.AllComplete {
			t.Error("expected AllComplete to be false with a zero-byte artifact")
		}
	})

	t.Run("identifiers are required", func(t *testing.T) {
		uc := usecase.NewProgressUseCase(NewMockObjectStore(), stages)
		if _, err := uc.Check(ctx, "", "v1"); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("a storage error aborts the check", func(t *testing.T) {
		statErr := errors.New("backend unavailable")
		store := NewMockObjectStore()
		store.StatFunc = func(context.Context, string) (adapter.ObjectStat, error) {
			return adapter.ObjectStat{}, statErr
		}
		uc := usecase.NewProgressUseCase(store, stages)

		if _, err := uc.Check(ctx, "u1", "v1"); !errors.Is(err, statErr) {
			t.Errorf("expected the storage error through, got %v", err)
		}
	})
}
