//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/usecase"
)

func newUploadUC(store *MockObjectStore) usecase.UploadUseCase {
	return usecase.NewUploadUseCase(store, usecase.UploadConfig{
		ChunkThreshold: 100,
		PartSize:       40,
		URLTTL:         15 * time.Minute,
	}, newTestLogger())
}

func TestUploadUseCase_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("a small file gets one presigned URL", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, err := uc.Initialize(ctx, "u1", "clip.mp4", 100, "video/mp4")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if plan.Chunked {
			t.Error("expected a single-shot plan at the threshold")
		}
		if plan.PutURL == "" {
			t.Error("expected a presigned PUT URL")
		}
		if len(plan.Parts) != 0 {
			t.Errorf("expected no parts, got %d", len(plan.Parts))
		}
		if !strings.HasPrefix(plan.ObjectKey, "uploads/u1/") || !strings.HasSuffix(plan.ObjectKey, "/clip.mp4") {
			t.Errorf("unexpected object key %q", plan.ObjectKey)
		}
	})

	t.Run("a large file is split into numbered parts covering every byte", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, err := uc.Initialize(ctx, "u1", "movie.mp4", 130, "video/mp4")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !plan.Chunked {
			t.Fatal("expected a chunked plan above the threshold")
		}
		if len(plan.Parts) != 4 {
			t.Fatalf("expected 4 parts for 130 bytes at 40 per part, got %d", len(plan.Parts))
		}

		var total int64
		for i, p := range plan.Parts {
			if p.Number != i+1 {
				t.Errorf("part %d numbered %d", i, p.Number)
			}
			if p.Offset != int64(i)*40 {
				t.Errorf("part %d offset %d", p.Number, p.Offset)
			}
			if p.URL == "" {
				t.Errorf("part %d missing URL", p.Number)
			}
			total += p.Size
		}
		if total != 130 {
			t.Errorf("parts cover %d bytes, want 130", total)
		}
		if last := plan.Parts[3]; last.Size != 10 {
			t.Errorf("expected a 10-byte tail part, got %d", last.Size)
		}
	})

	t.Run("invalid input is rejected", func(t *testing.T) {
		uc := newUploadUC(NewMockObjectStore())
		if _, err := uc.Initialize(ctx, "u1", "clip.mp4", 0, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for zero size, got %v", err)
		}
		if _, err := uc.Initialize(ctx, "", "clip.mp4", 10, ""); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument for missing owner, got %v", err)
		}
	})
}

func TestUploadUseCase_Complete(t *testing.T) {
	ctx := context.Background()

	// stage simulates the client having PUT every planned part.
	stage := func(store *MockObjectStore, plan *model.UploadPlan) []model.PartAck {
		acks := make([]model.PartAck, 0, len(plan.Parts))
		for _, p := range plan.Parts {
			store.PutObject(p.Key, p.Size)
			acks = append(acks, model.PartAck{Number: p.Number, ETag: fmt.Sprintf("etag-%d", p.Number)})
		}
		return acks
	}

	t.Run("chunked completion composes, cleans parts, and verifies durability", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, err := uc.Initialize(ctx, "u1", "movie.mp4", 130, "video/mp4")
		if err != nil {
			t.Fatalf("initialize: %v", err)
		}
		acks := stage(store, plan)

		// Acks arrive out of order; completion must still assemble 1..n.
		acks[0], acks[2] = acks[2], acks[0]

		asset, err := uc.Complete(ctx, plan, acks)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if asset.Size != 130 {
			t.Errorf("expected a 130-byte asset, got %d", asset.Size)
		}
		if asset.ObjectKey != plan.ObjectKey {
			t.Errorf("asset key %q, want %q", asset.ObjectKey, plan.ObjectKey)
		}

		if len(store.Composed) != 1 {
			t.Fatalf("expected one compose call, got %d", len(store.Composed))
		}
		for i, key := range store.Composed[0] {
			if want := fmt.Sprintf("%s.part-%05d", plan.ObjectKey, i+1); key != want {
				t.Errorf("compose source %d = %q, want %q", i, key, want)
			}
		}
		for _, p := range plan.Parts {
			if store.Has(p.Key) {
				t.Errorf("staged part %s not cleaned up", p.Key)
			}
		}
	})

	t.Run("a missing part is a data-integrity failure", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, _ := uc.Initialize(ctx, "u1", "movie.mp4", 130, "video/mp4")
		acks := stage(store, plan)

		_, err := uc.Complete(ctx, plan, acks[:len(acks)-1])
		if !errors.Is(err, domain.ErrPartIntegrity) {
			t.Errorf("expected ErrPartIntegrity, got %v", err)
		}
		if len(store.Composed) != 0 {
			t.Error("must not compose a truncated object")
		}
	})

	t.Run("a duplicated part number is a data-integrity failure", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, _ := uc.Initialize(ctx, "u1", "movie.mp4", 130, "video/mp4")
		acks := stage(store, plan)
		acks[1].Number = 1

		_, err := uc.Complete(ctx, plan, acks)
		if !errors.Is(err, domain.ErrPartIntegrity) {
			t.Errorf("expected ErrPartIntegrity, got %v", err)
		}
	})

	t.Run("single-shot completion just verifies the destination", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, _ := uc.Initialize(ctx, "u1", "clip.mp4", 80, "video/mp4")
		store.PutObject(plan.ObjectKey, 80)

		asset, err := uc.Complete(ctx, plan, nil)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if asset.Size != 80 {
			t.Errorf("expected 80 bytes, got %d", asset.Size)
		}
		if len(store.Composed) != 0 {
			t.Error("single-shot must not compose")
		}
	})
}

func TestUploadUseCase_Abort(t *testing.T) {
	ctx := context.Background()

	t.Run("abort removes staged parts and the destination", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, _ := uc.Initialize(ctx, "u1", "movie.mp4", 130, "video/mp4")
		for _, p := range plan.Parts[:2] { // only some parts made it
			store.PutObject(p.Key, p.Size)
		}

		if err := uc.Abort(ctx, plan); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		for _, p := range plan.Parts {
			if store.Has(p.Key) {
				t.Errorf("part %s survived abort", p.Key)
			}
		}
		if store.Has(plan.ObjectKey) {
			t.Error("destination survived abort")
		}
	})

	t.Run("abort is idempotent", func(t *testing.T) {
		store := NewMockObjectStore()
		uc := newUploadUC(store)

		plan, _ := uc.Initialize(ctx, "u1", "movie.mp4", 130, "video/mp4")
		if err := uc.Abort(ctx, plan); err != nil {
			t.Fatalf("first abort: %v", err)
		}
		if err := uc.Abort(ctx, plan); err != nil {
			t.Fatalf("second abort: %v", err)
		}
	})
}
