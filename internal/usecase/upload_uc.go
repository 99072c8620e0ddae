// File: internal/usecase/upload_uc.go
package usecase

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/domain/ports/adapter"
	"video-analysis-platform/internal/infra/metrics"
)

// Compile-time check
var _ UploadUseCase = (*uploadUC)(nil)

type UploadUseCase interface {
	// Initialize decides single-shot vs chunked from the declared size and
	// returns presigned write locations. No server-side session is kept; the
	// plan itself is the session and travels back on Complete/Abort.
	Initialize(ctx context.Context, ownerID, filename string, size int64, contentType string) (*model.UploadPlan, error)
	// Complete finalizes the upload. Chunked plans need the full, correctly
	// numbered set of part acknowledgments; the destination is then verified
	// durable with a bounded-retry existence check.
	Complete(ctx context.Context, plan *model.UploadPlan, parts []model.PartAck) (*model.FinalizedAsset, error)
	// Abort releases staged parts and the destination. Idempotent; safe after
	// a failed or cancelled upload even if no part ever succeeded.
	Abort(ctx context.Context, plan *model.UploadPlan) error
}

type UploadConfig struct {
	ChunkThreshold int64
	PartSize       int64
	URLTTL         time.Duration
}

// Finalize verification: eventually-consistent storage may not show a
// just-composed object immediately.
const (
	durableCheckAttempts = 5
	durableCheckBackoff  = 2 * time.Second
)

type uploadUC struct {
	store adapter.ObjectStore
	cfg   UploadConfig
	log   *zerolog.Logger
}

func NewUploadUseCase(store adapter.ObjectStore, cfg UploadConfig, logger *zerolog.Logger) *uploadUC {
	return &uploadUC{store: store, cfg: cfg, log: logger}
}

func (u *uploadUC) Initialize(ctx context.Context, ownerID, filename string, size int64, contentType string) (*model.UploadPlan, error) {
	if ownerID == "" || filename == "" || size <= 0 {
		return nil, domain.ErrInvalidArgument
	}

	uploadID := ulid.Make().String()
	objectKey := path.Join("uploads", ownerID, uploadID, path.Base(filename))

	plan := &model.UploadPlan{
		UploadID:    uploadID,
		OwnerID:     ownerID,
		Bucket:      u.store.Bucket(),
		ObjectKey:   objectKey,
		ContentType: contentType,
		TotalSize:   size,
	}

	if size <= u.cfg.ChunkThreshold {
		url, expires, err := u.store.SignedPutURL(ctx, objectKey, contentType, u.cfg.URLTTL)
		if err != nil {
			return nil, fmt.Errorf("sign put url: %w", err)
		}
		plan.PutURL = url
		plan.ExpiresAt = expires
		return plan, nil
	}

	plan.Chunked = true
	plan.PartSize = u.cfg.PartSize
	numParts := int((size + u.cfg.PartSize - 1) / u.cfg.PartSize)
	plan.Parts = make([]model.PlannedPart, 0, numParts)

	for i := 0; i < numParts; i++ {
		offset := int64(i) * u.cfg.PartSize
		partSize := u.cfg.PartSize
		if offset+partSize > size {
			partSize = size - offset
		}
		key := partKey(objectKey, i+1)
		url, expires, err := u.store.SignedPutURL(ctx, key, contentType, u.cfg.URLTTL)
		if err != nil {
			return nil, fmt.Errorf("sign part %d url: %w", i+1, err)
		}
		plan.Parts = append(plan.Parts, model.PlannedPart{
			Number: i + 1,
			Key:    key,
			URL:    url,
			Offset: offset,
			Size:   partSize,
		})
		plan.ExpiresAt = expires
	}

	u.log.Debug().Str("upload_id", uploadID).Int("parts", numParts).Int64("size", size).Msg("chunked upload planned")
	return plan, nil
}

func (u *uploadUC) Complete(ctx context.Context, plan *model.UploadPlan, parts []model.PartAck) (*model.FinalizedAsset, error) {
	if plan == nil || plan.ObjectKey == "" {
		return nil, domain.ErrInvalidArgument
	}

	if plan.Chunked {
		ordered, err := model.OrderParts(parts, len(plan.Parts))
		if err != nil {
			return nil, fmt.Errorf("finalize upload %s: %w", plan.UploadID, err)
		}
		keys := make([]string, 0, len(ordered))
		for _, a := range ordered {
			keys = append(keys, partKey(plan.ObjectKey, a.Number))
		}
		if err := u.store.Compose(ctx, plan.ObjectKey, keys); err != nil {
			return nil, fmt.Errorf("compose upload %s: %w", plan.UploadID, err)
		}
		for _, k := range keys {
			if err := u.store.Delete(ctx, k); err != nil {
				u.log.Warn().Str("upload_id", plan.UploadID).Str("part", k).Err(err).Msg("staged part cleanup failed")
			}
		}
	}

	stat, err := u.waitDurable(ctx, plan.ObjectKey)
	if err != nil {
		return nil, err
	}

	metrics.ObserveUploadFinalized(plan.Chunked, stat.Size)
	return &model.FinalizedAsset{
		Bucket:    plan.Bucket,
		ObjectKey: plan.ObjectKey,
		Size:      stat.Size,
		CreatedAt: time.Now(),
	}, nil
}

func (u *uploadUC) Abort(ctx context.Context, plan *model.UploadPlan) error {
	if plan == nil || plan.ObjectKey == "" {
		return domain.ErrInvalidArgument
	}
	for _, p := range plan.Parts {
		if err := u.store.Delete(ctx, p.Key); err != nil {
			return fmt.Errorf("abort upload %s: %w", plan.UploadID, err)
		}
	}
	if err := u.store.Delete(ctx, plan.ObjectKey); err != nil {
		return fmt.Errorf("abort upload %s: %w", plan.UploadID, err)
	}
	metrics.IncUploadAborted()
	return nil
}

// waitDurable retries the metadata existence check a fixed number of times
// with fixed backoff, requiring a non-zero size before the object counts as
// durable.
func (u *uploadUC) waitDurable(ctx context.Context, key string) (adapter.ObjectStat, error) {
	var lastErr error
	for attempt := 1; attempt <= durableCheckAttempts; attempt++ {
		stat, err := u.store.Stat(ctx, key)
		if err == nil && stat.Exists && stat.Size > 0 {
			return stat, nil
		}
		lastErr = err

		if attempt < durableCheckAttempts {
			select {
			case <-ctx.Done():
				return adapter.ObjectStat{}, ctx.Err()
			case <-time.After(durableCheckBackoff):
			}
		}
	}
	if lastErr != nil {
		return adapter.ObjectStat{}, fmt.Errorf("%w: %s: %v", domain.ErrNotDurable, key, lastErr)
	}
	return adapter.ObjectStat{}, fmt.Errorf("%w: %s", domain.ErrNotDurable, key)
}

func partKey(objectKey string, number int) string {
	return fmt.Sprintf("%s.part-%05d", objectKey, number)
}
