// File: internal/infra/storage/gcs/store.go
package gcs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/storage"
	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain/ports/adapter"
)

var _ adapter.ObjectStore = (*Store)(nil)

// Store implements the object-storage port on Google Cloud Storage.
// Multipart writes stage parts as separate objects behind presigned PUT URLs
// and compose them into the destination on completion; abort deletes the
// staged parts so no server-side reservation is left behind.
type Store struct {
	client *storage.Client
	bucket string
	now    func() time.Time
	log    *zerolog.Logger
}

func NewStore(ctx context.Context, bucket string, logger *zerolog.Logger) (*Store, error) {
	if bucket == "" {
		return nil, errors.New("gcs: bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}
	return &Store{client: client, bucket: bucket, now: time.Now, log: logger}, nil
}

func (s *Store) Bucket() string { return s.bucket }

// Stat is a metadata-only existence check; it never reads object bytes.
func (s *Store) Stat(ctx context.Context, key string) (adapter.ObjectStat, error) {
	attrs, err := s.client.Bucket(s.bucket).Object(key).Attrs(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return adapter.ObjectStat{Exists: false}, nil
		}
		return adapter.ObjectStat{}, fmt.Errorf("stat %s: %w", key, err)
	}
	return adapter.ObjectStat{Exists: true, Size: attrs.Size, ETag: attrs.Etag}, nil
}

// SignedPutURL issues a V4 presigned write URL with bounded expiry.
func (s *Store) SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("gcs: url ttl must be positive")
	}
	expires := s.now().Add(ttl)
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  http.MethodPut,
		Expires: expires,
	}
	if contentType != "" {
		opts.ContentType = contentType
	}
	url, err := s.client.Bucket(s.bucket).SignedURL(key, opts)
	if err != nil {
		if s.log != nil {
			s.log.Error().Str("object", key).Err(err).Msg("signed url generation failed")
		}
		return "", time.Time{}, fmt.Errorf("signed url: %w", err)
	}
	return url, expires, nil
}

// Compose concatenates staged part objects, in order, into dst. GCS caps a
// single compose at 32 sources, so larger sets fold through intermediate
// objects which are cleaned up afterwards. The staged parts themselves are
// left for the caller to delete.
func (s *Store) Compose(ctx context.Context, dst string, parts []string) error {
	if len(parts) == 0 {
		return errors.New("gcs: compose needs at least one part")
	}
	bkt := s.client.Bucket(s.bucket)

	const maxSources = 32
	current := parts
	round := 0
	for {
		if len(current) <= maxSources {
			srcs := make([]*storage.ObjectHandle, 0, len(current))
			for _, p := range current {
				srcs = append(srcs, bkt.Object(p))
			}
			if _, err := bkt.Object(dst).ComposerFrom(srcs...).Run(ctx); err != nil {
				return fmt.Errorf("compose %s: %w", dst, err)
			}
			if round > 0 {
				for _, p := range current {
					_ = s.Delete(ctx, p)
				}
			}
			return nil
		}

		var next []string
		for i := 0; i < len(current); i += maxSources {
			end := i + maxSources
			if end > len(current) {
				end = len(current)
			}
			target := fmt.Sprintf("%s.compose-%d-%d", dst, round, i/maxSources)
			srcs := make([]*storage.ObjectHandle, 0, end-i)
			for _, p := range current[i:end] {
				srcs = append(srcs, bkt.Object(p))
			}
			if _, err := bkt.Object(target).ComposerFrom(srcs...).Run(ctx); err != nil {
				return fmt.Errorf("compose %s: %w", target, err)
			}
			next = append(next, target)
		}
		if round > 0 {
			for _, p := range current {
				_ = s.Delete(ctx, p)
			}
		}
		current = next
		round++
	}
}

// Delete removes an object; a missing object is not an error, which makes
// abort idempotent.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *Store) Close() error { return s.client.Close() }
