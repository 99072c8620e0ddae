// File: internal/uploader/uploader.go
package uploader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/infra/worker"
)

// Aborter releases server-side reservations of a cancelled or failed upload.
type Aborter interface {
	Abort(ctx context.Context, plan *model.UploadPlan) error
}

// Uploader executes an UploadPlan: one tracked PUT for single-shot plans,
// part PUTs with bounded concurrency for chunked ones. A cancelled context
// aborts every in-flight part and then releases the server-side reservation,
// so no orphaned parts are left in storage.
type Uploader struct {
	httpClient   *http.Client
	pool         *worker.Pool
	aborter      Aborter
	log          *zerolog.Logger
	partAttempts int
	retryDelay   time.Duration
}

func New(pool *worker.Pool, aborter Aborter, logger *zerolog.Logger) *Uploader {
	return &Uploader{
		httpClient:   &http.Client{Timeout: 10 * time.Minute},
		pool:         pool,
		aborter:      aborter,
		log:          logger,
		partAttempts: 3,
		retryDelay:   500 * time.Millisecond,
	}
}

// Upload transfers src per the plan and returns the collected part acks
// (nil for single-shot). Parts may finish out of order; ordering is the
// finalizer's job.
func (u *Uploader) Upload(ctx context.Context, plan *model.UploadPlan, src io.ReaderAt, onProgress ProgressFunc) ([]model.PartAck, error) {
	t := newTracker(plan.TotalSize, onProgress)

	if !plan.Chunked {
		body := io.NewSectionReader(src, 0, plan.TotalSize)
		if _, err := u.put(ctx, plan.PutURL, body, plan.TotalSize, plan.ContentType, t); err != nil {
			u.abort(plan)
			return nil, err
		}
		t.finish()
		return nil, nil
	}

	uploadCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		acks     []model.PartAck
		firstErr error
		wg       sync.WaitGroup
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		cancel() // stop the siblings; cancellation propagates within one tick
	}

	for _, part := range plan.Parts {
		part := part
		wg.Add(1)
		task := func(_ context.Context) error {
			defer wg.Done()
			ack, err := u.uploadPart(uploadCtx, plan, part, src, t)
			if err != nil {
				fail(fmt.Errorf("part %d: %w", part.Number, err))
				return nil // already recorded; pool logging would duplicate it
			}
			mu.Lock()
			acks = append(acks, ack)
			mu.Unlock()
			return nil
		}
		if err := u.pool.Submit(uploadCtx, task); err != nil {
			wg.Done()
			fail(err)
			break
		}
	}
	wg.Wait()

	mu.Lock()
	err := firstErr
	out := acks
	mu.Unlock()

	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		u.abort(plan)
		return nil, err
	}
	t.finish()
	return out, nil
}

// uploadPart PUTs one part with bounded local retries on transient failures.
// It never retries after cancellation.
func (u *Uploader) uploadPart(ctx context.Context, plan *model.UploadPlan, part model.PlannedPart, src io.ReaderAt, t *tracker) (model.PartAck, error) {
	var lastErr error
	for attempt := 1; attempt <= u.partAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return model.PartAck{}, err
		}

		body := io.NewSectionReader(src, part.Offset, part.Size)
		etag, err := u.put(ctx, part.URL, body, part.Size, plan.ContentType, t)
		if err == nil {
			return model.PartAck{Number: part.Number, ETag: etag}, nil
		}
		lastErr = err

		var pe *permanentError
		if errors.As(err, &pe) {
			break
		}
		if attempt < u.partAttempts {
			if u.log != nil {
				u.log.Debug().Str("upload_id", plan.UploadID).Int("part", part.Number).
					Int("attempt", attempt).Err(err).Msg("part transfer retrying")
			}
			select {
			case <-ctx.Done():
				return model.PartAck{}, ctx.Err()
			case <-time.After(u.retryDelay):
			}
		}
	}
	return model.PartAck{}, lastErr
}

// put performs one tracked transfer. Byte counts of a failed attempt are
// rolled back so aggregate progress never double-counts a retried part.
func (u *Uploader) put(ctx context.Context, url string, body io.Reader, size int64, contentType string, t *tracker) (etag string, err error) {
	counted := &countingReader{r: body, t: t}
	defer func() {
		if err != nil {
			t.rollback(counted.attempt)
		}
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, counted)
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	res, err := u.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		err := fmt.Errorf("storage returned %d", res.StatusCode)
		if res.StatusCode >= 400 && res.StatusCode < 500 {
			return "", &permanentError{err}
		}
		return "", err
	}
	return res.Header.Get("ETag"), nil
}

func (u *Uploader) abort(plan *model.UploadPlan) {
	if u.aborter == nil {
		return
	}
	// The upload's own context is gone or cancelled; the cleanup call gets
	// its own deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := u.aborter.Abort(ctx, plan); err != nil && u.log != nil {
		u.log.Warn().Str("upload_id", plan.UploadID).Err(err).Msg("upload abort failed")
	}
}

// permanentError marks a response not worth retrying (client-side 4xx, e.g.
// an expired presigned URL).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }
