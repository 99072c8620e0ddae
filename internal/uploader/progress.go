// File: internal/uploader/progress.go
package uploader

import (
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// Progress is a rolling snapshot of one upload's transfer state.
type Progress struct {
	BytesTransferred int64
	TotalBytes       int64
	Rate             float64       // bytes per second; 0 until measurable
	ETA              time.Duration // 0 while rate is zero (undefined)
}

type ProgressFunc func(Progress)

// tracker aggregates per-part byte counts into one rolling rate/ETA view.
// Parts report concurrently; emission is throttled so callbacks do not fire
// for every buffer flush.
type tracker struct {
	total    int64
	start    time.Time
	bytes    int64 // atomic
	onEvent  ProgressFunc
	mu       sync.Mutex
	lastEmit time.Time
}

const emitInterval = 100 * time.Millisecond

func newTracker(total int64, onEvent ProgressFunc) *tracker {
	return &tracker{total: total, start: time.Now(), onEvent: onEvent}
}

func (t *tracker) add(n int64) {
	atomic.AddInt64(&t.bytes, n)
	if t.onEvent == nil || n <= 0 {
		return
	}
	t.mu.Lock()
	now := time.Now()
	if now.Sub(t.lastEmit) < emitInterval {
		t.mu.Unlock()
		return
	}
	t.lastEmit = now
	t.mu.Unlock()
	t.onEvent(t.snapshot())
}

// rollback undoes bytes counted for a part attempt that failed and will be
// retried, so aggregate progress never double-counts.
func (t *tracker) rollback(n int64) {
	atomic.AddInt64(&t.bytes, -n)
}

func (t *tracker) finish() {
	if t.onEvent != nil {
		t.onEvent(t.snapshot())
	}
}

func (t *tracker) snapshot() Progress {
	transferred := atomic.LoadInt64(&t.bytes)
	p := Progress{BytesTransferred: transferred, TotalBytes: t.total}
	elapsed := time.Since(t.start).Seconds()
	if elapsed > 0 && transferred > 0 {
		p.Rate = float64(transferred) / elapsed
		if remaining := t.total - transferred; remaining > 0 && p.Rate > 0 {
			p.ETA = time.Duration(float64(remaining)/p.Rate) * time.Second
		}
	}
	return p
}

// countingReader reports read bytes to the tracker and keeps a per-attempt
// count so a failed attempt can be rolled back.
type countingReader struct {
	r       io.Reader
	t       *tracker
	attempt int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.attempt += int64(n)
		c.t.add(int64(n))
	}
	return n, err
}
