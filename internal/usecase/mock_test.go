//go:build !integration

package usecase_test

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/domain/ports/adapter"
	"video-analysis-platform/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Repositories
// =============================

// MockJobRepo is an in-memory ProcessingJobRepository. Every method can be
// overridden per test via its Func field; by default it behaves like the real
// repository, including the not-found and duplicate-id sentinels.
type MockJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*model.ProcessingJob

	CreateFunc func(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error
	UpdateFunc func(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error
}

var _ repository.ProcessingJobRepository = (*MockJobRepo)(nil)

func NewMockJobRepo() *MockJobRepo {
	return &MockJobRepo{jobs: map[string]*model.ProcessingJob{}}
}

func (r *MockJobRepo) Create(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, job)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *MockJobRepo) Update(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error {
	if r.UpdateFunc != nil {
		return r.UpdateFunc(ctx, tx, job)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *MockJobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (r *MockJobRepo) FindByRemoteID(ctx context.Context, tx repository.Tx, remoteID string) (*model.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.RemoteID == remoteID && remoteID != "" {
			cp := *j
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *MockJobRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.ProcessingJob, error) {
	return r.FindByID(ctx, tx, id)
}

func (r *MockJobRepo) ListRunningOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.ProcessingJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.ProcessingJob
	for _, j := range r.jobs {
		if j.Status != model.JobStatusRunning {
			continue
		}
		if j.LastChecked != nil && !j.LastChecked.Before(cutoff) {
			continue
		}
		cp := *j
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *MockJobRepo) TouchLastChecked(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return domain.ErrNotFound
	}
	j.LastChecked = &at
	return nil
}

// Get reads a job back for assertions.
func (r *MockJobRepo) Get(id string) *model.ProcessingJob {
	j, _ := r.FindByID(context.Background(), repository.NoTX, id)
	return j
}

// Put seeds a job directly, bypassing Create semantics.
func (r *MockJobRepo) Put(job *model.ProcessingJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager() *MockTxManager { return &MockTxManager{} }

// WithTx runs the function immediately with NoTX unless overridden.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Adapters
// =============================

// ---- Mock RunnerClient ----

type MockRunner struct {
	mu sync.Mutex

	DispatchFunc func(ctx context.Context, input map[string]any, webhookURL string) (string, error)
	StatusFunc   func(ctx context.Context, remoteID string) (*adapter.RunStatus, error)
	CancelFunc   func(ctx context.Context, remoteID string) error

	Dispatched []map[string]any
	Webhooks   []string
	Cancelled  []string
}

var _ adapter.RunnerClient = (*MockRunner)(nil)

func (m *MockRunner) Dispatch(ctx context.Context, input map[string]any, webhookURL string) (string, error) {
	m.mu.Lock()
	m.Dispatched = append(m.Dispatched, input)
	m.Webhooks = append(m.Webhooks, webhookURL)
	m.mu.Unlock()
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, input, webhookURL)
	}
	return "remote-" + uuid.NewString()[:8], nil
}

func (m *MockRunner) Status(ctx context.Context, remoteID string) (*adapter.RunStatus, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx, remoteID)
	}
	return &adapter.RunStatus{State: adapter.RemoteInProgress}, nil
}

func (m *MockRunner) Cancel(ctx context.Context, remoteID string) error {
	m.mu.Lock()
	m.Cancelled = append(m.Cancelled, remoteID)
	m.mu.Unlock()
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, remoteID)
	}
	return nil
}

// ---- Mock ObjectStore ----

// MockObjectStore keeps objects as key -> size. Compose sums the part sizes
// into the destination, mirroring what real composition does to byte counts.
type MockObjectStore struct {
	mu      sync.Mutex
	objects map[string]int64

	StatFunc    func(ctx context.Context, key string) (adapter.ObjectStat, error)
	ComposeFunc func(ctx context.Context, dst string, parts []string) error

	Composed [][]string
	Deleted  []string
	Signed   []string
}

var _ adapter.ObjectStore = (*MockObjectStore)(nil)

func NewMockObjectStore() *MockObjectStore {
	return &MockObjectStore{objects: map[string]int64{}}
}

func (s *MockObjectStore) PutObject(key string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = size
}

func (s *MockObjectStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *MockObjectStore) Stat(ctx context.Context, key string) (adapter.ObjectStat, error) {
	if s.StatFunc != nil {
		return s.StatFunc(ctx, key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	size, ok := s.objects[key]
	if !ok {
		return adapter.ObjectStat{}, nil
	}
	return adapter.ObjectStat{Exists: true, Size: size}, nil
}

func (s *MockObjectStore) SignedPutURL(ctx context.Context, key, contentType string, ttl time.Duration) (string, time.Time, error) {
	s.mu.Lock()
	s.Signed = append(s.Signed, key)
	s.mu.Unlock()
	return "https://signed.example/" + key, time.Now().Add(ttl), nil
}

func (s *MockObjectStore) Compose(ctx context.Context, dst string, parts []string) error {
	if s.ComposeFunc != nil {
		return s.ComposeFunc(ctx, dst, parts)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Composed = append(s.Composed, parts)
	var total int64
	for _, p := range parts {
		total += s.objects[p]
	}
	s.objects[dst] = total
	return nil
}

func (s *MockObjectStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deleted = append(s.Deleted, key)
	delete(s.objects, key)
	return nil
}

func (s *MockObjectStore) Bucket() string { return "test-bucket" }

// ---- In-memory Locker ----

type MockLocker struct {
	mu   sync.Mutex
	held map[string]string
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

// Hold seeds a held lock so TryLock fails, simulating a concurrent caller.
func (l *MockLocker) Hold(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[key] = "other"
}

// ---- Token issuer ----

type MockTokenIssuer struct {
	IssueFunc func(jobID string) (string, error)
}

func (m *MockTokenIssuer) Issue(jobID string) (string, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(jobID)
	}
	return "tok-" + jobID, nil
}

// rawJSON is a shorthand for result payloads in status fixtures.
func rawJSON(s string) json.RawMessage { return json.RawMessage(s) }
