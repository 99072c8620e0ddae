package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"video-analysis-platform/internal/domain"
	"video-analysis-platform/internal/domain/model"
	"video-analysis-platform/internal/domain/ports/repository"
)

var _ repository.ProcessingJobRepository = (*jobRepo)(nil)

// jobRepo persists processing jobs.
// Schema (processing_jobs):
//
//	id TEXT PRIMARY KEY, remote_id TEXT, user_id TEXT NOT NULL, video_id TEXT NOT NULL,
//	params JSONB NOT NULL, status TEXT NOT NULL,
//	retry_count INT NOT NULL DEFAULT 0, retry_limit INT NOT NULL,
//	parent_job_id TEXT REFERENCES processing_jobs(id),
//	last_error TEXT, error_detail JSONB,
//	created_at TIMESTAMPTZ NOT NULL, started_at TIMESTAMPTZ,
//	completed_at TIMESTAMPTZ, last_checked_at TIMESTAMPTZ
type jobRepo struct {
	pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *jobRepo {
	return &jobRepo{pool: pool}
}

const jobColumns = `id, remote_id, user_id, video_id, params, status,
       retry_count, retry_limit, parent_job_id, last_error, error_detail,
       created_at, started_at, completed_at, last_checked_at`

func (r *jobRepo) Create(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("marshal job params: %w", err)
	}
	detail, err := json.Marshal(job.ErrorDetail)
	if err != nil {
		return fmt.Errorf("marshal error detail: %w", err)
	}

	const q = `
INSERT INTO processing_jobs
  (id, remote_id, user_id, video_id, params, status, retry_count, retry_limit,
   parent_job_id, last_error, error_detail, created_at, started_at, completed_at, last_checked_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	_, err = execSQL(ctx, r.pool, tx, q,
		job.ID, nullStr(job.RemoteID), job.UserID, job.VideoID, params, string(job.Status),
		job.RetryCount, job.RetryLimit, job.ParentJobID, nullStr(job.LastError), detail,
		job.CreatedAt, job.StartedAt, job.CompletedAt, job.LastChecked)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert processing job: %w", err)
	}
	return nil
}

func (r *jobRepo) Update(ctx context.Context, tx repository.Tx, job *model.ProcessingJob) error {
	detail, err := json.Marshal(job.ErrorDetail)
	if err != nil {
		return fmt.Errorf("marshal error detail: %w", err)
	}

	const q = `
UPDATE processing_jobs SET
  remote_id = $2, status = $3, retry_count = $4, last_error = $5, error_detail = $6,
  started_at = $7, completed_at = $8, last_checked_at = $9
WHERE id = $1;`

	cmd, err := execSQL(ctx, r.pool, tx, q,
		job.ID, nullStr(job.RemoteID), string(job.Status), job.RetryCount,
		nullStr(job.LastError), detail, job.StartedAt, job.CompletedAt, job.LastChecked)
	if err != nil {
		return fmt.Errorf("update processing job: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *jobRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.ProcessingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FindByRemoteID(ctx context.Context, tx repository.Tx, remoteID string) (*model.ProcessingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE remote_id = $1;`
	row, err := pickRow(ctx, r.pool, tx, q, remoteID)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) FindByIDForUpdate(ctx context.Context, tx repository.Tx, id string) (*model.ProcessingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM processing_jobs WHERE id = $1 FOR UPDATE;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	return scanJob(row)
}

func (r *jobRepo) ListRunningOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.ProcessingJob, error) {
	q := `SELECT ` + jobColumns + `
  FROM processing_jobs
 WHERE status = 'running' AND (last_checked_at IS NULL OR last_checked_at < $1)
 ORDER BY created_at
 LIMIT $2;`
	rows, err := pickRows(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*model.ProcessingJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *jobRepo) TouchLastChecked(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	cmd, err := execSQL(ctx, r.pool, tx,
		`UPDATE processing_jobs SET last_checked_at = $2 WHERE id = $1;`, id, at)
	if err != nil {
		return fmt.Errorf("touch last_checked: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.ProcessingJob, error) {
	var (
		j         model.ProcessingJob
		remoteID  *string
		lastError *string
		statusStr string
		params    []byte
		detail    []byte
	)
	err := row.Scan(&j.ID, &remoteID, &j.UserID, &j.VideoID, &params, &statusStr,
		&j.RetryCount, &j.RetryLimit, &j.ParentJobID, &lastError, &detail,
		&j.CreatedAt, &j.StartedAt, &j.CompletedAt, &j.LastChecked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if remoteID != nil {
		j.RemoteID = *remoteID
	}
	if lastError != nil {
		j.LastError = *lastError
	}
	j.Status = model.JobStatus(statusStr)
	if len(params) > 0 {
		if err := json.Unmarshal(params, &j.Params); err != nil {
			return nil, fmt.Errorf("unmarshal job params: %w", err)
		}
	}
	if len(detail) > 0 {
		if err := json.Unmarshal(detail, &j.ErrorDetail); err != nil {
			return nil, fmt.Errorf("unmarshal error detail: %w", err)
		}
	}
	return &j, nil
}

func nullStr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
