package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"orchestrator/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

const jobColumns = `id, kind, status, priority, batch_id, payload, progress, result,
error_message, retry_count, max_retries, next_attempt_at, created_at, updated_at,
started_at, completed_at`

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	query := `
INSERT INTO jobs (id, kind, status, priority, batch_id, payload, progress, error_message,
                  retry_count, max_retries, next_attempt_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.Kind,
		job.Status,
		job.Priority,
		job.BatchID,
		payload,
		job.Progress,
		job.ErrorMessage,
		job.RetryCount,
		job.MaxRetries,
		job.NextAttemptAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1;`
	job, err := scanJob(r.pool.QueryRow(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// List returns jobs matching the filter ordered by (priority desc, created_at desc).
func (r *JobRepositoryPG) List(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR kind = $2)
  AND ($3::text IS NULL OR batch_id = $3)
ORDER BY priority DESC, created_at DESC
LIMIT $4;`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	var status, kind, batchID *string
	if filter.Status != nil {
		s := string(*filter.Status)
		status = &s
	}
	if filter.Kind != nil {
		k := string(*filter.Kind)
		kind = &k
	}
	if filter.BatchID != "" {
		b := filter.BatchID
		batchID = &b
	}
	rows, err := r.pool.Query(ctx, query, status, kind, batchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Stats aggregates job counts by status in a single grouped query.
func (r *JobRepositoryPG) Stats(ctx context.Context) (domain.QueueStats, error) {
	query := `SELECT status, count(*) FROM jobs GROUP BY status;`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return domain.QueueStats{}, err
	}
	defer rows.Close()

	var stats domain.QueueStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.QueueStats{}, err
		}
		stats.Total += count
		switch domain.JobStatus(status) {
		case domain.JobStatusPending:
			stats.Pending = count
		case domain.JobStatusProcessing:
			stats.Processing = count
		case domain.JobStatusCompleted:
			stats.Completed = count
		case domain.JobStatusFailed:
			stats.Failed = count
		}
	}
	return stats, rows.Err()
}

// BatchStatus derives the batch view from its child jobs.
func (r *JobRepositoryPG) BatchStatus(ctx context.Context, batchID string) (domain.BatchStatus, error) {
	query := `SELECT status, count(*) FROM jobs WHERE batch_id = $1 GROUP BY status;`
	rows, err := r.pool.Query(ctx, query, batchID)
	if err != nil {
		return domain.BatchStatus{}, err
	}
	defer rows.Close()

	status := domain.BatchStatus{BatchID: batchID}
	for rows.Next() {
		var s string
		var count int
		if err := rows.Scan(&s, &count); err != nil {
			return domain.BatchStatus{}, err
		}
		status.Total += count
		switch domain.JobStatus(s) {
		case domain.JobStatusPending:
			status.Pending = count
		case domain.JobStatusProcessing:
			status.Processing = count
		case domain.JobStatusCompleted:
			status.Completed = count
		case domain.JobStatusFailed:
			status.Failed = count
		}
	}
	if err := rows.Err(); err != nil {
		return domain.BatchStatus{}, err
	}
	if status.Total == 0 {
		return domain.BatchStatus{}, domain.ErrNotFound
	}
	return status, nil
}

// ClaimNext atomically claims up to limit eligible pending jobs. The
// conditional update plus `for update skip locked` keeps concurrent
// dispatchers from double-claiming the same record.
func (r *JobRepositoryPG) ClaimNext(ctx context.Context, now time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `
WITH next_jobs AS (
    SELECT id
    FROM jobs
    WHERE status = 'pending' AND next_attempt_at <= $1
    ORDER BY priority DESC, created_at ASC
    FOR UPDATE SKIP LOCKED
    LIMIT $2
)
UPDATE jobs
SET status = 'processing', started_at = $1, updated_at = $1
WHERE id IN (SELECT id FROM next_jobs)
RETURNING ` + jobColumns + `;`
	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	jobs, err := collectJobs(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve CTE order; re-establish selection order.
	sort.SliceStable(jobs, func(i, j int) bool {
		if jobs[i].Priority != jobs[j].Priority {
			return jobs[i].Priority > jobs[j].Priority
		}
		return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// MarkCompleted finalizes a processing job with its result. Guarded on the
// current status so a timed-out worker cannot clobber a later transition.
func (r *JobRepositoryPG) MarkCompleted(ctx context.Context, jobID string, result map[string]any) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	query := `
UPDATE jobs
SET status = 'completed', progress = 100, result = $2, completed_at = now(), updated_at = now()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, query, jobID, resultJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// MarkFailed records a terminal failure.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID string, errMsg string) error {
	query := `
UPDATE jobs
SET status = 'failed', error_message = $2, completed_at = now(), updated_at = now()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, query, jobID, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// Requeue returns a processing job to pending for a retry attempt.
func (r *JobRepositoryPG) Requeue(ctx context.Context, jobID string, errMsg string, retryCount int, nextAttempt time.Time) error {
	query := `
UPDATE jobs
SET status = 'pending', error_message = $2, retry_count = $3, next_attempt_at = $4,
    started_at = NULL, updated_at = now()
WHERE id = $1 AND status = 'processing';
`
	tag, err := r.pool.Exec(ctx, query, jobID, errMsg, retryCount, nextAttempt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInvalidTransition
	}
	return nil
}

// UpdateProgress bumps a processing job's progress, keeping it monotonic.
func (r *JobRepositoryPG) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	query := `
UPDATE jobs
SET progress = GREATEST(progress, $2), updated_at = now()
WHERE id = $1 AND status = 'processing';
`
	_, err := r.pool.Exec(ctx, query, jobID, progress)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var job domain.Job
	var payload, result []byte
	if err := row.Scan(
		&job.ID,
		&job.Kind,
		&job.Status,
		&job.Priority,
		&job.BatchID,
		&payload,
		&job.Progress,
		&result,
		&job.ErrorMessage,
		&job.RetryCount,
		&job.MaxRetries,
		&job.NextAttemptAt,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &job.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &job.Result); err != nil {
			return nil, fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return &job, nil
}

func collectJobs(rows pgx.Rows) ([]domain.Job, error) {
	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
