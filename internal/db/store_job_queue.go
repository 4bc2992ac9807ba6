package db

import (
	"context"
	"fmt"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Job Queue methods

// CreateJob creates a new job in the queue.
func (db *DB) CreateJob(ctx context.Context, job *models.Job) error {
	payloadBytes, err := job.PayloadJSON()
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		INSERT INTO job_queue (
			id, job_type, priority, status, payload, progress,
			retry_count, max_retries, next_retry_at, error_message, last_error_at,
			tenant_id, created_at, started_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15
		)
	`, job.ID, job.JobType, job.Priority, job.Status, payloadBytes, job.Progress,
		job.RetryCount, job.MaxRetries, job.NextRetryAt, job.ErrorMessage, job.LastErrorAt,
		job.TenantID, job.CreatedAt, job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// GetJobByID returns a job by its ID, or nil if not found.
func (db *DB) GetJobByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	var job models.Job
	var jobTypeStr, statusStr string
	var payloadBytes []byte

	err := db.Pool.QueryRow(ctx, `
		SELECT id, job_type, priority, status, payload, progress,
		       retry_count, max_retries, next_retry_at, error_message, last_error_at,
		       tenant_id, created_at, started_at, completed_at
		FROM job_queue
		WHERE id = $1
	`, id).Scan(
		&job.ID, &jobTypeStr, &job.Priority, &statusStr, &payloadBytes, &job.Progress,
		&job.RetryCount, &job.MaxRetries, &job.NextRetryAt, &job.ErrorMessage, &job.LastErrorAt,
		&job.TenantID, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get job by ID: %w", err)
	}

	job.JobType = models.JobType(jobTypeStr)
	job.Status = models.JobStatus(statusStr)
	if err := job.SetPayload(payloadBytes); err != nil {
		db.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to parse job payload")
	}

	return &job, nil
}

// ListJobs returns jobs with optional status and type filters.
func (db *DB) ListJobs(ctx context.Context, status *models.JobStatus, jobType *models.JobType, limit int) ([]*models.Job, error) {
	query := `
		SELECT id, job_type, priority, status, payload, progress,
		       retry_count, max_retries, next_retry_at, error_message, last_error_at,
		       tenant_id, created_at, started_at, completed_at
		FROM job_queue
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if status != nil {
		query += fmt.Sprintf(" AND status = $%d", argNum)
		args = append(args, *status)
		argNum++
	}

	if jobType != nil {
		query += fmt.Sprintf(" AND job_type = $%d", argNum)
		args = append(args, *jobType)
		argNum++
	}

	query += " ORDER BY created_at DESC"

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, limit)
	}

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	return db.scanJobs(rows)
}

// ListJobsReadyForRetry returns failed jobs whose backoff has elapsed.
func (db *DB) ListJobsReadyForRetry(ctx context.Context, limit int) ([]*models.Job, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, job_type, priority, status, payload, progress,
		       retry_count, max_retries, next_retry_at, error_message, last_error_at,
		       tenant_id, created_at, started_at, completed_at
		FROM job_queue
		WHERE status = 'failed'
		  AND (next_retry_at IS NULL OR next_retry_at <= NOW())
		ORDER BY priority DESC, next_retry_at ASC NULLS FIRST
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs ready for retry: %w", err)
	}
	defer rows.Close()

	return db.scanJobs(rows)
}

// UpdateJob updates a job in the queue.
func (db *DB) UpdateJob(ctx context.Context, job *models.Job) error {
	payloadBytes, err := job.PayloadJSON()
	if err != nil {
		return fmt.Errorf("marshal job payload: %w", err)
	}

	_, err = db.Pool.Exec(ctx, `
		UPDATE job_queue
		SET status = $2, payload = $3, progress = $4,
		    retry_count = $5, max_retries = $6, next_retry_at = $7,
		    error_message = $8, last_error_at = $9,
		    started_at = $10, completed_at = $11
		WHERE id = $1
	`, job.ID, job.Status, payloadBytes, job.Progress,
		job.RetryCount, job.MaxRetries, job.NextRetryAt,
		job.ErrorMessage, job.LastErrorAt,
		job.StartedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateJobProgress updates only the progress column of a running job.
// Progress writes are frequent during batch runs and must not clobber
// concurrent status transitions.
func (db *DB) UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := db.Pool.Exec(ctx, `
		UPDATE job_queue SET progress = $2 WHERE id = $1 AND status = 'running'
	`, id, progress)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// GetNextPendingJob atomically claims the next pending job for processing.
func (db *DB) GetNextPendingJob(ctx context.Context) (*models.Job, error) {
	var job models.Job
	var jobTypeStr, statusStr string
	var payloadBytes []byte

	err := db.Pool.QueryRow(ctx, `
		UPDATE job_queue
		SET status = 'running', started_at = NOW(), progress = 0
		WHERE id = (
			SELECT id FROM job_queue
			WHERE status = 'pending'
			ORDER BY priority DESC, created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_type, priority, status, payload, progress,
		          retry_count, max_retries, next_retry_at, error_message, last_error_at,
		          tenant_id, created_at, started_at, completed_at
	`).Scan(
		&job.ID, &jobTypeStr, &job.Priority, &statusStr, &payloadBytes, &job.Progress,
		&job.RetryCount, &job.MaxRetries, &job.NextRetryAt, &job.ErrorMessage, &job.LastErrorAt,
		&job.TenantID, &job.CreatedAt, &job.StartedAt, &job.CompletedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get next pending job: %w", err)
	}

	job.JobType = models.JobType(jobTypeStr)
	job.Status = models.JobStatus(statusStr)
	if err := job.SetPayload(payloadBytes); err != nil {
		db.logger.Warn().Err(err).Str("job_id", job.ID.String()).Msg("failed to parse job payload")
	}

	return &job, nil
}

// GetJobQueueSummary returns queue statistics.
func (db *DB) GetJobQueueSummary(ctx context.Context) (*models.JobQueueSummary, error) {
	summary := &models.JobQueueSummary{
		ByType: make(map[models.JobType]int),
	}

	err := db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending') as pending,
			COUNT(*) FILTER (WHERE status = 'running') as running,
			COUNT(*) FILTER (WHERE status = 'completed') as completed,
			COUNT(*) FILTER (WHERE status = 'failed') as failed,
			COUNT(*) FILTER (WHERE status = 'dead_letter') as dead_letter,
			MIN(created_at) FILTER (WHERE status = 'pending') as oldest_pending
		FROM job_queue
	`).Scan(
		&summary.TotalPending, &summary.TotalRunning, &summary.TotalCompleted,
		&summary.TotalFailed, &summary.TotalDeadLetter, &summary.OldestPending,
	)
	if err != nil {
		return nil, fmt.Errorf("get job queue summary: %w", err)
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT job_type, COUNT(*)
		FROM job_queue
		WHERE status = 'pending'
		GROUP BY job_type
	`)
	if err != nil {
		return nil, fmt.Errorf("get job queue summary by type: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var jobTypeStr string
		var count int
		if err := rows.Scan(&jobTypeStr, &count); err != nil {
			return nil, fmt.Errorf("scan job type count: %w", err)
		}
		summary.ByType[models.JobType(jobTypeStr)] = count
	}

	var avgWait *float64
	err = db.Pool.QueryRow(ctx, `
		SELECT AVG(EXTRACT(EPOCH FROM (started_at - created_at)) / 60)
		FROM job_queue
		WHERE status = 'completed'
		  AND started_at IS NOT NULL
		  AND completed_at > NOW() - INTERVAL '24 hours'
	`).Scan(&avgWait)
	if err == nil && avgWait != nil {
		summary.AvgWaitMinutes = *avgWait
	}

	return summary, nil
}

// CleanupOldJobs removes completed and dead letter jobs older than the
// specified days.
func (db *DB) CleanupOldJobs(ctx context.Context, retentionDays int) (int64, error) {
	result, err := db.Pool.Exec(ctx, `
		DELETE FROM job_queue
		WHERE status IN ('completed', 'dead_letter')
		  AND completed_at < NOW() - INTERVAL '1 day' * $1
	`, retentionDays)
	if err != nil {
		return 0, fmt.Errorf("cleanup old jobs: %w", err)
	}
	return result.RowsAffected(), nil
}

// scanJobs is a helper to scan job rows.
func (db *DB) scanJobs(rows pgx.Rows) ([]*models.Job, error) {
	var jobs []*models.Job
	for rows.Next() {
		var j models.Job
		var jobTypeStr, statusStr string
		var payloadBytes []byte

		err := rows.Scan(
			&j.ID, &jobTypeStr, &j.Priority, &statusStr, &payloadBytes, &j.Progress,
			&j.RetryCount, &j.MaxRetries, &j.NextRetryAt, &j.ErrorMessage, &j.LastErrorAt,
			&j.TenantID, &j.CreatedAt, &j.StartedAt, &j.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}

		j.JobType = models.JobType(jobTypeStr)
		j.Status = models.JobStatus(statusStr)
		if err := j.SetPayload(payloadBytes); err != nil {
			db.logger.Warn().Err(err).Str("job_id", j.ID.String()).Msg("failed to parse job payload")
		}

		jobs = append(jobs, &j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}
