package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
)

// JobType defines the type of job in the queue.
type JobType string

const (
	// JobTypeScoreTenant recalculates one tenant's health score.
	JobTypeScoreTenant JobType = "score_tenant"
	// JobTypeScoreAllTenants recalculates every active tenant sequentially.
	JobTypeScoreAllTenants JobType = "score_all_tenants"
	// JobTypeBenchmarkNightly runs the nightly peer benchmark aggregation.
	JobTypeBenchmarkNightly JobType = "benchmark_nightly"
)

// JobStatus defines the status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed and may be retried.
	JobStatusFailed JobStatus = "failed"
	// JobStatusDeadLetter indicates the job has exhausted all retries.
	JobStatusDeadLetter JobStatus = "dead_letter"
)

// DefaultMaxRetries is the default number of retry attempts.
const DefaultMaxRetries = 3

// Job represents a job in the queue.
type Job struct {
	ID           uuid.UUID  `json:"id"`
	JobType      JobType    `json:"job_type"`
	Priority     int        `json:"priority"`
	Status       JobStatus  `json:"status"`
	Payload      JobPayload `json:"payload"`
	Progress     int        `json:"progress"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	LastErrorAt  *time.Time `json:"last_error_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	// Optional reference for quick lookups
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
}

// JobPayload contains job-specific data stored as JSONB.
type JobPayload struct {
	// Common fields
	Description string `json:"description,omitempty"`

	// Scoring job fields
	TenantID *uuid.UUID `json:"tenant_id,omitempty"`
	Collect  bool       `json:"collect,omitempty"`

	// Result data (populated on completion)
	Result map[string]interface{} `json:"result,omitempty"`
}

// NewJob creates a new job with the given parameters.
func NewJob(jobType JobType, priority int, payload JobPayload) *Job {
	job := &Job{
		ID:         uuid.New(),
		JobType:    jobType,
		Priority:   priority,
		Status:     JobStatusPending,
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  time.Now(),
	}
	if payload.TenantID != nil {
		job.TenantID = payload.TenantID
	}
	return job
}

// NewScoreTenantJob creates a job that recollects (optionally) and rescores
// one tenant.
func NewScoreTenantJob(tenantID uuid.UUID, collect bool) *Job {
	payload := JobPayload{
		TenantID:    &tenantID,
		Collect:     collect,
		Description: "Recalculate tenant health score",
	}
	return NewJob(JobTypeScoreTenant, 10, payload)
}

// NewScoreAllTenantsJob creates a job that scores every active tenant.
func NewScoreAllTenantsJob() *Job {
	payload := JobPayload{
		Collect:     true,
		Description: "Recalculate all tenant health scores",
	}
	return NewJob(JobTypeScoreAllTenants, 0, payload)
}

// NewBenchmarkNightlyJob creates a job that runs the peer benchmark
// aggregation.
func NewBenchmarkNightlyJob() *Job {
	payload := JobPayload{
		Description: "Nightly peer benchmark aggregation",
	}
	return NewJob(JobTypeBenchmarkNightly, 0, payload)
}

// retryBaseSeconds returns the exponential backoff base for the job type.
func (j *Job) retryBaseSeconds() float64 {
	if j.JobType == JobTypeScoreTenant {
		return 5
	}
	return 10
}

// Start marks the job as running.
func (j *Job) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete marks the job as completed successfully.
func (j *Job) Complete(result map[string]interface{}) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.CompletedAt = &now
	j.Progress = 100
	j.Payload.Result = result
}

// Fail marks the job as failed with the given error message.
// Returns true if the job should be retried, false if it should be moved
// to dead letter.
func (j *Job) Fail(errMsg string) bool {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.LastErrorAt = &now
	j.RetryCount++

	if j.RetryCount >= j.MaxRetries {
		j.Status = JobStatusDeadLetter
		j.CompletedAt = &now
		return false
	}

	// Exponential backoff: base 5s for single-tenant jobs, 10s otherwise,
	// capped at 30 minutes.
	backoffSeconds := math.Min(j.retryBaseSeconds()*math.Pow(2, float64(j.RetryCount-1)), 1800)
	nextRetry := now.Add(time.Duration(backoffSeconds) * time.Second)
	j.NextRetryAt = &nextRetry

	return true
}

// Cancel cancels a pending job.
func (j *Job) Cancel() bool {
	if j.Status != JobStatusPending {
		return false
	}
	j.Status = JobStatusDeadLetter
	now := time.Now()
	j.CompletedAt = &now
	j.ErrorMessage = "Job canceled by user"
	return true
}

// Retry resets a failed job for retry.
func (j *Job) Retry() bool {
	if j.Status != JobStatusFailed && j.Status != JobStatusDeadLetter {
		return false
	}
	j.Status = JobStatusPending
	j.Progress = 0
	j.RetryCount = 0
	j.NextRetryAt = nil
	j.ErrorMessage = ""
	j.LastErrorAt = nil
	j.StartedAt = nil
	j.CompletedAt = nil
	return true
}

// IsTerminal returns true if the job is in a terminal state.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusDeadLetter
}

// CanRetry returns true if the job can be retried.
func (j *Job) CanRetry() bool {
	return j.Status == JobStatusFailed || j.Status == JobStatusDeadLetter
}

// ReadyForRetry returns true if the job is ready to be retried based on
// NextRetryAt.
func (j *Job) ReadyForRetry() bool {
	if j.Status != JobStatusFailed {
		return false
	}
	if j.NextRetryAt == nil {
		return true
	}
	return time.Now().After(*j.NextRetryAt)
}

// Duration returns the duration of the job, or zero if not started.
func (j *Job) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	endTime := time.Now()
	if j.CompletedAt != nil {
		endTime = *j.CompletedAt
	}
	return endTime.Sub(*j.StartedAt)
}

// WaitTime returns the time the job spent waiting in the queue.
func (j *Job) WaitTime() time.Duration {
	if j.StartedAt == nil {
		return time.Since(j.CreatedAt)
	}
	return j.StartedAt.Sub(j.CreatedAt)
}

// PayloadJSON returns the payload as JSON bytes for database storage.
func (j *Job) PayloadJSON() ([]byte, error) {
	return json.Marshal(j.Payload)
}

// SetPayload sets the payload from JSON bytes.
func (j *Job) SetPayload(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, &j.Payload)
}

// JobQueueSummary provides queue statistics.
type JobQueueSummary struct {
	TotalPending    int             `json:"total_pending"`
	TotalRunning    int             `json:"total_running"`
	TotalCompleted  int             `json:"total_completed"`
	TotalFailed     int             `json:"total_failed"`
	TotalDeadLetter int             `json:"total_dead_letter"`
	ByType          map[JobType]int `json:"by_type,omitempty"`
	AvgWaitMinutes  float64         `json:"avg_wait_minutes"`
	OldestPending   *time.Time      `json:"oldest_pending,omitempty"`
}

// BatchResult is the payload recorded when a batch scoring job completes.
type BatchResult struct {
	Processed  int   `json:"processed"`
	Failed     int   `json:"failed"`
	DurationMs int64 `json:"duration_ms"`
}

// AsResult converts the batch result into the generic job result map.
func (r BatchResult) AsResult() map[string]interface{} {
	return map[string]interface{}{
		"processed":   r.Processed,
		"failed":      r.Failed,
		"duration_ms": r.DurationMs,
	}
}
