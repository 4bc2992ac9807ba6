package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobQueueStore defines the interface for job queue persistence operations.
type JobQueueStore interface {
	GetJobByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, status *models.JobStatus, jobType *models.JobType, limit int) ([]*models.Job, error)
	GetJobQueueSummary(ctx context.Context) (*models.JobQueueSummary, error)
	UpdateJob(ctx context.Context, job *models.Job) error
}

// JobQueueHandler handles job queue-related HTTP endpoints.
type JobQueueHandler struct {
	store  JobQueueStore
	logger zerolog.Logger
}

// NewJobQueueHandler creates a new JobQueueHandler.
func NewJobQueueHandler(store JobQueueStore, logger zerolog.Logger) *JobQueueHandler {
	return &JobQueueHandler{
		store:  store,
		logger: logger.With().Str("component", "job_queue_handler").Logger(),
	}
}

// RegisterRoutes registers job queue routes on the given router group.
func (h *JobQueueHandler) RegisterRoutes(r *gin.RouterGroup) {
	jobs := r.Group("/jobs")
	{
		jobs.GET("", h.ListJobs)
		jobs.GET("/summary", h.GetSummary)
		jobs.GET("/:id", h.GetJob)
		jobs.DELETE("/:id", h.CancelJob)
		jobs.POST("/:id/retry", h.RetryJob)
	}
}

// JobResponse is the API response for a job.
type JobResponse struct {
	ID           string            `json:"id"`
	JobType      string            `json:"job_type"`
	Priority     int               `json:"priority"`
	Status       string            `json:"status"`
	Payload      models.JobPayload `json:"payload"`
	Progress     int               `json:"progress"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`
	NextRetryAt  string            `json:"next_retry_at,omitempty"`
	ErrorMessage string            `json:"error_message,omitempty"`
	LastErrorAt  string            `json:"last_error_at,omitempty"`
	TenantID     string            `json:"tenant_id,omitempty"`
	CreatedAt    string            `json:"created_at"`
	StartedAt    string            `json:"started_at,omitempty"`
	CompletedAt  string            `json:"completed_at,omitempty"`
}

func toJobResponse(j *models.Job) JobResponse {
	resp := JobResponse{
		ID:           j.ID.String(),
		JobType:      string(j.JobType),
		Priority:     j.Priority,
		Status:       string(j.Status),
		Payload:      j.Payload,
		Progress:     j.Progress,
		RetryCount:   j.RetryCount,
		MaxRetries:   j.MaxRetries,
		ErrorMessage: j.ErrorMessage,
		CreatedAt:    j.CreatedAt.Format(time.RFC3339),
	}

	if j.NextRetryAt != nil {
		resp.NextRetryAt = j.NextRetryAt.Format(time.RFC3339)
	}
	if j.LastErrorAt != nil {
		resp.LastErrorAt = j.LastErrorAt.Format(time.RFC3339)
	}
	if j.TenantID != nil {
		resp.TenantID = j.TenantID.String()
	}
	if j.StartedAt != nil {
		resp.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}

	return resp
}

// JobQueueSummaryResponse is the API response for queue summary.
type JobQueueSummaryResponse struct {
	TotalPending    int            `json:"total_pending"`
	TotalRunning    int            `json:"total_running"`
	TotalCompleted  int            `json:"total_completed"`
	TotalFailed     int            `json:"total_failed"`
	TotalDeadLetter int            `json:"total_dead_letter"`
	ByType          map[string]int `json:"by_type,omitempty"`
	AvgWaitMinutes  float64        `json:"avg_wait_minutes"`
	OldestPending   string         `json:"oldest_pending,omitempty"`
}

func toJobQueueSummaryResponse(s *models.JobQueueSummary) JobQueueSummaryResponse {
	resp := JobQueueSummaryResponse{
		TotalPending:    s.TotalPending,
		TotalRunning:    s.TotalRunning,
		TotalCompleted:  s.TotalCompleted,
		TotalFailed:     s.TotalFailed,
		TotalDeadLetter: s.TotalDeadLetter,
		AvgWaitMinutes:  s.AvgWaitMinutes,
	}

	if s.OldestPending != nil {
		resp.OldestPending = s.OldestPending.Format(time.RFC3339)
	}

	if len(s.ByType) > 0 {
		resp.ByType = make(map[string]int)
		for k, v := range s.ByType {
			resp.ByType[string(k)] = v
		}
	}

	return resp
}

// ListJobs returns queued jobs with optional status and type filters.
// GET /api/v1/jobs?status=pending&type=score_tenant&limit=50
func (h *JobQueueHandler) ListJobs(c *gin.Context) {
	var status *models.JobStatus
	if statusParam := c.Query("status"); statusParam != "" {
		s := models.JobStatus(statusParam)
		status = &s
	}

	var jobType *models.JobType
	if typeParam := c.Query("type"); typeParam != "" {
		t := models.JobType(typeParam)
		jobType = &t
	}

	limit := 100
	if limitParam := c.Query("limit"); limitParam != "" {
		n, err := strconv.Atoi(limitParam)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), status, jobType, limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list jobs")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list jobs"})
		return
	}

	response := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		response[i] = toJobResponse(j)
	}

	c.JSON(http.StatusOK, gin.H{"jobs": response})
}

// GetSummary returns queue statistics.
// GET /api/v1/jobs/summary
func (h *JobQueueHandler) GetSummary(c *gin.Context) {
	summary, err := h.store.GetJobQueueSummary(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get job queue summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job queue summary"})
		return
	}

	c.JSON(http.StatusOK, toJobQueueSummaryResponse(summary))
}

// GetJob returns a specific job by ID.
// GET /api/v1/jobs/:id
func (h *JobQueueHandler) GetJob(c *gin.Context) {
	job, ok := h.jobFromPath(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toJobResponse(job))
}

// CancelJob cancels a pending job.
// DELETE /api/v1/jobs/:id
func (h *JobQueueHandler) CancelJob(c *gin.Context) {
	job, ok := h.jobFromPath(c)
	if !ok {
		return
	}

	if job.Status != models.JobStatusPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "can only cancel pending jobs"})
		return
	}

	if !job.Cancel() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to cancel job"})
		return
	}

	if err := h.store.UpdateJob(c.Request.Context(), job); err != nil {
		h.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to update job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		return
	}

	h.logger.Info().Str("job_id", job.ID.String()).Msg("job canceled")

	c.JSON(http.StatusOK, gin.H{"message": "job canceled"})
}

// RetryJob retries a failed or dead letter job.
// POST /api/v1/jobs/:id/retry
func (h *JobQueueHandler) RetryJob(c *gin.Context) {
	job, ok := h.jobFromPath(c)
	if !ok {
		return
	}

	if !job.CanRetry() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "can only retry failed or dead letter jobs"})
		return
	}

	if !job.Retry() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to retry job"})
		return
	}

	if err := h.store.UpdateJob(c.Request.Context(), job); err != nil {
		h.logger.Error().Err(err).Str("job_id", job.ID.String()).Msg("failed to update job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to retry job"})
		return
	}

	h.logger.Info().Str("job_id", job.ID.String()).Msg("job queued for retry")

	c.JSON(http.StatusOK, gin.H{"message": "job queued for retry"})
}

// jobFromPath parses the job ID and loads the job.
func (h *JobQueueHandler) jobFromPath(c *gin.Context) (*models.Job, bool) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid job ID"})
		return nil, false
	}

	job, err := h.store.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		h.logger.Error().Err(err).Str("job_id", jobID.String()).Msg("failed to get job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get job"})
		return nil, false
	}
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return nil, false
	}

	return job, true
}
