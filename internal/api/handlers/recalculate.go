package handlers

import (
	"context"
	"net/http"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobEnqueuer creates background scoring and benchmark jobs.
type JobEnqueuer interface {
	EnqueueScoreTenant(ctx context.Context, tenantID uuid.UUID, collect bool) (*models.Job, error)
	EnqueueScoreAllTenants(ctx context.Context) (*models.Job, error)
	EnqueueBenchmarkNightly(ctx context.Context) (*models.Job, error)
}

// RecalculateHandler handles on-demand recalculation endpoints. The work
// itself always runs through the job queue; these endpoints only enqueue
// and return the job ID for polling.
type RecalculateHandler struct {
	tenants TenantStore
	queue   JobEnqueuer
	logger  zerolog.Logger
}

// NewRecalculateHandler creates a new RecalculateHandler.
func NewRecalculateHandler(tenants TenantStore, queue JobEnqueuer, logger zerolog.Logger) *RecalculateHandler {
	return &RecalculateHandler{
		tenants: tenants,
		queue:   queue,
		logger:  logger.With().Str("component", "recalculate_handler").Logger(),
	}
}

// RegisterRoutes registers recalculation routes on the given router group.
func (h *RecalculateHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/tenants/:id/score/recalculate", h.RecalculateTenant)
	r.POST("/scores/recalculate", h.RecalculateAll)
	r.POST("/benchmarks/recalculate", h.RecalculateBenchmarks)
}

// recalculateRequest is the optional body for recalculation endpoints.
type recalculateRequest struct {
	// Collect controls whether a fresh usage snapshot is taken first.
	Collect *bool `json:"collect"`
}

// RecalculateTenant enqueues a single-tenant rescoring job.
// POST /api/v1/tenants/:id/score/recalculate
func (h *RecalculateHandler) RecalculateTenant(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	tenant, err := h.tenants.GetTenantByID(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to get tenant")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get tenant"})
		return
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}

	collect := true
	var req recalculateRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.Collect != nil {
		collect = *req.Collect
	}

	job, err := h.queue.EnqueueScoreTenant(c.Request.Context(), tenantID, collect)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to enqueue scoring job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID.String()})
}

// RecalculateAll enqueues a full scoring sweep.
// POST /api/v1/scores/recalculate
func (h *RecalculateHandler) RecalculateAll(c *gin.Context) {
	job, err := h.queue.EnqueueScoreAllTenants(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to enqueue batch scoring job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID.String()})
}

// RecalculateBenchmarks enqueues a benchmark aggregation run.
// POST /api/v1/benchmarks/recalculate
func (h *RecalculateHandler) RecalculateBenchmarks(c *gin.Context) {
	job, err := h.queue.EnqueueBenchmarkNightly(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to enqueue benchmark job")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID.String()})
}
