package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// UsageStore defines the interface for usage snapshot reads.
type UsageStore interface {
	GetTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListUsageSnapshots(ctx context.Context, tenantID uuid.UUID, days int) ([]*models.UsageMetricSnapshot, error)
}

// UsageHandler handles usage snapshot HTTP endpoints.
type UsageHandler struct {
	store  UsageStore
	logger zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(store UsageStore, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		store:  store,
		logger: logger.With().Str("component", "usage_handler").Logger(),
	}
}

// RegisterRoutes registers usage routes on the given router group.
func (h *UsageHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:id/usage", h.ListSnapshots)
}

// SnapshotResponse is the API response for a usage snapshot.
type SnapshotResponse struct {
	SnapshotDate         string  `json:"snapshot_date"`
	ActiveUsers          int     `json:"active_users"`
	TotalUsers           int     `json:"total_users"`
	LoginRate            float64 `json:"login_rate"`
	CasesCreated         int     `json:"cases_created"`
	CasesClosed          int     `json:"cases_closed"`
	CasesOnTime          int     `json:"cases_on_time"`
	CasesOverdue         int     `json:"cases_overdue"`
	CampaignsActive      int     `json:"campaigns_active"`
	AssignmentsTotal     int     `json:"assignments_total"`
	AssignmentsCompleted int     `json:"assignments_completed"`
	SupportTickets       int     `json:"support_tickets"`
}

// ListSnapshots returns a tenant's daily usage snapshots, newest first.
// GET /api/v1/tenants/:id/usage?days=30
func (h *UsageHandler) ListSnapshots(c *gin.Context) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return
	}

	tenant, err := h.store.GetTenantByID(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to get tenant")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get tenant"})
		return
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return
	}

	days := 30
	if daysParam := c.Query("days"); daysParam != "" {
		n, err := strconv.Atoi(daysParam)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}

	snapshots, err := h.store.ListUsageSnapshots(c.Request.Context(), tenantID, days)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to list snapshots")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list snapshots"})
		return
	}

	response := make([]SnapshotResponse, len(snapshots))
	for i, s := range snapshots {
		response[i] = SnapshotResponse{
			SnapshotDate:         s.SnapshotDate.Format("2006-01-02"),
			ActiveUsers:          s.ActiveUsers,
			TotalUsers:           s.TotalUsers,
			LoginRate:            s.LoginRate(),
			CasesCreated:         s.CasesCreated,
			CasesClosed:          s.CasesClosed,
			CasesOnTime:          s.CasesOnTime,
			CasesOverdue:         s.CasesOverdue,
			CampaignsActive:      s.CampaignsActive,
			AssignmentsTotal:     s.AssignmentsTotal,
			AssignmentsCompleted: s.AssignmentsCompleted,
			SupportTickets:       s.SupportTickets,
		}
	}

	c.JSON(http.StatusOK, gin.H{"days": days, "snapshots": response})
}
