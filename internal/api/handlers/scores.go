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

// ScoreStore defines the interface for health score reads.
type ScoreStore interface {
	GetTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	GetLatestHealthScore(ctx context.Context, tenantID uuid.UUID) (*models.HealthScoreRecord, error)
	ListHealthScoreHistory(ctx context.Context, tenantID uuid.UUID, days int) ([]*models.HealthScoreRecord, error)
	ListAtRiskTenants(ctx context.Context) ([]*models.AtRiskTenant, error)
}

// ScoresHandler handles health score HTTP endpoints.
type ScoresHandler struct {
	store  ScoreStore
	logger zerolog.Logger
}

// NewScoresHandler creates a new ScoresHandler.
func NewScoresHandler(store ScoreStore, logger zerolog.Logger) *ScoresHandler {
	return &ScoresHandler{
		store:  store,
		logger: logger.With().Str("component", "scores_handler").Logger(),
	}
}

// RegisterRoutes registers score routes on the given router group.
func (h *ScoresHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/at-risk", h.ListAtRisk)
	r.GET("/tenants/:id/score", h.GetLatest)
	r.GET("/tenants/:id/score/history", h.GetHistory)
}

// ScoreResponse is the API response for a health score record.
type ScoreResponse struct {
	TenantID            string `json:"tenant_id"`
	OverallScore        int    `json:"overall_score"`
	LoginScore          int    `json:"login_score"`
	CaseResolutionScore int    `json:"case_resolution_score"`
	CampaignScore       int    `json:"campaign_score"`
	FeatureScore        int    `json:"feature_score"`
	TicketScore         int    `json:"ticket_score"`
	Trend               string `json:"trend"`
	RiskLevel           string `json:"risk_level"`
	PreviousScore       *int   `json:"previous_score,omitempty"`
	CalculatedAt        string `json:"calculated_at"`
}

func toScoreResponse(rec *models.HealthScoreRecord) ScoreResponse {
	return ScoreResponse{
		TenantID:            rec.TenantID.String(),
		OverallScore:        rec.OverallScore,
		LoginScore:          rec.LoginScore,
		CaseResolutionScore: rec.CaseResolutionScore,
		CampaignScore:       rec.CampaignScore,
		FeatureScore:        rec.FeatureScore,
		TicketScore:         rec.TicketScore,
		Trend:               string(rec.Trend),
		RiskLevel:           string(rec.RiskLevel),
		PreviousScore:       rec.PreviousScore,
		CalculatedAt:        rec.CalculatedAt.Format(time.RFC3339),
	}
}

// GetLatest returns the most recent health score for a tenant.
// GET /api/v1/tenants/:id/score
func (h *ScoresHandler) GetLatest(c *gin.Context) {
	tenantID, ok := h.tenantFromPath(c)
	if !ok {
		return
	}

	rec, err := h.store.GetLatestHealthScore(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to get latest score")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get score"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant has not been scored yet"})
		return
	}

	c.JSON(http.StatusOK, toScoreResponse(rec))
}

// GetHistory returns a tenant's score history, newest first.
// GET /api/v1/tenants/:id/score/history?days=90
func (h *ScoresHandler) GetHistory(c *gin.Context) {
	tenantID, ok := h.tenantFromPath(c)
	if !ok {
		return
	}

	days := 90
	if daysParam := c.Query("days"); daysParam != "" {
		n, err := strconv.Atoi(daysParam)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be a positive integer"})
			return
		}
		days = n
	}

	history, err := h.store.ListHealthScoreHistory(c.Request.Context(), tenantID, days)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to list score history")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list score history"})
		return
	}

	response := make([]ScoreResponse, len(history))
	for i, rec := range history {
		response[i] = toScoreResponse(rec)
	}

	c.JSON(http.StatusOK, gin.H{"days": days, "scores": response})
}

// AtRiskResponse is the API response for an at-risk tenant.
type AtRiskResponse struct {
	TenantID     string `json:"tenant_id"`
	TenantName   string `json:"tenant_name"`
	OverallScore int    `json:"overall_score"`
	Trend        string `json:"trend"`
	RiskLevel    string `json:"risk_level"`
	CalculatedAt string `json:"calculated_at"`
}

// ListAtRisk returns active tenants whose latest score is HIGH risk,
// worst first.
// GET /api/v1/tenants/at-risk
func (h *ScoresHandler) ListAtRisk(c *gin.Context) {
	tenants, err := h.store.ListAtRiskTenants(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list at-risk tenants")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list at-risk tenants"})
		return
	}

	response := make([]AtRiskResponse, len(tenants))
	for i, t := range tenants {
		response[i] = AtRiskResponse{
			TenantID:     t.TenantID.String(),
			TenantName:   t.TenantName,
			OverallScore: t.OverallScore,
			Trend:        string(t.Trend),
			RiskLevel:    string(t.RiskLevel),
			CalculatedAt: t.CalculatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"tenants": response})
}

// tenantFromPath parses the tenant ID and verifies the tenant exists.
func (h *ScoresHandler) tenantFromPath(c *gin.Context) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid tenant ID"})
		return uuid.Nil, false
	}

	tenant, err := h.store.GetTenantByID(c.Request.Context(), tenantID)
	if err != nil {
		h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("failed to get tenant")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get tenant"})
		return uuid.Nil, false
	}
	if tenant == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
		return uuid.Nil, false
	}

	return tenantID, true
}
