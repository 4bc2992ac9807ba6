package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// TenantDirectoryStore defines the interface for tenant directory reads.
type TenantDirectoryStore interface {
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
}

// TenantsHandler handles the tenant directory endpoint.
type TenantsHandler struct {
	store  TenantDirectoryStore
	logger zerolog.Logger
}

// NewTenantsHandler creates a new TenantsHandler.
func NewTenantsHandler(store TenantDirectoryStore, logger zerolog.Logger) *TenantsHandler {
	return &TenantsHandler{
		store:  store,
		logger: logger.With().Str("component", "tenants_handler").Logger(),
	}
}

// RegisterRoutes registers tenant routes on the given router group.
func (h *TenantsHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants", h.List)
}

// TenantResponse is the API response for a tenant directory entry.
type TenantResponse struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Slug           string  `json:"slug"`
	IsActive       bool    `json:"is_active"`
	IndustrySector *string `json:"industry_sector,omitempty"`
	EmployeeCount  *int    `json:"employee_count,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

// List returns the active tenant directory.
// GET /api/v1/tenants
func (h *TenantsHandler) List(c *gin.Context) {
	tenants, err := h.store.ListActiveTenants(c.Request.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list tenants")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tenants"})
		return
	}

	response := make([]TenantResponse, len(tenants))
	for i, t := range tenants {
		response[i] = TenantResponse{
			ID:             t.ID.String(),
			Name:           t.Name,
			Slug:           t.Slug,
			IsActive:       t.IsActive,
			IndustrySector: t.IndustrySector,
			EmployeeCount:  t.EmployeeCount,
			CreatedAt:      t.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"tenants": response})
}
