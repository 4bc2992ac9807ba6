package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/avencora/tenantpulse/internal/benchmark"
	"github.com/avencora/tenantpulse/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TenantStore looks up tenants for request validation.
type TenantStore interface {
	GetTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
}

// BenchmarkComparer positions a tenant within a peer cohort.
type BenchmarkComparer interface {
	Compare(ctx context.Context, tenantID uuid.UUID, metric models.BenchmarkMetric, filter models.BenchmarkFilter) (*models.BenchmarkComparison, error)
}

// BenchmarksHandler handles peer benchmark HTTP endpoints.
type BenchmarksHandler struct {
	tenants  TenantStore
	comparer BenchmarkComparer
	logger   zerolog.Logger
}

// NewBenchmarksHandler creates a new BenchmarksHandler.
func NewBenchmarksHandler(tenants TenantStore, comparer BenchmarkComparer, logger zerolog.Logger) *BenchmarksHandler {
	return &BenchmarksHandler{
		tenants:  tenants,
		comparer: comparer,
		logger:   logger.With().Str("component", "benchmarks_handler").Logger(),
	}
}

// RegisterRoutes registers benchmark routes on the given router group.
func (h *BenchmarksHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/tenants/:id/benchmark", h.Compare)
}

// ComparisonResponse is the API response for a benchmark comparison.
type ComparisonResponse struct {
	TenantID     string  `json:"tenant_id"`
	Metric       string  `json:"metric"`
	Cohort       string  `json:"cohort"`
	TenantValue  float64 `json:"tenant_value"`
	Percentile   int     `json:"percentile"`
	PeerMedian   float64 `json:"peer_median"`
	PeerP25      float64 `json:"peer_p25"`
	PeerP75      float64 `json:"peer_p75"`
	PeerCount    int     `json:"peer_count"`
	CalculatedOn string  `json:"calculated_on"`
}

// Compare positions the tenant against the requested peer cohort.
// GET /api/v1/tenants/:id/benchmark?metric=login_rate&industry_sector=healthcare
// Cohort filters: industry_sector, employee_min, employee_max. With no
// filter the all-tenants cohort is used.
func (h *BenchmarksHandler) Compare(c *gin.Context) {
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

	metric := models.BenchmarkMetric(c.Query("metric"))
	if !metric.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown metric"})
		return
	}

	filter, ok := h.filterFromQuery(c)
	if !ok {
		return
	}

	cmp, err := h.comparer.Compare(c.Request.Context(), tenantID, metric, filter)
	if err != nil {
		switch {
		case errors.Is(err, benchmark.ErrValueUnavailable):
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant has no data for this metric"})
		case errors.Is(err, benchmark.ErrNoBenchmark):
			c.JSON(http.StatusNotFound, gin.H{"error": "no benchmark available for this cohort"})
		default:
			h.logger.Error().Err(err).Str("tenant_id", tenantID.String()).Msg("benchmark comparison failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "benchmark comparison failed"})
		}
		return
	}

	c.JSON(http.StatusOK, ComparisonResponse{
		TenantID:     cmp.TenantID.String(),
		Metric:       string(cmp.Metric),
		Cohort:       cmp.Cohort,
		TenantValue:  cmp.TenantValue,
		Percentile:   cmp.Percentile,
		PeerMedian:   cmp.PeerMedian,
		PeerP25:      cmp.PeerP25,
		PeerP75:      cmp.PeerP75,
		PeerCount:    cmp.PeerCount,
		CalculatedOn: cmp.CalculatedOn.Format(time.DateOnly),
	})
}

func (h *BenchmarksHandler) filterFromQuery(c *gin.Context) (models.BenchmarkFilter, bool) {
	var filter models.BenchmarkFilter

	if sector := c.Query("industry_sector"); sector != "" {
		filter.IndustrySector = &sector
	}
	if minParam := c.Query("employee_min"); minParam != "" {
		n, err := strconv.Atoi(minParam)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employee_min must be a non-negative integer"})
			return filter, false
		}
		filter.EmployeeMin = &n
	}
	if maxParam := c.Query("employee_max"); maxParam != "" {
		n, err := strconv.Atoi(maxParam)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "employee_max must be a non-negative integer"})
			return filter, false
		}
		filter.EmployeeMax = &n
	}

	return filter, true
}
