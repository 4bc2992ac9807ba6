package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avencora/tenantpulse/internal/benchmark"
	"github.com/avencora/tenantpulse/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockTenantStore struct {
	tenant *models.Tenant
}

func (m *mockTenantStore) GetTenantByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if m.tenant != nil && m.tenant.ID == id {
		return m.tenant, nil
	}
	return nil, nil
}

type mockComparer struct {
	cmp    *models.BenchmarkComparison
	err    error
	filter models.BenchmarkFilter
	metric models.BenchmarkMetric
}

func (m *mockComparer) Compare(ctx context.Context, tenantID uuid.UUID, metric models.BenchmarkMetric, filter models.BenchmarkFilter) (*models.BenchmarkComparison, error) {
	m.metric = metric
	m.filter = filter
	return m.cmp, m.err
}

func setupBenchmarksTestRouter(tenants *mockTenantStore, comparer *mockComparer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewBenchmarksHandler(tenants, comparer, zerolog.Nop())
	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)
	return r
}

func TestBenchmarksCompare(t *testing.T) {
	tenant := models.NewTenant("Acme", "acme")
	comparer := &mockComparer{cmp: &models.BenchmarkComparison{
		TenantID:     tenant.ID,
		Metric:       models.MetricLoginRate,
		Cohort:       "industry=healthcare",
		TenantValue:  64,
		Percentile:   71,
		PeerMedian:   55,
		PeerP25:      40,
		PeerP75:      68,
		PeerCount:    12,
		CalculatedOn: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC),
	}}
	r := setupBenchmarksTestRouter(&mockTenantStore{tenant: tenant}, comparer)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants/"+tenant.ID.String()+"/benchmark?metric=login_rate&industry_sector=healthcare", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp ComparisonResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if resp.Percentile != 71 || resp.PeerCount != 12 {
		t.Errorf("percentile/peers = %d/%d, want 71/12", resp.Percentile, resp.PeerCount)
	}
	if resp.CalculatedOn != "2026-08-27" {
		t.Errorf("calculated_on = %s", resp.CalculatedOn)
	}
	if resp.Cohort != "industry=healthcare" {
		t.Errorf("cohort = %q, want industry=healthcare", resp.Cohort)
	}

	if comparer.metric != models.MetricLoginRate {
		t.Errorf("metric passed = %s", comparer.metric)
	}
	if comparer.filter.IndustrySector == nil || *comparer.filter.IndustrySector != "healthcare" {
		t.Errorf("filter = %+v, want healthcare", comparer.filter)
	}
}

func TestBenchmarksCompareEmployeeFilter(t *testing.T) {
	tenant := models.NewTenant("Acme", "acme")
	comparer := &mockComparer{cmp: &models.BenchmarkComparison{}}
	r := setupBenchmarksTestRouter(&mockTenantStore{tenant: tenant}, comparer)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants/"+tenant.ID.String()+"/benchmark?metric=login_rate&employee_min=101&employee_max=500", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if comparer.filter.EmployeeMin == nil || *comparer.filter.EmployeeMin != 101 {
		t.Errorf("employee_min = %v", comparer.filter.EmployeeMin)
	}
	if comparer.filter.EmployeeMax == nil || *comparer.filter.EmployeeMax != 500 {
		t.Errorf("employee_max = %v", comparer.filter.EmployeeMax)
	}
}

func TestBenchmarksCompareUnknownMetric(t *testing.T) {
	tenant := models.NewTenant("Acme", "acme")
	r := setupBenchmarksTestRouter(&mockTenantStore{tenant: tenant}, &mockComparer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants/"+tenant.ID.String()+"/benchmark?metric=bogus", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", w.Code)
	}
}

func TestBenchmarksCompareNoBenchmark(t *testing.T) {
	tenant := models.NewTenant("Acme", "acme")
	comparer := &mockComparer{err: benchmark.ErrNoBenchmark}
	r := setupBenchmarksTestRouter(&mockTenantStore{tenant: tenant}, comparer)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants/"+tenant.ID.String()+"/benchmark?metric=login_rate", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestBenchmarksCompareNoTenantValue(t *testing.T) {
	tenant := models.NewTenant("Acme", "acme")
	comparer := &mockComparer{err: benchmark.ErrValueUnavailable}
	r := setupBenchmarksTestRouter(&mockTenantStore{tenant: tenant}, comparer)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants/"+tenant.ID.String()+"/benchmark?metric=login_rate", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}

func TestBenchmarksCompareUnknownTenant(t *testing.T) {
	r := setupBenchmarksTestRouter(&mockTenantStore{}, &mockComparer{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants/"+uuid.NewString()+"/benchmark?metric=login_rate", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", w.Code)
	}
}
