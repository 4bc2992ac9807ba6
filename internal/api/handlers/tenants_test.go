package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type mockTenantDirectory struct {
	tenants []*models.Tenant
	err     error
}

func (m *mockTenantDirectory) ListActiveTenants(ctx context.Context) ([]*models.Tenant, error) {
	return m.tenants, m.err
}

func setupTenantsTestRouter(store *mockTenantDirectory) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewTenantsHandler(store, zerolog.Nop())
	api := r.Group("/api/v1")
	handler.RegisterRoutes(api)
	return r
}

func TestTenantsList(t *testing.T) {
	sector := "healthcare"
	employees := 250
	tenant := models.NewTenant("Acme Health", "acme-health")
	tenant.IndustrySector = &sector
	tenant.EmployeeCount = &employees
	r := setupTenantsTestRouter(&mockTenantDirectory{tenants: []*models.Tenant{tenant}})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Tenants []TenantResponse `json:"tenants"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Tenants) != 1 {
		t.Fatalf("got %d tenants, want 1", len(resp.Tenants))
	}
	got := resp.Tenants[0]
	if got.ID != tenant.ID.String() || got.Name != "Acme Health" || !got.IsActive {
		t.Errorf("tenant = %+v", got)
	}
	if got.IndustrySector == nil || *got.IndustrySector != "healthcare" {
		t.Errorf("industry_sector = %v", got.IndustrySector)
	}
	if got.EmployeeCount == nil || *got.EmployeeCount != 250 {
		t.Errorf("employee_count = %v", got.EmployeeCount)
	}
}

func TestTenantsListEmpty(t *testing.T) {
	r := setupTenantsTestRouter(&mockTenantDirectory{})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Tenants []TenantResponse `json:"tenants"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Tenants) != 0 {
		t.Errorf("got %d tenants, want 0", len(resp.Tenants))
	}
}

func TestTenantsListStoreError(t *testing.T) {
	r := setupTenantsTestRouter(&mockTenantDirectory{err: errors.New("db down")})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/api/v1/tenants", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
}
