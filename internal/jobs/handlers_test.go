package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
)

type mockBenchmarkRunner struct {
	written int
	err     error
	ranFor  time.Time
}

func (m *mockBenchmarkRunner) RunNightly(ctx context.Context, day time.Time) (int, error) {
	m.ranFor = day
	return m.written, m.err
}

func TestScoreTenantHandler(t *testing.T) {
	tenantID := uuid.New()
	runner := newTestRunner(nil, &mockProgressStore{}, &mockCollector{}, &mockCalculator{}, 0)
	handler := NewScoreTenantHandler(runner)

	job := models.NewScoreTenantJob(tenantID, true)
	result, err := handler.Handle(context.Background(), job)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result["tenant_id"] != tenantID.String() {
		t.Errorf("result tenant = %v", result["tenant_id"])
	}
	if result["overall_score"] != 80 {
		t.Errorf("result score = %v", result["overall_score"])
	}
}

func TestScoreTenantHandlerMissingTenant(t *testing.T) {
	runner := newTestRunner(nil, &mockProgressStore{}, &mockCollector{}, &mockCalculator{}, 0)
	handler := NewScoreTenantHandler(runner)

	job := models.NewJob(models.JobTypeScoreTenant, 10, models.JobPayload{})
	if _, err := handler.Handle(context.Background(), job); err == nil {
		t.Error("expected error for payload without tenant_id")
	}
}

func TestScoreAllTenantsHandler(t *testing.T) {
	tenants := makeTenants(3)
	runner := newTestRunner(tenants, &mockProgressStore{}, &mockCollector{}, &mockCalculator{}, 0)
	handler := NewScoreAllTenantsHandler(runner)

	job := models.NewScoreAllTenantsJob()
	result, err := handler.Handle(context.Background(), job)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result["processed"] != 3 {
		t.Errorf("processed = %v, want 3", result["processed"])
	}
	if result["failed"] != 0 {
		t.Errorf("failed = %v, want 0", result["failed"])
	}
	if _, ok := result["duration_ms"]; !ok {
		t.Error("result missing duration_ms")
	}
}

func TestBenchmarkNightlyHandler(t *testing.T) {
	agg := &mockBenchmarkRunner{written: 12}
	handler := NewBenchmarkNightlyHandler(agg)

	result, err := handler.Handle(context.Background(), models.NewBenchmarkNightlyJob())
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result["aggregates_written"] != 12 {
		t.Errorf("written = %v, want 12", result["aggregates_written"])
	}
	if agg.ranFor.IsZero() {
		t.Error("aggregator was not invoked")
	}
}

func TestBenchmarkNightlyHandlerError(t *testing.T) {
	agg := &mockBenchmarkRunner{err: errors.New("db down")}
	handler := NewBenchmarkNightlyHandler(agg)

	if _, err := handler.Handle(context.Background(), models.NewBenchmarkNightlyJob()); err == nil {
		t.Error("expected aggregation error to propagate")
	}
}
