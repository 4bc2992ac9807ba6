package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, i *Instrumentation, name string) *dto.MetricFamily {
	t.Helper()
	families, err := i.Registry().Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestInstrumentationCounters(t *testing.T) {
	i := NewInstrumentation()

	i.TenantsScored.WithLabelValues("success").Inc()
	i.TenantsScored.WithLabelValues("success").Inc()
	i.TenantsScored.WithLabelValues("failure").Inc()
	i.AggregatesWritten.Add(11)
	i.AggregatesSkipped.Inc()

	mf := findMetric(t, i, "tenantpulse_tenants_scored_total")
	if mf == nil {
		t.Fatal("tenants_scored_total not registered")
	}
	total := 0.0
	for _, m := range mf.GetMetric() {
		total += m.GetCounter().GetValue()
	}
	if total != 3 {
		t.Errorf("expected 3 scoring attempts, got %v", total)
	}

	mf = findMetric(t, i, "tenantpulse_benchmark_aggregates_written_total")
	if mf == nil {
		t.Fatal("aggregates_written_total not registered")
	}
	if got := mf.GetMetric()[0].GetCounter().GetValue(); got != 11 {
		t.Errorf("expected 11 aggregates written, got %v", got)
	}
}

func TestInstrumentationHistograms(t *testing.T) {
	i := NewInstrumentation()

	i.BatchDuration.Observe(12.5)
	i.TenantDuration.Observe(0.25)
	i.TenantDuration.Observe(0.75)

	mf := findMetric(t, i, "tenantpulse_tenant_calculation_seconds")
	if mf == nil {
		t.Fatal("tenant_calculation_seconds not registered")
	}
	h := mf.GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("expected 2 observations, got %d", h.GetSampleCount())
	}
	if h.GetSampleSum() != 1.0 {
		t.Errorf("expected sum 1.0, got %v", h.GetSampleSum())
	}
}

func TestInstrumentationHandler(t *testing.T) {
	i := NewInstrumentation()
	i.JobsProcessed.WithLabelValues("score_tenant", "completed").Inc()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	i.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "tenantpulse_jobs_processed_total") {
		t.Error("expected jobs_processed_total in exposition output")
	}
	if !strings.Contains(body, `job_type="score_tenant"`) {
		t.Error("expected job_type label in exposition output")
	}
}
