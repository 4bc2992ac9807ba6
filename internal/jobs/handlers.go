package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
)

// BenchmarkRunner executes one nightly aggregation pass.
type BenchmarkRunner interface {
	RunNightly(ctx context.Context, day time.Time) (int, error)
}

// ScoreTenantHandler handles single-tenant rescoring jobs.
type ScoreTenantHandler struct {
	runner *Runner
}

// NewScoreTenantHandler creates the handler.
func NewScoreTenantHandler(runner *Runner) *ScoreTenantHandler {
	return &ScoreTenantHandler{runner: runner}
}

// Handle rescoring of the tenant named in the job payload.
func (h *ScoreTenantHandler) Handle(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	if job.Payload.TenantID == nil {
		return nil, fmt.Errorf("score_tenant job %s has no tenant_id", job.ID)
	}

	rec, err := h.runner.RunOne(ctx, *job.Payload.TenantID, job.Payload.Collect)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"tenant_id":     rec.TenantID.String(),
		"overall_score": rec.OverallScore,
		"trend":         string(rec.Trend),
		"risk_level":    string(rec.RiskLevel),
	}, nil
}

// ScoreAllTenantsHandler handles full scoring sweep jobs.
type ScoreAllTenantsHandler struct {
	runner *Runner
}

// NewScoreAllTenantsHandler creates the handler.
func NewScoreAllTenantsHandler(runner *Runner) *ScoreAllTenantsHandler {
	return &ScoreAllTenantsHandler{runner: runner}
}

// Handle runs the sequential sweep, reporting progress on the job row.
func (h *ScoreAllTenantsHandler) Handle(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	result, err := h.runner.RunAll(ctx, job.ID, job.Payload.Collect)
	if err != nil {
		return nil, err
	}
	return result.AsResult(), nil
}

// BenchmarkNightlyHandler handles peer benchmark aggregation jobs.
type BenchmarkNightlyHandler struct {
	aggregator BenchmarkRunner
}

// NewBenchmarkNightlyHandler creates the handler.
func NewBenchmarkNightlyHandler(aggregator BenchmarkRunner) *BenchmarkNightlyHandler {
	return &BenchmarkNightlyHandler{aggregator: aggregator}
}

// Handle runs the aggregation for the current day.
func (h *BenchmarkNightlyHandler) Handle(ctx context.Context, job *models.Job) (map[string]interface{}, error) {
	written, err := h.aggregator.RunNightly(ctx, time.Now())
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"aggregates_written": written,
	}, nil
}
