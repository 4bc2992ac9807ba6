package jobs

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/avencora/tenantpulse/internal/metrics"
	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TenantLister enumerates the tenants a batch run covers.
type TenantLister interface {
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
}

// ProgressStore records batch progress on a running job.
type ProgressStore interface {
	UpdateJobProgress(ctx context.Context, id uuid.UUID, progress int) error
}

// SnapshotCollector materializes a tenant's daily usage snapshot.
type SnapshotCollector interface {
	CollectDaily(ctx context.Context, tenantID uuid.UUID, forDay time.Time) (*models.UsageMetricSnapshot, error)
}

// ScoreCalculator computes and persists one tenant's health score.
type ScoreCalculator interface {
	Calculate(ctx context.Context, tenantID uuid.UUID) (*models.HealthScoreRecord, error)
}

// Runner executes scoring jobs: single tenants on demand and the full
// sequential sweep.
type Runner struct {
	tenants    TenantLister
	progress   ProgressStore
	collector  SnapshotCollector
	calculator ScoreCalculator

	interTenantDelay time.Duration
	instr            *metrics.Instrumentation
	logger           zerolog.Logger
}

// NewRunner creates a Runner over the given collector and calculator.
func NewRunner(tenants TenantLister, progress ProgressStore, collector SnapshotCollector, calculator ScoreCalculator, interTenantDelay time.Duration, instr *metrics.Instrumentation, logger zerolog.Logger) *Runner {
	return &Runner{
		tenants:          tenants,
		progress:         progress,
		collector:        collector,
		calculator:       calculator,
		interTenantDelay: interTenantDelay,
		instr:            instr,
		logger:           logger.With().Str("component", "score_runner").Logger(),
	}
}

// RunOne collects (optionally) and scores a single tenant.
func (r *Runner) RunOne(ctx context.Context, tenantID uuid.UUID, collect bool) (*models.HealthScoreRecord, error) {
	start := time.Now()
	rec, err := r.scoreTenant(ctx, tenantID, collect)
	if r.instr != nil {
		r.instr.TenantDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			r.instr.TenantsScored.WithLabelValues("error").Inc()
		} else {
			r.instr.TenantsScored.WithLabelValues("ok").Inc()
		}
	}
	return rec, err
}

// RunAll scores every active tenant sequentially, pausing between
// tenants to keep load on the product database flat. One tenant failing
// never stops the sweep; it is counted and the sweep moves on. Progress
// is reported against the given job as the sweep advances.
func (r *Runner) RunAll(ctx context.Context, jobID uuid.UUID, collect bool) (models.BatchResult, error) {
	start := time.Now()

	tenants, err := r.tenants.ListActiveTenants(ctx)
	if err != nil {
		return models.BatchResult{}, fmt.Errorf("list active tenants: %w", err)
	}

	var result models.BatchResult
	for i, tenant := range tenants {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("batch canceled after %d tenants: %w", i, err)
		}

		tenantStart := time.Now()
		if _, err := r.scoreTenant(ctx, tenant.ID, collect); err != nil {
			result.Failed++
			if r.instr != nil {
				r.instr.TenantsScored.WithLabelValues("error").Inc()
			}
			r.logger.Error().Err(err).
				Str("tenant_id", tenant.ID.String()).
				Str("tenant_name", tenant.Name).
				Msg("tenant scoring failed")
		} else {
			result.Processed++
			if r.instr != nil {
				r.instr.TenantsScored.WithLabelValues("ok").Inc()
			}
		}
		if r.instr != nil {
			r.instr.TenantDuration.Observe(time.Since(tenantStart).Seconds())
		}

		progress := int(math.Round(float64(i+1) / float64(len(tenants)) * 100))
		if err := r.progress.UpdateJobProgress(ctx, jobID, progress); err != nil {
			r.logger.Warn().Err(err).Str("job_id", jobID.String()).Msg("progress update failed")
		}

		if i < len(tenants)-1 && r.interTenantDelay > 0 {
			time.Sleep(r.interTenantDelay)
		}
	}

	result.DurationMs = time.Since(start).Milliseconds()
	if r.instr != nil {
		r.instr.BatchDuration.Observe(time.Since(start).Seconds())
	}

	r.logger.Info().
		Int("processed", result.Processed).
		Int("failed", result.Failed).
		Int64("duration_ms", result.DurationMs).
		Msg("batch scoring run complete")

	return result, nil
}

func (r *Runner) scoreTenant(ctx context.Context, tenantID uuid.UUID, collect bool) (*models.HealthScoreRecord, error) {
	if collect {
		if _, err := r.collector.CollectDaily(ctx, tenantID, time.Now()); err != nil {
			return nil, err
		}
	}
	return r.calculator.Calculate(ctx, tenantID)
}
