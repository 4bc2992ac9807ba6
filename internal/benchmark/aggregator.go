package benchmark

import (
	"context"
	"fmt"
	"time"

	"github.com/avencora/tenantpulse/internal/events"
	"github.com/avencora/tenantpulse/internal/metrics"
	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AggregateStore is the storage surface the nightly aggregation writes to.
type AggregateStore interface {
	ListActiveTenants(ctx context.Context) ([]*models.Tenant, error)
	ListIndustrySectors(ctx context.Context) ([]string, error)
	UpsertPeerBenchmark(ctx context.Context, b *models.PeerBenchmark) error
}

// ValueResolver maps a tenant to its current value for a metric. The
// second return reports whether the tenant has a value at all.
type ValueResolver interface {
	Resolve(ctx context.Context, tenantID uuid.UUID, metric models.BenchmarkMetric) (float64, bool, error)
}

// Aggregator computes peer cohort aggregates across every metric and
// cohort combination.
type Aggregator struct {
	store    AggregateStore
	resolver ValueResolver

	buckets      []models.EmployeeBucket
	minPeerCount int

	instr     *metrics.Instrumentation
	publisher events.Publisher
	logger    zerolog.Logger
}

// NewAggregator creates an Aggregator over the given store and resolver.
func NewAggregator(store AggregateStore, resolver ValueResolver, minPeerCount int, instr *metrics.Instrumentation, publisher events.Publisher, logger zerolog.Logger) *Aggregator {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Aggregator{
		store:        store,
		resolver:     resolver,
		buckets:      models.DefaultEmployeeBuckets,
		minPeerCount: minPeerCount,
		instr:        instr,
		publisher:    publisher,
		logger:       logger.With().Str("component", "benchmark_aggregator").Logger(),
	}
}

// RunNightly recomputes every (metric, cohort) aggregate for the given
// day and returns the number of aggregates written. A failing combination
// is logged and skipped, and a tenant whose value cannot be resolved is
// excluded from that metric's cohorts; neither aborts the rest of the run.
func (a *Aggregator) RunNightly(ctx context.Context, day time.Time) (int, error) {
	start := time.Now()
	calculatedOn := models.TruncateToDay(day)

	tenants, err := a.store.ListActiveTenants(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active tenants: %w", err)
	}

	filters, err := a.cohortFilters(ctx)
	if err != nil {
		return 0, err
	}

	// Resolve each tenant's value once per metric, then slice the result
	// set per cohort. This keeps the run at one resolution pass per
	// (tenant, metric) no matter how many cohorts a tenant belongs to.
	written := 0
	skipped := 0
	failed := 0
	for _, metric := range models.AllBenchmarkMetrics {
		values, unresolved := a.resolveMetric(ctx, tenants, metric)
		failed += unresolved

		for _, filter := range filters {
			cohort := cohortValues(tenants, values, filter)
			if len(cohort) < a.minPeerCount {
				skipped++
				if a.instr != nil {
					a.instr.AggregatesSkipped.Inc()
				}
				continue
			}

			if err := a.writeAggregate(ctx, metric, filter, cohort, calculatedOn); err != nil {
				a.logger.Error().Err(err).
					Str("metric", string(metric)).
					Str("cohort", filter.Label()).
					Msg("aggregate write failed")
				failed++
				continue
			}
			written++
			if a.instr != nil {
				a.instr.AggregatesWritten.Inc()
			}
		}
	}

	duration := time.Since(start)
	a.logger.Info().
		Int("written", written).
		Int("skipped", skipped).
		Int("failed", failed).
		Dur("duration", duration).
		Msg("nightly benchmark run complete")

	a.publisher.Publish(events.NewEvent(events.EventBenchmarkCompleted, map[string]interface{}{
		"calculated_on": calculatedOn.Format("2006-01-02"),
		"written":       written,
		"skipped":       skipped,
		"failed":        failed,
		"duration_ms":   duration.Milliseconds(),
	}))

	return written, nil
}

// cohortFilters enumerates every cohort: all tenants, one per known
// industry sector, and one per employee size bucket.
func (a *Aggregator) cohortFilters(ctx context.Context) ([]models.BenchmarkFilter, error) {
	filters := []models.BenchmarkFilter{{}}

	sectors, err := a.store.ListIndustrySectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list industry sectors: %w", err)
	}
	for _, sector := range sectors {
		s := sector
		filters = append(filters, models.BenchmarkFilter{IndustrySector: &s})
	}

	for _, bucket := range a.buckets {
		min := bucket.Min
		filter := models.BenchmarkFilter{EmployeeMin: &min}
		if bucket.Max > 0 {
			max := bucket.Max
			filter.EmployeeMax = &max
		}
		filters = append(filters, filter)
	}

	return filters, nil
}

// resolveMetric returns the metric value per tenant ID, plus the number
// of tenants whose resolution failed. A failing tenant is logged and
// excluded; the rest of the cohort still aggregates. Tenants without a
// value for the metric are absent from the map.
func (a *Aggregator) resolveMetric(ctx context.Context, tenants []*models.Tenant, metric models.BenchmarkMetric) (map[uuid.UUID]float64, int) {
	values := make(map[uuid.UUID]float64, len(tenants))
	unresolved := 0
	for _, tenant := range tenants {
		value, ok, err := a.resolver.Resolve(ctx, tenant.ID, metric)
		if err != nil {
			a.logger.Error().Err(err).
				Str("metric", string(metric)).
				Str("tenant_id", tenant.ID.String()).
				Msg("value resolution failed, excluding tenant")
			unresolved++
			continue
		}
		if ok {
			values[tenant.ID] = value
		}
	}
	return values, unresolved
}

// cohortValues collects the resolved values of tenants matching a filter.
func cohortValues(tenants []*models.Tenant, values map[uuid.UUID]float64, filter models.BenchmarkFilter) []float64 {
	var cohort []float64
	for _, tenant := range tenants {
		if !filter.Matches(tenant) {
			continue
		}
		if v, ok := values[tenant.ID]; ok {
			cohort = append(cohort, v)
		}
	}
	return cohort
}

func (a *Aggregator) writeAggregate(ctx context.Context, metric models.BenchmarkMetric, filter models.BenchmarkFilter, values []float64, calculatedOn time.Time) error {
	p25, median, p75, mean, min, max := summarize(values)

	b := &models.PeerBenchmark{
		ID:             uuid.New(),
		Metric:         metric,
		IndustrySector: filter.IndustrySector,
		EmployeeMin:    filter.EmployeeMin,
		EmployeeMax:    filter.EmployeeMax,
		P25:            p25,
		Median:         median,
		P75:            p75,
		Mean:           mean,
		Min:            min,
		Max:            max,
		PeerCount:      len(values),
		CalculatedOn:   calculatedOn,
		CreatedAt:      time.Now(),
	}
	return a.store.UpsertPeerBenchmark(ctx, b)
}
