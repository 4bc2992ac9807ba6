package benchmark

import (
	"context"
	"errors"
	"fmt"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrValueUnavailable means the tenant has no data for the metric.
	ErrValueUnavailable = errors.New("tenant has no value for this metric")
	// ErrNoBenchmark means no servable aggregate exists for the cohort.
	ErrNoBenchmark = errors.New("no benchmark available for this cohort")
)

// LookupStore is the storage surface comparisons read from.
type LookupStore interface {
	GetLatestPeerBenchmark(ctx context.Context, metric models.BenchmarkMetric, filter models.BenchmarkFilter) (*models.PeerBenchmark, error)
}

// Lookup compares individual tenants against stored cohort aggregates.
type Lookup struct {
	store        LookupStore
	resolver     ValueResolver
	minPeerCount int
}

// NewLookup creates a Lookup over the given store and resolver.
func NewLookup(store LookupStore, resolver ValueResolver, minPeerCount int) *Lookup {
	return &Lookup{store: store, resolver: resolver, minPeerCount: minPeerCount}
}

// Compare positions a tenant's current metric value within the latest
// aggregate for the exact cohort filter. There is no fallback to a
// broader cohort: a missing or under-floor aggregate is ErrNoBenchmark.
func (l *Lookup) Compare(ctx context.Context, tenantID uuid.UUID, metric models.BenchmarkMetric, filter models.BenchmarkFilter) (*models.BenchmarkComparison, error) {
	value, ok, err := l.resolver.Resolve(ctx, tenantID, metric)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant value: %w", err)
	}
	if !ok {
		return nil, ErrValueUnavailable
	}

	aggregate, err := l.store.GetLatestPeerBenchmark(ctx, metric, filter)
	if err != nil {
		return nil, fmt.Errorf("load benchmark: %w", err)
	}
	// The floor is enforced at write time too; re-checking here keeps a
	// manually inserted row from leaking a small cohort.
	if aggregate == nil || aggregate.PeerCount < l.minPeerCount {
		return nil, ErrNoBenchmark
	}

	return &models.BenchmarkComparison{
		TenantID:     tenantID,
		Metric:       metric,
		Cohort:       aggregate.Filter().Label(),
		TenantValue:  value,
		Percentile:   PercentilePosition(aggregate, value),
		PeerMedian:   aggregate.Median,
		PeerP25:      aggregate.P25,
		PeerP75:      aggregate.P75,
		PeerCount:    aggregate.PeerCount,
		CalculatedOn: aggregate.CalculatedOn,
	}, nil
}
