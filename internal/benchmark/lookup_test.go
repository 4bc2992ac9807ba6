package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avencora/tenantpulse/internal/models"
	"github.com/google/uuid"
)

type mockLookupStore struct {
	aggregate *models.PeerBenchmark
	err       error
}

func (m *mockLookupStore) GetLatestPeerBenchmark(ctx context.Context, metric models.BenchmarkMetric, filter models.BenchmarkFilter) (*models.PeerBenchmark, error) {
	return m.aggregate, m.err
}

func singleValueResolver(tenantID uuid.UUID, metric models.BenchmarkMetric, value float64) *mockResolver {
	return &mockResolver{values: map[uuid.UUID]map[models.BenchmarkMetric]float64{
		tenantID: {metric: value},
	}}
}

func TestLookupCompare(t *testing.T) {
	tenantID := uuid.New()
	day := time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC)
	sector := "healthcare"
	store := &mockLookupStore{aggregate: &models.PeerBenchmark{
		Metric:         models.MetricLoginRate,
		IndustrySector: &sector,
		Min:            10,
		P25:            20,
		Median:         30,
		P75:            40,
		Max:            50,
		PeerCount:      8,
		CalculatedOn:   day,
	}}
	lookup := NewLookup(store, singleValueResolver(tenantID, models.MetricLoginRate, 25), minPeers)

	cmp, err := lookup.Compare(context.Background(), tenantID, models.MetricLoginRate, models.BenchmarkFilter{})
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}

	if cmp.Percentile != 38 {
		t.Errorf("percentile = %d, want 38", cmp.Percentile)
	}
	if cmp.TenantValue != 25 {
		t.Errorf("tenant value = %v, want 25", cmp.TenantValue)
	}
	if cmp.PeerMedian != 30 || cmp.PeerP25 != 20 || cmp.PeerP75 != 40 {
		t.Errorf("peer stats = %v/%v/%v, want 20/30/40", cmp.PeerP25, cmp.PeerMedian, cmp.PeerP75)
	}
	if cmp.PeerCount != 8 {
		t.Errorf("peer count = %d, want 8", cmp.PeerCount)
	}
	if cmp.Cohort != "industry=healthcare" {
		t.Errorf("cohort = %q, want industry=healthcare", cmp.Cohort)
	}
	if !cmp.CalculatedOn.Equal(day) {
		t.Errorf("calculated_on = %v, want %v", cmp.CalculatedOn, day)
	}
}

func TestLookupCompareNoTenantValue(t *testing.T) {
	store := &mockLookupStore{aggregate: &models.PeerBenchmark{PeerCount: 10}}
	lookup := NewLookup(store, &mockResolver{}, minPeers)

	_, err := lookup.Compare(context.Background(), uuid.New(), models.MetricLoginRate, models.BenchmarkFilter{})
	if !errors.Is(err, ErrValueUnavailable) {
		t.Errorf("expected ErrValueUnavailable, got %v", err)
	}
}

func TestLookupCompareNoAggregate(t *testing.T) {
	tenantID := uuid.New()
	lookup := NewLookup(&mockLookupStore{}, singleValueResolver(tenantID, models.MetricLoginRate, 25), minPeers)

	_, err := lookup.Compare(context.Background(), tenantID, models.MetricLoginRate, models.BenchmarkFilter{})
	if !errors.Is(err, ErrNoBenchmark) {
		t.Errorf("expected ErrNoBenchmark, got %v", err)
	}
}

func TestLookupCompareUnderFloorAggregate(t *testing.T) {
	tenantID := uuid.New()
	store := &mockLookupStore{aggregate: &models.PeerBenchmark{PeerCount: 4}}
	lookup := NewLookup(store, singleValueResolver(tenantID, models.MetricLoginRate, 25), minPeers)

	_, err := lookup.Compare(context.Background(), tenantID, models.MetricLoginRate, models.BenchmarkFilter{})
	if !errors.Is(err, ErrNoBenchmark) {
		t.Errorf("expected ErrNoBenchmark for under-floor aggregate, got %v", err)
	}
}

func TestLookupCompareStoreError(t *testing.T) {
	tenantID := uuid.New()
	store := &mockLookupStore{err: errors.New("db down")}
	lookup := NewLookup(store, singleValueResolver(tenantID, models.MetricLoginRate, 25), minPeers)

	_, err := lookup.Compare(context.Background(), tenantID, models.MetricLoginRate, models.BenchmarkFilter{})
	if err == nil || errors.Is(err, ErrNoBenchmark) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}
