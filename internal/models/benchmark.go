package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BenchmarkMetric identifies one of the benchmarked usage metrics.
type BenchmarkMetric string

const (
	// MetricAttestationCompletionRate is the campaign assignment completion percentage.
	MetricAttestationCompletionRate BenchmarkMetric = "attestation_completion_rate"
	// MetricCaseResolutionTime is the average days from case creation to closure.
	MetricCaseResolutionTime BenchmarkMetric = "case_resolution_time"
	// MetricCaseOnTimeRate is the percentage of closed cases that met their SLA.
	MetricCaseOnTimeRate BenchmarkMetric = "case_on_time_rate"
	// MetricLoginRate is the active-user percentage over the trailing window.
	MetricLoginRate BenchmarkMetric = "login_rate"
	// MetricFeatureAdoptionRate is the adopted share of tracked features.
	MetricFeatureAdoptionRate BenchmarkMetric = "feature_adoption_rate"
)

// AllBenchmarkMetrics lists every metric the nightly aggregation covers.
var AllBenchmarkMetrics = []BenchmarkMetric{
	MetricAttestationCompletionRate,
	MetricCaseResolutionTime,
	MetricCaseOnTimeRate,
	MetricLoginRate,
	MetricFeatureAdoptionRate,
}

// Valid reports whether m is a known benchmark metric.
func (m BenchmarkMetric) Valid() bool {
	switch m {
	case MetricAttestationCompletionRate, MetricCaseResolutionTime,
		MetricCaseOnTimeRate, MetricLoginRate, MetricFeatureAdoptionRate:
		return true
	}
	return false
}

// BenchmarkFilter restricts a peer cohort. A nil field means "no
// restriction on that dimension"; the zero value is the all-tenants cohort.
type BenchmarkFilter struct {
	IndustrySector *string `json:"industry_sector,omitempty"`
	EmployeeMin    *int    `json:"employee_min,omitempty"`
	EmployeeMax    *int    `json:"employee_max,omitempty"`
}

// Matches reports whether the tenant belongs to the cohort this filter
// describes. Tenants missing a dimension the filter constrains never match.
func (f BenchmarkFilter) Matches(t *Tenant) bool {
	if f.IndustrySector != nil {
		if t.IndustrySector == nil || *t.IndustrySector != *f.IndustrySector {
			return false
		}
	}
	if f.EmployeeMin != nil || f.EmployeeMax != nil {
		if t.EmployeeCount == nil {
			return false
		}
		if f.EmployeeMin != nil && *t.EmployeeCount < *f.EmployeeMin {
			return false
		}
		if f.EmployeeMax != nil && *t.EmployeeCount > *f.EmployeeMax {
			return false
		}
	}
	return true
}

// Label returns a human-readable description of the cohort, covering
// every constrained dimension.
func (f BenchmarkFilter) Label() string {
	var parts []string
	if f.IndustrySector != nil {
		parts = append(parts, fmt.Sprintf("industry=%s", *f.IndustrySector))
	}
	switch {
	case f.EmployeeMin != nil && f.EmployeeMax != nil:
		parts = append(parts, fmt.Sprintf("employees=%d-%d", *f.EmployeeMin, *f.EmployeeMax))
	case f.EmployeeMin != nil:
		parts = append(parts, fmt.Sprintf("employees=%d+", *f.EmployeeMin))
	case f.EmployeeMax != nil:
		parts = append(parts, fmt.Sprintf("employees=up to %d", *f.EmployeeMax))
	}
	if len(parts) == 0 {
		return "all"
	}
	return strings.Join(parts, " ")
}

// PeerBenchmark is one stored aggregate for a (metric, cohort, day)
// combination. Invariant: Min <= P25 <= Median <= P75 <= Max and
// PeerCount meets the configured privacy floor.
type PeerBenchmark struct {
	ID     uuid.UUID       `json:"id"`
	Metric BenchmarkMetric `json:"metric"`

	IndustrySector *string `json:"industry_sector,omitempty"`
	EmployeeMin    *int    `json:"employee_min,omitempty"`
	EmployeeMax    *int    `json:"employee_max,omitempty"`

	P25       float64 `json:"p25"`
	Median    float64 `json:"median"`
	P75       float64 `json:"p75"`
	Mean      float64 `json:"mean"`
	Min       float64 `json:"min"`
	Max       float64 `json:"max"`
	PeerCount int     `json:"peer_count"`

	CalculatedOn time.Time `json:"calculated_on"`
	CreatedAt    time.Time `json:"created_at"`
}

// Filter returns the cohort filter this aggregate was computed for.
func (b *PeerBenchmark) Filter() BenchmarkFilter {
	return BenchmarkFilter{
		IndustrySector: b.IndustrySector,
		EmployeeMin:    b.EmployeeMin,
		EmployeeMax:    b.EmployeeMax,
	}
}

// BenchmarkComparison is the result of comparing one tenant's metric value
// against a stored cohort aggregate.
type BenchmarkComparison struct {
	TenantID     uuid.UUID       `json:"tenant_id"`
	Metric       BenchmarkMetric `json:"metric"`
	Cohort       string          `json:"cohort"`
	TenantValue  float64         `json:"tenant_value"`
	Percentile   int             `json:"percentile"`
	PeerMedian   float64         `json:"peer_median"`
	PeerP25      float64         `json:"peer_p25"`
	PeerP75      float64         `json:"peer_p75"`
	PeerCount    int             `json:"peer_count"`
	CalculatedOn time.Time       `json:"calculated_on"`
}
