package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Instrumentation holds the service's Prometheus metrics on a dedicated
// registry so tests can run side by side without collisions.
type Instrumentation struct {
	registry *prometheus.Registry

	TenantsScored     *prometheus.CounterVec
	JobsProcessed     *prometheus.CounterVec
	AggregatesWritten prometheus.Counter
	AggregatesSkipped prometheus.Counter

	BatchDuration  prometheus.Histogram
	TenantDuration prometheus.Histogram
}

// NewInstrumentation creates the metric set on a fresh registry.
func NewInstrumentation() *Instrumentation {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	i := &Instrumentation{
		registry: registry,
		TenantsScored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantpulse",
			Name:      "tenants_scored_total",
			Help:      "Tenant scoring attempts by result.",
		}, []string{"result"}),
		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tenantpulse",
			Name:      "jobs_processed_total",
			Help:      "Queue jobs processed by type and terminal status.",
		}, []string{"job_type", "status"}),
		AggregatesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantpulse",
			Name:      "benchmark_aggregates_written_total",
			Help:      "Peer benchmark aggregates written by nightly runs.",
		}),
		AggregatesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tenantpulse",
			Name:      "benchmark_aggregates_skipped_total",
			Help:      "Cohort combinations skipped for falling below the peer floor.",
		}),
		BatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tenantpulse",
			Name:      "batch_duration_seconds",
			Help:      "Duration of full batch scoring runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		TenantDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tenantpulse",
			Name:      "tenant_calculation_seconds",
			Help:      "Duration of single-tenant collect and score cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	registry.MustRegister(
		i.TenantsScored,
		i.JobsProcessed,
		i.AggregatesWritten,
		i.AggregatesSkipped,
		i.BatchDuration,
		i.TenantDuration,
	)

	return i
}

// Registry exposes the underlying registry for test assertions.
func (i *Instrumentation) Registry() *prometheus.Registry {
	return i.registry
}

// Handler returns the exposition endpoint handler.
func (i *Instrumentation) Handler() http.Handler {
	return promhttp.HandlerFor(i.registry, promhttp.HandlerOpts{})
}
