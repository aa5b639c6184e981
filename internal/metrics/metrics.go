// Package metrics holds the Prometheus collectors for fetches, computations and batch runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "navreturns"

// Fetch outcomes
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeStale = "stale"
)

// Cache lookup results
const (
	CacheFresh = "fresh"
	CacheStale = "stale"
	CacheMiss  = "miss"
)

// Registry holds all collectors on a private Prometheus registry.
// All methods are safe on a nil *Registry, which records nothing.
type Registry struct {
	reg *prometheus.Registry

	FetchTotal    *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	CacheLookups  *prometheus.CounterVec

	Computations  *prometheus.CounterVec
	WindowResults *prometheus.CounterVec
	Splits        prometheus.Counter

	BatchRuns     prometheus.Counter
	BatchFunds    *prometheus.CounterVec
	BatchDuration prometheus.Histogram
	BatchActive   prometheus.Gauge
}

// New creates a registry with every collector registered
func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),

		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "NAV history fetches by outcome",
			},
			[]string{"outcome"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of NAV history fetches",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "NAV history cache lookups by result",
			},
			[]string{"result"},
		),

		Computations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "computations_total",
				Help:      "Return profiles computed by methodology",
			},
			[]string{"methodology"},
		),
		WindowResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "window_results_total",
				Help:      "Window results by label and method (method is empty for undefined)",
			},
			[]string{"window", "method"},
		),
		Splits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "splits_corrected_total",
				Help:      "Split-like discontinuities corrected during normalization",
			},
		),

		BatchRuns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_runs_total",
				Help:      "Completed batch runs",
			},
		),
		BatchFunds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_funds_total",
				Help:      "Funds processed in batch runs by status",
			},
			[]string{"status"},
		),
		BatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_duration_seconds",
				Help:      "Duration of batch runs",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
			},
		),
		BatchActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batch_active",
				Help:      "1 while a batch run is in progress",
			},
		),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.FetchTotal, r.FetchDuration, r.CacheLookups,
		r.Computations, r.WindowResults, r.Splits,
		r.BatchRuns, r.BatchFunds, r.BatchDuration, r.BatchActive,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry (tests, custom exporters)
func (r *Registry) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.reg
}

// ObserveFetch records one provider fetch
func (r *Registry) ObserveFetch(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.FetchTotal.WithLabelValues(outcome).Inc()
	r.FetchDuration.Observe(d.Seconds())
}

// ObserveCache records one cache lookup
func (r *Registry) ObserveCache(result string) {
	if r == nil {
		return
	}
	r.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveProfile records a computed profile
func (r *Registry) ObserveProfile(p domain.ReturnProfile) {
	if r == nil {
		return
	}
	r.Computations.WithLabelValues(string(p.Methodology)).Inc()
	for _, w := range p.Windows {
		r.WindowResults.WithLabelValues(w.Label, string(w.Method)).Inc()
	}
	r.Splits.Add(float64(len(p.Splits)))
}

// BatchStarted marks a batch run as in progress
func (r *Registry) BatchStarted() {
	if r == nil {
		return
	}
	r.BatchActive.Set(1)
}

// BatchFinished records a completed batch run
func (r *Registry) BatchFinished(succeeded, failed int, d time.Duration) {
	if r == nil {
		return
	}
	r.BatchActive.Set(0)
	r.BatchRuns.Inc()
	r.BatchFunds.WithLabelValues("succeeded").Add(float64(succeeded))
	r.BatchFunds.WithLabelValues("failed").Add(float64(failed))
	r.BatchDuration.Observe(d.Seconds())
}
