// Package metrics exposes Prometheus instrumentation for the orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "marketbrain"

// Outcome labels for provider calls.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeNoData  = "no_data"
)

// Metrics holds every collector recorded by the orchestrator.
type Metrics struct {
	ProviderCalls        *prometheus.CounterVec
	ProviderCallDuration *prometheus.HistogramVec
	RateLimitSignals     *prometheus.CounterVec
	CacheLookups         *prometheus.CounterVec
	AggregationFallbacks *prometheus.CounterVec
	Coverage             *prometheus.HistogramVec
}

// New registers the collectors on reg. Pass prometheus.NewRegistry() in
// tests so that several instances can coexist; a nil reg creates
// collectors that are not registered anywhere.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ProviderCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_calls_total",
				Help:      "Provider calls by outcome",
			},
			[]string{"provider", "operation", "outcome"},
		),
		ProviderCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_call_duration_seconds",
				Help:      "Latency of provider calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"provider", "operation"},
		),
		RateLimitSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_signals_total",
				Help:      "Provider errors recognised as rate limiting",
			},
			[]string{"provider"},
		),
		CacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Result cache lookups by result",
			},
			[]string{"operation", "result"},
		),
		AggregationFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "aggregation_fallbacks_total",
				Help:      "Aggregations that failed and fell back to the first payload",
			},
			[]string{"operation"},
		),
		Coverage: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "coverage_percentage",
				Help:      "Share of providers that returned data, per request",
				Buckets:   []float64{0, 25, 50, 75, 100},
			},
			[]string{"operation"},
		),
	}
}

// RecordProviderCall records one provider invocation.
func (m *Metrics) RecordProviderCall(provider, operation, outcome string, elapsed time.Duration) {
	m.ProviderCalls.WithLabelValues(provider, operation, outcome).Inc()
	m.ProviderCallDuration.WithLabelValues(provider, operation).Observe(elapsed.Seconds())
}

func (m *Metrics) RecordRateLimit(provider string) {
	m.RateLimitSignals.WithLabelValues(provider).Inc()
}

// RecordCacheLookup records a hit or a miss.
func (m *Metrics) RecordCacheLookup(operation string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) RecordAggregationFallback(operation string) {
	m.AggregationFallbacks.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordCoverage(operation string, pct float64) {
	m.Coverage.WithLabelValues(operation).Observe(pct)
}
