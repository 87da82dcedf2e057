// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProviderRequestsTotal counts outbound provider calls by outcome kind.
	ProviderRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Total number of outbound provider requests",
		},
		[]string{"provider", "outcome"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Duration of outbound provider requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8},
		},
		[]string{"provider"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of TTL cache lookups",
		},
		[]string{"namespace", "result"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state per provider",
		},
		[]string{"name"},
	)

	SignalDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_degraded_total",
			Help: "Total number of optional signals that degraded to empty",
		},
		[]string{"signal"},
	)

	PipelineDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_duration_seconds",
			Help:    "Duration of pipeline operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordProviderRequest records one outbound call.
func RecordProviderRequest(provider, outcome string, d time.Duration) {
	ProviderRequestsTotal.WithLabelValues(provider, outcome).Inc()
	ProviderRequestDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordCacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheLookupsTotal.WithLabelValues(namespace, result).Inc()
}

func RecordDegraded(signal string) {
	SignalDegradedTotal.WithLabelValues(signal).Inc()
}

// ObservePipeline returns a func that records the elapsed time when called.
func ObservePipeline(operation string) func() {
	start := time.Now()
	return func() {
		PipelineDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}
}
