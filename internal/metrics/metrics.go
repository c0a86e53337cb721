// Package metrics exposes Prometheus collectors for the content generation service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal                 *prometheus.CounterVec
	batchesTotal               *prometheus.CounterVec
	providerCallsTotal         *prometheus.CounterVec
	breakerState               *prometheus.GaugeVec
	activeWorkers              prometheus.Gauge
	pageDurationSeconds        prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentgen_pages_total",
				Help: "Total number of page attempts finished, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		batchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentgen_batches_total",
				Help: "Total number of project batches run, labeled by kind.",
			},
			[]string{"kind"},
		)

		providerCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "contentgen_provider_calls_total",
				Help: "Total provider calls, labeled by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		)

		breakerState = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "contentgen_breaker_state",
				Help: "Circuit breaker state per provider: 0 closed, 1 open, 2 half-open.",
			},
			[]string{"provider"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "contentgen_active_workers",
				Help: "Number of workers currently processing a page.",
			},
		)

		pageDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "contentgen_page_duration_seconds",
				Help:    "Histogram of end-to-end page attempt durations.",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records a finished page attempt.
func ObservePage(outcome string, duration time.Duration) {
	if pagesTotal == nil {
		return
	}
	pagesTotal.WithLabelValues(outcome).Inc()
	pageDurationSeconds.Observe(duration.Seconds())
}

// ObserveBatch counts a batch run of the given kind ("generate" or "regenerate").
func ObserveBatch(kind string) {
	if batchesTotal == nil {
		return
	}
	batchesTotal.WithLabelValues(kind).Inc()
}

// ObserveProviderCall counts a provider call outcome.
func ObserveProviderCall(provider, outcome string) {
	if providerCallsTotal == nil {
		return
	}
	providerCallsTotal.WithLabelValues(provider, outcome).Inc()
}

// SetBreakerState records the current breaker state for a provider.
func SetBreakerState(provider string, state int) {
	if breakerState == nil {
		return
	}
	breakerState.WithLabelValues(provider).Set(float64(state))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers == nil {
		return
	}
	activeWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
