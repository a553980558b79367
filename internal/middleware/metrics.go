package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	enrichmentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enrichment_total",
			Help: "Total number of AI enrichment attempts",
		},
		[]string{"outcome"},
	)

	enrichmentDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "enrichment_duration_seconds",
			Help:    "AI enrichment call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30},
		},
	)
)

// Metrics records request count, latency, and in-flight gauge for every
// request. The endpoint label uses the matched route pattern when available
// so path parameters do not explode cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		httpRequestsInFlight.Inc()

		wrapped := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		httpRequestsInFlight.Dec()

		endpoint := r.Pattern
		if endpoint == "" {
			endpoint = "unknown"
		}

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(wrapped.status)

		httpRequestsTotal.WithLabelValues(r.Method, endpoint, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(duration)
	})
}

// RecordEnrichment records the outcome and latency of an AI enrichment call
func RecordEnrichment(fallback bool, duration time.Duration) {
	outcome := "success"
	if fallback {
		outcome = "fallback"
	}
	enrichmentTotal.WithLabelValues(outcome).Inc()
	enrichmentDuration.Observe(duration.Seconds())
}
