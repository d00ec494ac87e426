// Package metrics exposes Prometheus instrumentation for price estimation,
// the search collaborator, and the HTTP surface.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Estimate outcomes.
const (
	OutcomeOK            = "ok"
	OutcomeEmpty         = "empty"
	OutcomeUpstreamError = "upstream_error"
)

var (
	EstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curio_price_estimates_total",
			Help: "Total number of price estimates by outcome",
		},
		[]string{"outcome"},
	)

	ConfidenceScore = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curio_confidence_score",
			Help:    "Distribution of confidence scores for completed estimates",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	ObservationsPerEstimate = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curio_price_observations",
			Help:    "Number of price observations extracted per estimate",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	SearchRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "curio_search_request_duration_seconds",
			Help:    "Duration of search provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curio_http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordEstimate records the outcome of one estimate.
func RecordEstimate(outcome string, observations int, score int) {
	EstimatesTotal.WithLabelValues(outcome).Inc()
	ObservationsPerEstimate.Observe(float64(observations))
	if outcome == OutcomeOK {
		ConfidenceScore.Observe(float64(score))
	}
}

// RecordSearch records one search provider round-trip.
func RecordSearch(outcome string, d time.Duration) {
	SearchRequestDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, route string, status int) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
