// Package metrics exposes Prometheus metrics for the feed, the HTTP API and
// the vectorizer client.
//
// Usage:
//
//	// Record a served feed page
//	RecordFeedServed("personalized", 240, 12*time.Millisecond)
//
//	// Record an HTTP request
//	RecordHTTPRequest("GET", "/api/v1/feed/popular", 200, 3*time.Millisecond)
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Vectorizer call outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

var (
	// Feed Metrics

	// FeedServedTotal counts feed pages by strategy (personalized, popular).
	FeedServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinfeed_feed_served_total",
			Help: "Total number of feed pages served",
		},
		[]string{"strategy"},
	)

	// FeedDuration tracks end-to-end feed assembly latency.
	FeedDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinfeed_feed_duration_seconds",
			Help:    "Duration of feed assembly in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	// CatalogSize observes how many candidates each ranking pass scanned.
	CatalogSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pinfeed_candidate_catalog_size",
			Help:    "Number of candidate pins fetched per feed request",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	// RankingErrorsTotal counts requests aborted by corrupt embeddings.
	RankingErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pinfeed_ranking_errors_total",
			Help: "Total number of rankings aborted by embedding integrity errors",
		},
	)

	// HTTP Metrics

	// HTTPRequestsTotal counts API requests by route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinfeed_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration tracks API latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pinfeed_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Vectorizer Metrics

	// VectorizerRequestsTotal counts embedding calls by outcome.
	VectorizerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pinfeed_vectorizer_requests_total",
			Help: "Total number of vectorizer calls",
		},
		[]string{"outcome"},
	)

	// VectorizerBreakerState is 0 when closed, 1 half-open, 2 open.
	VectorizerBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pinfeed_vectorizer_breaker_state",
			Help: "Vectorizer circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)
)

// RecordFeedServed records one served feed page.
func RecordFeedServed(strategy string, catalogSize int, duration time.Duration) {
	FeedServedTotal.WithLabelValues(strategy).Inc()
	FeedDuration.WithLabelValues(strategy).Observe(duration.Seconds())
	CatalogSize.Observe(float64(catalogSize))
}

// RecordRankingError records a ranking aborted by an integrity error.
func RecordRankingError() {
	RankingErrorsTotal.Inc()
}

// RecordHTTPRequest records one handled API request. route is the matched
// pattern, not the raw path, to keep label cardinality bounded.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordVectorizerRequest records one vectorizer call outcome.
func RecordVectorizerRequest(outcome string) {
	VectorizerRequestsTotal.WithLabelValues(outcome).Inc()
}

// SetVectorizerBreakerState publishes the breaker state.
func SetVectorizerBreakerState(state int) {
	VectorizerBreakerState.Set(float64(state))
}
