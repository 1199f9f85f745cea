// Package metrics provides Prometheus metrics for the encyclopedia server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "encyclopedai"

var (
	// ArticlesMaterialized counts GetOrCreate outcomes.
	ArticlesMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "articles_materialized_total",
			Help:      "Article lookups by outcome (existing, created, in_progress, quota, failed)",
		},
		[]string{"outcome"},
	)

	// GenerationDuration measures provider calls.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Duration of content provider calls in seconds",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"operation", "status"},
	)

	// SearchCacheLookups counts search cache hits and misses.
	SearchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_cache_lookups_total",
			Help:      "Search cache lookups by result",
		},
		[]string{"result"},
	)

	// LocksPurged counts expired creation locks removed by maintenance.
	LocksPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "locks_purged_total",
			Help:      "Expired creation locks removed by the maintenance worker",
		},
	)

	// HTTPRequests counts handled requests.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status class",
		},
		[]string{"route", "status"},
	)

	// RateLimited counts rejected requests.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		},
	)
)

// RecordMaterialization records one GetOrCreate outcome.
func RecordMaterialization(outcome string) {
	ArticlesMaterialized.WithLabelValues(outcome).Inc()
}

// RecordGeneration records a provider call.
func RecordGeneration(operation string, err error, elapsed time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	GenerationDuration.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}

// RecordCacheLookup records a search cache hit or miss.
func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	SearchCacheLookups.WithLabelValues(result).Inc()
}

// RecordRequest records a handled HTTP request.
func RecordRequest(route string, status int) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	HTTPRequests.WithLabelValues(route, class).Inc()
}
