package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_store_query_duration_seconds",
			Help:    "Duration of store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_store_errors_total",
			Help: "Store operations that failed with an unexpected error",
		},
		[]string{"operation"},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
		[]string{"backend"},
	)

	TrackingTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracking_request_transitions_total",
			Help: "Tracking request state transitions",
		},
		[]string{"to"},
	)

	LocationReports = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "location_reports_total",
			Help: "Location reports accepted",
		},
	)

	LocationCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_cache_lookups_total",
			Help: "Latest-location cache lookups by result",
		},
		[]string{"result"},
	)
)

func ObserveStore(operation string, start time.Time, err error) {
	StoreQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		StoreErrors.WithLabelValues(operation).Inc()
	}
}
