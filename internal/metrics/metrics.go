package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BackendRequests counts REST backend calls by resource, method and status class.
	BackendRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolhub",
		Subsystem: "backend",
		Name:      "requests_total",
		Help:      "REST backend requests issued by the console gateway.",
	}, []string{"resource", "method", "status"})

	// BackendLatency observes REST backend round trips.
	BackendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schoolhub",
		Subsystem: "backend",
		Name:      "request_duration_seconds",
		Help:      "REST backend request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"resource"})

	// CacheLookups counts query cache hits and misses per resource.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolhub",
		Subsystem: "query",
		Name:      "cache_lookups_total",
		Help:      "Query cache lookups by outcome.",
	}, []string{"resource", "outcome"})

	// StaleResponses counts responses dropped because a newer query superseded them.
	StaleResponses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schoolhub",
		Subsystem: "query",
		Name:      "stale_responses_total",
		Help:      "Responses discarded because a newer request for the same key was issued.",
	})

	// ReportsRendered counts PDF renders by kind, direction and outcome.
	ReportsRendered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolhub",
		Subsystem: "report",
		Name:      "rendered_total",
		Help:      "PDF documents rendered.",
	}, []string{"kind", "direction", "outcome"})

	// ReportDuration observes PDF render time.
	ReportDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "schoolhub",
		Subsystem: "report",
		Name:      "render_duration_seconds",
		Help:      "PDF render latency.",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"kind"})

	// RateLimited counts requests rejected by the limiter.
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "schoolhub",
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})

	// ExportJobs counts async export jobs by outcome.
	ExportJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "schoolhub",
		Subsystem: "exports",
		Name:      "jobs_total",
		Help:      "Async export jobs processed by the worker.",
	}, []string{"outcome"})
)

// StatusClass collapses an HTTP status to "2xx", "4xx" etc. Zero means a transport error.
func StatusClass(code int) string {
	if code <= 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}
