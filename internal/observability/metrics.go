package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	eventsRecordedTotal    *prometheus.CounterVec
	recordFailuresTotal    prometheus.Counter
	queryLatencySeconds    *prometheus.HistogramVec
	badgeLookupsTotal      *prometheus.CounterVec
	requestsTotal          *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	requestErrorsTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the activity
// subsystem and the HTTP middleware.
func RegisterMetrics() {
	registerOnce.Do(func() {
		eventsRecordedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_events_recorded_total",
			Help: "Total number of activity events appended to the log.",
		}, []string{"action_type"})

		recordFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "activity_record_failures_total",
			Help: "Total number of activity writes that failed and were swallowed.",
		})

		queryLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "activity_query_latency_seconds",
			Help:    "Latency distribution for activity feed queries.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"scope"})

		badgeLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "activity_badge_lookups_total",
			Help: "Total number of badge head lookups, labelled by cache outcome.",
		}, []string{"result"})

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		requestErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_request_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(
			eventsRecordedTotal,
			recordFailuresTotal,
			queryLatencySeconds,
			badgeLookupsTotal,
			requestsTotal,
			requestLatencySeconds,
			requestErrorsTotal,
		)
	})
}

// EventsRecorded exposes the per-action recorded events counter.
func EventsRecorded() *prometheus.CounterVec {
	RegisterMetrics()
	return eventsRecordedTotal
}

// RecordFailures exposes the swallowed-write failure counter.
func RecordFailures() prometheus.Counter {
	RegisterMetrics()
	return recordFailuresTotal
}

// QueryLatency exposes the feed query latency histogram.
func QueryLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return queryLatencySeconds
}

// BadgeLookups exposes the badge lookup counter.
func BadgeLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return badgeLookupsTotal
}

// Requests exposes the request counter.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the request latency histogram.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// RequestErrors exposes the error response counter.
func RequestErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return requestErrorsTotal
}
