package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestCounter counts HTTP requests by status code, method, and path
	RequestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasting_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"status", "method", "path"},
	)

	// RequestDuration measures HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasting_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status", "method", "path"},
	)

	// RequestInProgress counts HTTP requests currently being processed
	RequestInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tasting_http_requests_in_progress",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	// RateLimiterRejections counts rejected requests due to rate limiting
	RateLimiterRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasting_rate_limiter_rejections_total",
			Help: "Total number of requests rejected by rate limiter",
		},
		[]string{"ip"},
	)

	// DatabaseOperationDuration measures database operation duration
	DatabaseOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasting_db_operation_duration_seconds",
			Help:    "Database operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	// RealtimeConnections tracks open websocket connections
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasting_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// BroadcastsTotal counts events fanned out to rooms by type
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasting_realtime_broadcasts_total",
			Help: "Total number of events broadcast to tasting rooms",
		},
		[]string{"type"},
	)

	// BroadcastDrops counts clients dropped because they could not keep up or went away
	BroadcastDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasting_realtime_dropped_clients_total",
			Help: "Total number of realtime clients dropped during fan-out",
		},
	)

	// FlightsGraded counts flights closed and graded, by trigger ("host", "timer", "tasting")
	FlightsGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasting_flights_graded_total",
			Help: "Total number of flights graded",
		},
		[]string{"trigger"},
	)

	// GradingRetries counts transient failures retried while grading
	GradingRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasting_grading_retries_total",
			Help: "Total number of grading attempts retried after a transient error",
		},
	)

	// OverridesApplied counts host corrections
	OverridesApplied = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasting_overrides_applied_total",
			Help: "Total number of guess overrides applied",
		},
	)

	// EventsPublished counts domain events handed to the message broker by outcome
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasting_events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"type", "outcome"},
	)

	// MemoryStats tracks memory usage stats
	MemoryStats = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tasting_memory_stats_bytes",
			Help: "Memory statistics in bytes",
		},
		[]string{"type"},
	)

	// GoroutineCount tracks the number of goroutines
	GoroutineCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tasting_goroutine_count",
			Help: "Number of goroutines",
		},
	)
)

// RecordDBOperation records the duration of a database operation
func RecordDBOperation(operation string, table string, startTime time.Time) {
	duration := time.Since(startTime).Seconds()
	DatabaseOperationDuration.WithLabelValues(operation, table).Observe(duration)
}
