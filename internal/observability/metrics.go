// Package observability holds the Prometheus collectors and OpenTelemetry setup shared by the service.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReactionsTotal counts applied reactions by target kind and outcome (created, removed, switched, conflict).
	ReactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_reactions_total",
		Help: "Total number of reaction toggles by target kind and outcome",
	}, []string{"target_kind", "outcome"})

	// CommentEventsTotal counts comment lifecycle events (submitted, replied, moderated, deleted).
	CommentEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_comment_events_total",
		Help: "Total number of comment lifecycle events",
	}, []string{"event"})

	// CascadeDeletedRows counts rows removed by comment cascades, by table.
	CascadeDeletedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_cascade_deleted_rows_total",
		Help: "Rows removed by cascading comment deletes",
	}, []string{"table"})

	// CounterRepairs counts denormalized counters rebuilt from fact rows.
	CounterRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_counter_repairs_total",
		Help: "Total number of counters recomputed after drift or a failed adjustment",
	}, []string{"target_kind", "reason"})

	// CacheResults counts cache lookups by cache and result (hit, miss, error).
	CacheResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_cache_results_total",
		Help: "Cache lookups by cache name and result",
	}, []string{"cache", "result"})

	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// NotificationsTotal counts notifier outcomes (published, failed, skipped).
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_rate_limit_rejections_total",
		Help: "Requests rejected by the per-identity rate limiter",
	}, []string{"resource"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "longform_notifications_total",
		Help: "Notification deliveries by outcome",
	}, []string{"outcome"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "longform_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
