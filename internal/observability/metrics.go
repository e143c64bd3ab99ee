// Package observability holds Prometheus metrics and OpenTelemetry tracing setup.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records repository query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "echoes_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// CacheLookups counts cache-aside lookups by key family and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_cache_lookups_total",
		Help: "Cache-aside lookups by key family and result",
	}, []string{"family", "result"})

	// EngagementActions counts like/bookmark/follow transitions by action.
	EngagementActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_engagement_actions_total",
		Help: "Engagement state changes by action",
	}, []string{"action"})

	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_notifications_created_total",
		Help: "Notifications written by type",
	}, []string{"type"})

	// NotificationFailures counts notifications that could not be written or pushed.
	NotificationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_notification_failures_total",
		Help: "Notification side effects that failed and were swallowed",
	}, []string{"stage"})

	// RateLimitRejections counts requests rejected by the route rate limiter.
	RateLimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_rate_limit_rejections_total",
		Help: "Requests rejected by rate limiting by resource",
	}, []string{"resource"})

	// AuthFailures counts rejected credential checks by entry point.
	AuthFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_auth_failures_total",
		Help: "Rejected login attempts by entry point",
	}, []string{"method"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "echoes_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "echoes_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
