package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ynetwork_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// RedisCommandLatency records Redis round trips by command; pipelines are labelled "pipeline".
	RedisCommandLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ynetwork_redis_command_latency_seconds",
		Help:    "Redis command latency in seconds",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ynetwork_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// WebSocketConnectionsTotal is the gauge of active realtime connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ynetwork_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// PresenceOnlineUsers is the number of users held in the local presence registry.
	PresenceOnlineUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ynetwork_presence_online_users",
		Help: "Number of users with a live connection on this instance",
	})

	// WebSocketEventsTotal counts realtime events pushed to clients by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ynetwork_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ynetwork_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// NotificationDispatchTotal counts fan-out jobs by result (persisted, pushed, dropped, failed).
	NotificationDispatchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ynetwork_notification_dispatch_total",
		Help: "Notification fan-out jobs by result",
	}, []string{"result"})

	// NotificationQueueDepth is the number of fan-out jobs waiting for a worker.
	NotificationQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ynetwork_notification_queue_depth",
		Help: "Pending notification fan-out jobs",
	})

	// MessagesSentTotal counts chat messages persisted by conversation type.
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ynetwork_messages_sent_total",
		Help: "Total number of chat messages sent",
	}, []string{"conversation_type"})

	// MediaUploadsTotal counts media uploads by result.
	MediaUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ynetwork_media_uploads_total",
		Help: "Media uploads by result",
	}, []string{"result"})

	// CircuitBreakerState reports breaker state per dependency (0 closed, 1 half-open, 2 open).
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ynetwork_circuit_breaker_state",
		Help: "Circuit breaker state by dependency",
	}, []string{"name"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// RecordWebSocketEvent increments the WebSocket events counter for the event type.
func RecordWebSocketEvent(eventType string) {
	WebSocketEventsTotal.WithLabelValues(eventType).Inc()
}
