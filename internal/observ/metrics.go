package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WebSocket metrics
var (
	// WSConnections tracks open WebSocket connections by endpoint.
	WSConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herdstream_ws_connections",
			Help: "Open WebSocket connections by endpoint",
		},
		[]string{"endpoint"},
	)

	// WSHandshakeRejections counts connections closed during the handshake
	// by close code.
	WSHandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herdstream_ws_handshake_rejections_total",
			Help: "WebSocket handshakes rejected, by endpoint and close code",
		},
		[]string{"endpoint", "code"},
	)

	// WSInboundMessages counts client messages by type; unparseable frames
	// are counted as "invalid".
	WSInboundMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herdstream_ws_inbound_messages_total",
			Help: "Inbound WebSocket messages by endpoint and type",
		},
		[]string{"endpoint", "type"},
	)
)

// Hub metrics
var (
	// HubChannels tracks channels with at least one local member.
	HubChannels = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "herdstream_hub_channels",
			Help: "Channels with at least one local member",
		},
	)

	// HubPushesDelivered counts payloads queued onto client send buffers.
	HubPushesDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herdstream_hub_pushes_delivered_total",
			Help: "Payloads queued for local clients",
		},
	)

	// HubPushesDropped counts payloads discarded because a client's send
	// buffer was full.
	HubPushesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herdstream_hub_pushes_dropped_total",
			Help: "Payloads dropped for slow clients",
		},
	)
)

// Broker metrics
var (
	// BrokerPublishes counts publish attempts by backend and status.
	BrokerPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herdstream_broker_publishes_total",
			Help: "Broker publish attempts by backend and status",
		},
		[]string{"backend", "status"},
	)

	// CircuitBreakerState tracks the publish breaker (0=closed, 1=half-open, 2=open).
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "herdstream_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Notification metrics
var (
	// NotificationsCreated counts persisted notifications by category.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "herdstream_notifications_created_total",
			Help: "Notifications persisted by category",
		},
		[]string{"category"},
	)

	// NotificationFailures counts per-recipient notification inserts that failed.
	NotificationFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "herdstream_notification_failures_total",
			Help: "Per-recipient notification inserts that failed",
		},
	)
)
