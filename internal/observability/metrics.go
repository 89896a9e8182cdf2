package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
	chatConnectionsActive prometheus.Gauge
	chatMessagesTotal     *prometheus.CounterVec
	chatEventsDropped     prometheus.Counter
	chatRoomsCreated      *prometheus.CounterVec
	uploadLatencySeconds  prometheus.Histogram
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_latency_seconds",
			Help:    "Latency distribution for HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		chatConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "chat_connections_active",
			Help: "Number of websocket connections currently attached to the gateway.",
		})

		chatMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages persisted, labelled by message type.",
		}, []string{"type"})

		chatEventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_events_dropped_total",
			Help: "Events dropped because a client send buffer was full.",
		})

		chatRoomsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_rooms_created_total",
			Help: "Total chat rooms created, labelled by room type.",
		}, []string{"room_type"})

		uploadLatencySeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "chat_upload_latency_seconds",
			Help:    "Latency distribution for attachment uploads.",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			chatConnectionsActive,
			chatMessagesTotal,
			chatEventsDropped,
			chatRoomsCreated,
			uploadLatencySeconds,
		)
	})
}

// HTTPRequests exposes the counter for HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// ChatConnections exposes the gauge of active websocket connections.
func ChatConnections() prometheus.Gauge {
	RegisterMetrics()
	return chatConnectionsActive
}

// ChatMessages exposes the counter of persisted chat messages.
func ChatMessages() *prometheus.CounterVec {
	RegisterMetrics()
	return chatMessagesTotal
}

// ChatEventsDropped exposes the counter of events dropped for slow clients.
func ChatEventsDropped() prometheus.Counter {
	RegisterMetrics()
	return chatEventsDropped
}

// ChatRoomsCreated exposes the counter of rooms created.
func ChatRoomsCreated() *prometheus.CounterVec {
	RegisterMetrics()
	return chatRoomsCreated
}

// UploadLatency exposes the histogram of attachment upload latency.
func UploadLatency() prometheus.Histogram {
	RegisterMetrics()
	return uploadLatencySeconds
}
