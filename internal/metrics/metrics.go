// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package metrics

import (
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// WebSocket Metrics
	WSConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections_active",
			Help: "Current number of open subscriber connections",
		},
	)

	WSHandshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_handshakes_total",
			Help: "Total number of WebSocket handshakes by outcome",
		},
		[]string{"outcome"}, // accepted, invalid_app, revoked, upgrade_failed
	)

	WSDisconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_disconnects_total",
			Help: "Total number of closed connections by reason",
		},
		[]string{"reason"}, // client_closed, read_error, slow_consumer, heartbeat_timeout, shutdown, protocol_error
	)

	WSFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_frames_received_total",
			Help: "Total number of client frames received by type",
		},
		[]string{"type"},
	)

	WSFrameErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_frame_errors_total",
			Help: "Total number of error frames sent to clients",
		},
		[]string{"code"},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of frames written to subscriber connections",
		},
	)

	WSSubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_subscriptions_active",
			Help: "Current number of (topic, connection) subscriptions",
		},
	)

	// Publish and Fan-out Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of publish requests by result",
		},
		[]string{"result"}, // accepted, or an error code
	)

	EventPayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_payload_bytes",
			Help:    "Size of accepted event payloads in bytes",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B .. 1MB
		},
	)

	EventRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "event_recipients",
			Help:    "Number of local subscribers an event was fanned out to",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	EventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_delivered_total",
			Help: "Total number of event frames enqueued to subscriber connections",
		},
	)

	FanoutDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fanout_duration_seconds",
			Help:    "Time to enqueue one event to all of its subscribers",
			Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		},
	)

	FanoutQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "fanout_queue_depth",
			Help: "Pending delivery jobs per fan-out worker",
		},
		[]string{"worker"},
	)

	SlowConsumersDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "slow_consumers_dropped_total",
			Help: "Total number of connections dropped because their send queue was full",
		},
	)

	HeartbeatTimeouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeat_timeouts_total",
			Help: "Total number of connections closed for missing a pong",
		},
	)

	// Key Registry Metrics
	KeyLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_registry_lookups_total",
			Help: "Total number of key registry lookups",
		},
		[]string{"backend", "operation", "result"}, // result: found, not_found, error
	)

	KeyLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "key_registry_lookup_duration_seconds",
			Help:    "Key registry lookup latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	KeyCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_cache_hits_total",
			Help: "Total number of key registry cache hits",
		},
		[]string{"cache"}, // resolve, negative, revocation
	)

	KeyCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_cache_misses_total",
			Help: "Total number of key registry cache misses",
		},
		[]string{"cache"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through a circuit breaker",
		},
		[]string{"name", "result"}, // success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Cluster Bridge Metrics
	ClusterMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_messages_published_total",
			Help: "Total number of events relayed to other nodes",
		},
	)

	ClusterPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cluster_publish_errors_total",
			Help: "Total number of failed relays to other nodes",
		},
	)

	ClusterMessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluster_messages_received_total",
			Help: "Total number of relayed events received from the bus",
		},
		[]string{"result"}, // delivered, own_origin, invalid
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordPublish records the result of a publish request. result is
// "accepted" or a protocol error code.
func RecordPublish(result string, payloadBytes, recipients int) {
	EventsPublished.WithLabelValues(result).Inc()
	if result == "accepted" {
		EventPayloadBytes.Observe(float64(payloadBytes))
		EventRecipients.Observe(float64(recipients))
	}
}

// RecordKeyLookup records a registry lookup against backend.
func RecordKeyLookup(backend, operation, result string, duration time.Duration) {
	KeyLookups.WithLabelValues(backend, operation, result).Inc()
	KeyLookupDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordKeyCache records a hit or miss on one of the registry caches.
func RecordKeyCache(cache string, hit bool) {
	if hit {
		KeyCacheHits.WithLabelValues(cache).Inc()
	} else {
		KeyCacheMisses.WithLabelValues(cache).Inc()
	}
}

// Circuit breaker state values for CircuitBreakerState.
const (
	BreakerClosed   = 0
	BreakerHalfOpen = 1
	BreakerOpen     = 2
)

// RecordBreakerTransition records a state change of the named breaker.
func RecordBreakerTransition(name, from, to string, toValue float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(toValue)
}

// SetAppInfo publishes the build version.
func SetAppInfo(version string) {
	AppInfo.WithLabelValues(version, runtime.Version()).Set(1)
}

// StartUptime updates AppUptime every interval until stop is closed.
func StartUptime(start time.Time, interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		AppUptime.Set(time.Since(start).Seconds())
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}
