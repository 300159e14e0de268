// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package metrics defines the Prometheus metrics exported by Velyx.

All collectors are registered on the default registry through promauto and
served at /metrics by promhttp.

# Available Metrics

HTTP:
  - api_requests_total{method,endpoint,status_code}
  - api_request_duration_seconds{method,endpoint}
  - api_active_requests
  - api_rate_limit_hits_total{endpoint}

WebSocket:
  - websocket_connections_active
  - websocket_handshakes_total{outcome}
  - websocket_disconnects_total{reason}
  - websocket_frames_received_total{type}
  - websocket_frame_errors_total{code}
  - websocket_messages_sent_total
  - websocket_subscriptions_active

Publish and fan-out:
  - events_published_total{result}
  - event_payload_bytes, event_recipients
  - events_delivered_total
  - fanout_duration_seconds, fanout_queue_depth{worker}
  - slow_consumers_dropped_total, heartbeat_timeouts_total

Key registry:
  - key_registry_lookups_total{backend,operation,result}
  - key_registry_lookup_duration_seconds{backend,operation}
  - key_cache_hits_total{cache}, key_cache_misses_total{cache}

Circuit breakers (key service, cluster publisher):
  - circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - circuit_breaker_requests_total{name,result}
  - circuit_breaker_state_transitions_total{name,from_state,to_state}

Cluster bridge:
  - cluster_messages_published_total, cluster_publish_errors_total
  - cluster_messages_received_total{result}
*/
package metrics
