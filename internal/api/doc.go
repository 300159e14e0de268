// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package api provides the HTTP surface of Velyx: publish ingress, the
WebSocket gateway handshake and operational endpoints.

# Routes

	POST /publish        publish an event (x-api-key header)
	GET  /ws?appId=      upgrade to a subscriber connection
	GET  /health         liveness
	GET  /health/ready   readiness: key registry and cluster bridge
	GET  /stats          connection, subscription and fan-out counters
	GET  /metrics        Prometheus exposition

# Publish

The request body is

	{"topic": "orders", "payload": {"id": 42}}

The API key resolves to an app ID through the key registry, and the event
is delivered to that app's subscribers of "orders" only. Responses:

	200 {"success": true, "topic": "orders"}
	400 {"success": false, "error": "...", "code": "INVALID_TOPIC"}
	401 {"success": false, "error": "Invalid API key", "code": "AUTH_ERROR"}
	413 {"success": false, "error": "Payload size exceeds 1 MB limit", "code": "PAYLOAD_TOO_LARGE"}
	429 {"success": false, "error": "Rate limit exceeded", "code": "RATE_LIMITED", "retryAfter": 1}

Each API key has its own token bucket (KeyLimiter). A 429 also carries a
Retry-After header.

# WebSocket Handshake

The app ID is checked before the upgrade. Unknown or revoked apps get a
401 JSON response and no socket. Upgrades are throttled per client IP by
httprate.

# Middleware

Global: request ID, real IP, panic recovery, CORS (go-chi/cors) and
Prometheus request metrics. JSON routes add standard security headers.
*/
package api
