// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package middleware provides chi-compatible HTTP middleware shared by the
// Velyx API.
//
//   - RequestID: assigns X-Request-ID and seeds the logging context.
//   - PrometheusMetrics: request count, latency and in-flight gauge, labelled
//     by chi route pattern. WebSocket upgrades pass through via Hijack.
//
// Usage with chi:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID)
//	r.Use(middleware.PrometheusMetrics)
package middleware
