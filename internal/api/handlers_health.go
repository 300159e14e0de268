// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/velyx/internal/fanout"
	"github.com/tomtom215/velyx/internal/keys"
	ws "github.com/tomtom215/velyx/internal/websocket"
)

// readinessTimeout bounds each dependency check in /health/ready.
const readinessTimeout = 2 * time.Second

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status      string  `json:"status"`
	Version     string  `json:"version"`
	Uptime      float64 `json:"uptimeSeconds"`
	Connections int     `json:"connections"`
}

// ReadinessStatus is the body of GET /health/ready.
type ReadinessStatus struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	WebSocket       ws.Stats     `json:"websocket"`
	Fanout          fanout.Stats `json:"fanout"`
	RateLimiters    int          `json:"rateLimiters"`
	KeyCacheEntries int          `json:"keyCacheEntries"`
	Uptime          float64      `json:"uptimeSeconds"`
}

// Health is the liveness probe. It reports 200 while the process serves
// HTTP, regardless of dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:      "healthy",
		Version:     h.version,
		Uptime:      time.Since(h.startTime).Seconds(),
		Connections: h.manager.Count(),
	})
}

// HealthReady is the readiness probe. It returns 503 when the key registry
// or, in cluster mode, the NATS bridge is unavailable.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	status := ReadinessStatus{Ready: true, Checks: map[string]string{}}

	if err := keys.Ping(ctx, h.registry); err != nil {
		status.Ready = false
		status.Checks["keys"] = err.Error()
	} else {
		status.Checks["keys"] = "ok"
	}

	if h.cluster != nil {
		if err := h.cluster.Ready(); err != nil {
			status.Ready = false
			status.Checks["cluster"] = err.Error()
		} else {
			status.Checks["cluster"] = "ok"
		}
	}

	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// Stats reports connection, subscription and fan-out counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		WebSocket:    h.manager.Stats(),
		Fanout:       h.publisher.Stats(),
		RateLimiters: h.limiter.Len(),
		Uptime:       time.Since(h.startTime).Seconds(),
	}
	if sized, ok := h.registry.(interface{ Len() int }); ok {
		resp.KeyCacheEntries = sized.Len()
	}
	writeJSON(w, http.StatusOK, resp)
}
