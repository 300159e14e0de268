// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/velyx/internal/config"
	"github.com/tomtom215/velyx/internal/fanout"
	"github.com/tomtom215/velyx/internal/keys"
	"github.com/tomtom215/velyx/internal/logging"
	ws "github.com/tomtom215/velyx/internal/websocket"
)

// EventPublisher accepts events for fan-out.
type EventPublisher interface {
	Publish(ctx context.Context, appID, publicTopic string, payload json.RawMessage) (int, error)
	Stats() fanout.Stats
}

// ReadinessChecker is an optional dependency reported by /health/ready.
type ReadinessChecker interface {
	Ready() error
}

// Handler contains dependencies for API handlers.
//
// Handler methods are split across files:
//   - handlers_publish.go: POST /publish
//   - handlers_websocket.go: GET /ws handshake
//   - handlers_health.go: /health, /health/ready, /stats
type Handler struct {
	config    *config.Config
	registry  keys.Registry
	publisher EventPublisher
	manager   *ws.Manager
	cluster   ReadinessChecker
	limiter   *KeyLimiter
	upgrader  *websocket.Upgrader
	security  *logging.SecurityLogger
	startTime time.Time
	version   string
}

// NewHandler creates the API handler. The publish rate limiter is started
// here and stopped by Close.
//
// Example:
//
//	handler := api.NewHandler(cfg, registry, engine, manager)
//	router := api.NewRouter(handler, api.NewChiMiddleware(nil, nil))
//	http.ListenAndServe(cfg.Server.Addr(), router.SetupChi())
func NewHandler(cfg *config.Config, registry keys.Registry, publisher EventPublisher, manager *ws.Manager) *Handler {
	limiter := NewKeyLimiter(cfg.Publish.RateLimit, cfg.Publish.RateBurst, cfg.Publish.LimiterTTL)
	limiter.Start()

	return &Handler{
		config:    cfg,
		registry:  registry,
		publisher: publisher,
		manager:   manager,
		limiter:   limiter,
		upgrader:  ws.NewUpgrader(cfg.WebSocket.AllowedOrigins),
		security:  logging.NewSecurityLogger(),
		startTime: time.Now(),
		version:   "dev",
	}
}

// SetCluster adds the cluster bridge to readiness checks.
func (h *Handler) SetCluster(c ReadinessChecker) {
	h.cluster = c
}

// SetVersion sets the version reported by /health.
func (h *Handler) SetVersion(v string) {
	h.version = v
}

// Close stops background work owned by the handler.
func (h *Handler) Close() {
	h.limiter.Stop()
}

// clientIP returns the peer address without its port. chi's RealIP
// middleware has already applied X-Forwarded-For / X-Real-IP.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
