// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/velyx/internal/middleware"
	"github.com/tomtom215/velyx/internal/protocol"
)

// Router wires handlers and middleware into a chi router.
type Router struct {
	handler       *Handler
	chiMiddleware *ChiMiddleware
}

// NewRouter creates a router for handler.
func NewRouter(handler *Handler, mw *ChiMiddleware) *Router {
	if mw == nil {
		mw = NewChiMiddleware(nil, nil)
	}
	return &Router{handler: handler, chiMiddleware: mw}
}

// SetupChi configures all HTTP routes.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMiddleware.CORS()) // must be global for OPTIONS preflight
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Not found", Code: protocol.CodeMalformedRequest})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "Method not allowed", Code: protocol.CodeMalformedRequest})
	})

	// ========================
	// Operational Endpoints
	// ========================
	r.Group(func(r chi.Router) {
		r.Use(APISecurityHeaders())
		r.Get("/health", router.handler.Health)
		r.Get("/health/ready", router.handler.HealthReady)
		r.Get("/stats", router.handler.Stats)
	})
	r.Handle("/metrics", promhttp.Handler())

	// ========================
	// Publish Ingress
	// ========================
	r.With(APISecurityHeaders()).Post("/publish", router.handler.Publish)

	// ========================
	// WebSocket Gateway
	// ========================
	r.With(router.chiMiddleware.RateLimitHandshake()).Get("/ws", router.handler.WebSocket)

	return r
}
