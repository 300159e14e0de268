// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/protocol"
)

// ChiMiddlewareConfig holds configuration for Chi middleware factories.
type ChiMiddlewareConfig struct {
	// CORS configuration
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int // seconds

	// Handshake rate limiting; 0 requests disables it.
	HandshakeRequests int
	HandshakeWindow   time.Duration
}

// DefaultChiMiddlewareConfig returns the default configuration.
func DefaultChiMiddlewareConfig() *ChiMiddlewareConfig {
	return &ChiMiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		CORSAllowedMethods: []string{"GET", "POST", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Api-Key", "X-Request-ID"},
		CORSMaxAge:         86400,

		HandshakeRequests: 60,
		HandshakeWindow:   time.Minute,
	}
}

// ChiMiddleware provides Chi-compatible middleware factories.
type ChiMiddleware struct {
	config   *ChiMiddlewareConfig
	cors     func(http.Handler) http.Handler
	security *logging.SecurityLogger
}

// NewChiMiddleware creates a middleware factory. A nil config uses the
// defaults.
func NewChiMiddleware(config *ChiMiddlewareConfig, security *logging.SecurityLogger) *ChiMiddleware {
	if config == nil {
		config = DefaultChiMiddlewareConfig()
	}
	if security == nil {
		security = logging.NewSecurityLogger()
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   config.CORSAllowedMethods,
		AllowedHeaders:   config.CORSAllowedHeaders,
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           config.CORSMaxAge,
	})

	return &ChiMiddleware{
		config:   config,
		cors:     corsHandler,
		security: security,
	}
}

// CORS returns the go-chi/cors handler. /publish is called from browsers
// and needs preflight support for the x-api-key header.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimitHandshake limits WebSocket upgrade attempts per client IP.
func (m *ChiMiddleware) RateLimitHandshake() func(http.Handler) http.Handler {
	if m.config.HandshakeRequests <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		m.config.HandshakeRequests,
		m.config.HandshakeWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(m.onHandshakeLimited),
	)
}

func (m *ChiMiddleware) onHandshakeLimited(w http.ResponseWriter, r *http.Request) {
	metrics.APIRateLimitHits.WithLabelValues("/ws").Inc()
	metrics.WSHandshakes.WithLabelValues("rate_limited").Inc()
	m.security.LogHandshake("", clientIP(r), r.UserAgent(), false, "handshake rate limit exceeded")

	retry := int(m.config.HandshakeWindow.Seconds())
	if retry < 1 {
		retry = 1
	}
	respondError(w, r, &protocol.RateLimitError{RetryAfter: retry})
}

// APISecurityHeaders adds the standard security headers to API responses.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// HSTS only when TLS is terminated here or by a proxy
			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
