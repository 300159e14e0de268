// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package logging

import (
	"strings"

	"github.com/rs/zerolog"
)

// SecurityEvent is an authentication-relevant event: a publish credential
// check, a WebSocket handshake decision or a rate-limit rejection.
type SecurityEvent struct {
	Event      string
	AppID      string
	Credential string
	IPAddress  string
	UserAgent  string
	Success    bool
	Reason     string
}

// SecurityLogger writes SecurityEvents with credentials masked.
type SecurityLogger struct {
	logger zerolog.Logger
}

// NewSecurityLogger creates a security logger on the global logger.
func NewSecurityLogger() *SecurityLogger {
	return &SecurityLogger{logger: With().Str("component", "auth").Logger()}
}

// NewSecurityLoggerWithLogger creates a security logger on a custom logger.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewSecurityLoggerWithLogger(logger zerolog.Logger) *SecurityLogger {
	return &SecurityLogger{logger: logger.With().Str("component", "auth").Logger()}
}

// LogEvent writes event. Failures are logged at warn level.
func (l *SecurityLogger) LogEvent(event *SecurityEvent) {
	var e *zerolog.Event
	if event.Success {
		e = l.logger.Info().Str("status", "success")
	} else {
		e = l.logger.Warn().Str("status", "failed")
	}
	e = e.Str("event", event.Event)

	if event.AppID != "" {
		e = e.Str("app_id", event.AppID)
	}
	if event.Credential != "" {
		e = e.Str("credential", MaskCredential(event.Credential))
	}
	if event.IPAddress != "" {
		e = e.Str("ip", event.IPAddress)
	}
	if event.UserAgent != "" {
		e = e.Str("user_agent", truncateString(event.UserAgent, 100))
	}
	if event.Reason != "" && !event.Success {
		e = e.Str("reason", event.Reason)
	}
	e.Msg("")
}

// LogPublishRejected records a publish refused for an unknown or revoked key.
func (l *SecurityLogger) LogPublishRejected(credential, ip, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:      "publish_auth_failed",
		Credential: credential,
		IPAddress:  ip,
		Reason:     reason,
	})
}

// LogHandshake records the outcome of a WebSocket handshake.
func (l *SecurityLogger) LogHandshake(appID, ip, userAgent string, accepted bool, reason string) {
	l.LogEvent(&SecurityEvent{
		Event:     "ws_handshake",
		AppID:     appID,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   accepted,
		Reason:    reason,
	})
}

// LogRateLimited records a publish rejected by the per-key limiter.
func (l *SecurityLogger) LogRateLimited(appID, ip string) {
	l.LogEvent(&SecurityEvent{
		Event:     "publish_rate_limited",
		AppID:     appID,
		IPAddress: ip,
		Reason:    "rate limit exceeded",
	})
}

// MaskCredential keeps the first four characters of a secret and replaces
// the rest. Secrets of eight characters or fewer are fully masked.
func MaskCredential(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

func truncateString(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}
