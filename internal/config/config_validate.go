// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package config

import (
	"fmt"
	"strings"
	"time"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"json":    true,
	"console": true,
}

var validEnvironments = map[string]bool{
	"development": true,
	"staging":     true,
	"production":  true,
}

// Validate checks that the configuration is complete and consistent.
// Error messages name the environment variable to change.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateWebSocket(); err != nil {
		return err
	}
	if err := c.validatePublish(); err != nil {
		return err
	}
	if err := c.validateFanout(); err != nil {
		return err
	}
	if err := c.validateKeys(); err != nil {
		return err
	}
	if err := c.validateCluster(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if !validEnvironments[c.Server.Environment] {
		return fmt.Errorf("ENVIRONMENT must be one of: development, staging, production")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateWebSocket() error {
	ws := c.WebSocket
	if ws.SendQueueSize < 1 {
		return fmt.Errorf("WS_SEND_QUEUE_SIZE must be at least 1")
	}
	if ws.MaxMessageSize < 512 {
		return fmt.Errorf("WS_MAX_MESSAGE_SIZE must be at least 512 bytes")
	}
	if ws.WriteWait <= 0 {
		return fmt.Errorf("WS_WRITE_WAIT must be positive")
	}
	if ws.PingInterval < time.Second {
		return fmt.Errorf("WS_PING_INTERVAL must be at least 1s")
	}
	if ws.PongTimeout <= 0 {
		return fmt.Errorf("WS_PONG_TIMEOUT must be positive")
	}
	if ws.MaxSubscriptions < 1 {
		return fmt.Errorf("WS_MAX_SUBSCRIPTIONS must be at least 1")
	}
	return nil
}

// maxPayloadCeiling keeps a misconfigured limit from turning publish into a
// memory exhaustion vector.
const maxPayloadCeiling = 16 << 20

func (c *Config) validatePublish() error {
	p := c.Publish
	if p.MaxPayloadBytes < 1 || p.MaxPayloadBytes > maxPayloadCeiling {
		return fmt.Errorf("PUBLISH_MAX_PAYLOAD_BYTES must be between 1 and %d", maxPayloadCeiling)
	}
	if p.RateLimit <= 0 {
		return fmt.Errorf("PUBLISH_RATE_LIMIT must be positive")
	}
	if p.RateBurst < 1 {
		return fmt.Errorf("PUBLISH_RATE_BURST must be at least 1")
	}
	if p.LimiterTTL < time.Second {
		return fmt.Errorf("PUBLISH_LIMITER_TTL must be at least 1s")
	}
	return nil
}

func (c *Config) validateFanout() error {
	if c.Fanout.Workers < 0 {
		return fmt.Errorf("FANOUT_WORKERS must not be negative (0 = number of CPUs)")
	}
	if c.Fanout.QueueSize < 1 {
		return fmt.Errorf("FANOUT_QUEUE_SIZE must be at least 1")
	}
	if c.Subscription.Shards < 1 {
		return fmt.Errorf("SUBSCRIPTION_SHARDS must be at least 1")
	}
	return nil
}

func (c *Config) validateKeys() error {
	switch c.Keys.Backend {
	case "badger":
		if !c.Keys.InMemory && c.Keys.BadgerPath == "" {
			return fmt.Errorf("KEYS_BADGER_PATH is required when KEYS_BACKEND=badger and KEYS_IN_MEMORY=false")
		}
	case "remote":
		if c.Keys.RemoteURL == "" {
			return fmt.Errorf("KEYS_REMOTE_URL is required when KEYS_BACKEND=remote")
		}
		if err := validateHTTPURL(c.Keys.RemoteURL, "KEYS_REMOTE_URL"); err != nil {
			return err
		}
		if len(c.Keys.Seed) > 0 {
			return fmt.Errorf("KEYS_SEED is only supported with KEYS_BACKEND=badger")
		}
	default:
		return fmt.Errorf("KEYS_BACKEND must be one of: badger, remote")
	}

	for _, entry := range c.Keys.Seed {
		appID, apiKey, ok := strings.Cut(entry, ":")
		if !ok || appID == "" || apiKey == "" {
			return fmt.Errorf("KEYS_SEED entries must have the form appId:apiKey")
		}
		if c.IsProduction() && containsPlaceholder(apiKey) {
			return fmt.Errorf("KEYS_SEED contains a placeholder API key for app %q; set a real key in production", appID)
		}
	}

	if c.Keys.CacheTTL <= 0 || c.Keys.NegativeCacheTTL <= 0 || c.Keys.RevocationCacheTTL <= 0 {
		return fmt.Errorf("KEYS_CACHE_TTL, KEYS_NEGATIVE_CACHE_TTL and KEYS_REVOCATION_CACHE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateCluster() error {
	if !c.Cluster.Enabled {
		return nil
	}
	if c.Cluster.SubjectPrefix == "" || strings.ContainsAny(c.Cluster.SubjectPrefix, " *>") {
		return fmt.Errorf("NATS_SUBJECT_PREFIX must be non-empty and contain no spaces or wildcards")
	}
	if c.Cluster.Embedded {
		if c.Cluster.EmbeddedPort < 1 || c.Cluster.EmbeddedPort > 65535 {
			return fmt.Errorf("NATS_EMBEDDED_PORT must be between 1 and 65535")
		}
		return nil
	}
	if err := validateNATSURL(c.Cluster.URL); err != nil {
		return fmt.Errorf("NATS_URL: %w", err)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.IsProduction() && c.hasWildcardCORS() && c.WebSocket.AllowAPIKeyHandshake {
		return fmt.Errorf("CORS_ORIGINS=* is not allowed in production with WS_ALLOW_API_KEY_HANDSHAKE=true; " +
			"browsers would be able to send API keys from any origin")
	}
	if c.Security.HandshakeRateLimit < 0 {
		return fmt.Errorf("HANDSHAKE_RATE_LIMIT must not be negative (0 disables)")
	}
	if c.Security.HandshakeRateLimit > 0 && c.Security.HandshakeWindow < time.Second {
		return fmt.Errorf("HANDSHAKE_WINDOW must be at least 1s")
	}
	return nil
}

func (c *Config) hasWildcardCORS() bool {
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

// ShouldWarnAboutCORS reports whether a wildcard CORS policy should be
// logged at startup.
func (c *Config) ShouldWarnAboutCORS() bool {
	return c.IsProduction() && c.hasWildcardCORS()
}

func (c *Config) validateLogging() error {
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error")
	}
	if c.Logging.Format != "" && !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("LOG_FORMAT must be one of: json, console")
	}
	return nil
}

// placeholderPatterns indicate a value that was never replaced.
var placeholderPatterns = []string{
	"REPLACE",
	"CHANGEME",
	"CHANGE_ME",
	"YOUR_KEY",
	"PLACEHOLDER",
	"EXAMPLE",
}

func containsPlaceholder(value string) bool {
	upper := strings.ToUpper(value)
	for _, pattern := range placeholderPatterns {
		if strings.Contains(upper, pattern) {
			return true
		}
	}
	return false
}
