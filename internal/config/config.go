// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package config

import (
	"fmt"
	"time"
)

// Config holds all Velyx configuration.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values from defaultConfig
//  2. Config File: optional YAML file (CONFIG_PATH or DefaultConfigPaths)
//  3. Environment Variables: override any mapped setting
//
// Config is immutable after Load and safe for concurrent reads.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	WebSocket    WebSocketConfig    `koanf:"websocket"`
	Publish      PublishConfig      `koanf:"publish"`
	Fanout       FanoutConfig       `koanf:"fanout"`
	Subscription SubscriptionConfig `koanf:"subscription"`
	Keys         KeysConfig         `koanf:"keys"`
	Cluster      ClusterConfig      `koanf:"cluster"`
	Security     SecurityConfig     `koanf:"security"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	Environment     string        `koanf:"environment"` // development, staging, production
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WebSocketConfig holds subscriber connection settings.
type WebSocketConfig struct {
	// SendQueueSize bounds the per-connection outbound queue. A connection
	// whose queue is full when an event arrives is dropped.
	SendQueueSize  int           `koanf:"send_queue_size"`
	MaxMessageSize int64         `koanf:"max_message_size"`
	WriteWait      time.Duration `koanf:"write_wait"`
	PingInterval   time.Duration `koanf:"ping_interval"`
	PongTimeout    time.Duration `koanf:"pong_timeout"`

	// MaxSubscriptions is the per-connection subscription limit.
	MaxSubscriptions int `koanf:"max_subscriptions"`

	// AllowAPIKeyHandshake accepts ?apiKey= on /ws for legacy clients.
	// The key is resolved to its app ID before the upgrade.
	AllowAPIKeyHandshake bool `koanf:"allow_api_key_handshake"`

	// AllowedOrigins restricts the Origin header on upgrade. Empty or "*"
	// accepts any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// PublishConfig holds HTTP publish ingress settings.
type PublishConfig struct {
	MaxPayloadBytes int           `koanf:"max_payload_bytes"`
	RateLimit       float64       `koanf:"rate_limit"` // events per second per API key
	RateBurst       int           `koanf:"rate_burst"`
	LimiterTTL      time.Duration `koanf:"limiter_ttl"` // idle limiter eviction
}

// FanoutConfig sizes the delivery worker pool.
type FanoutConfig struct {
	Workers   int `koanf:"workers"` // 0 = runtime.NumCPU()
	QueueSize int `koanf:"queue_size"`
}

// SubscriptionConfig tunes the subscription index.
type SubscriptionConfig struct {
	Shards int `koanf:"shards"`
}

// KeysConfig selects and tunes the API key registry.
type KeysConfig struct {
	// Backend is "badger" (embedded) or "remote" (HTTP key service).
	Backend string `koanf:"backend"`

	BadgerPath string `koanf:"badger_path"`
	InMemory   bool   `koanf:"in_memory"`

	RemoteURL          string        `koanf:"remote_url"`
	RemoteToken        string        `koanf:"remote_token"`
	RemoteTimeout      time.Duration `koanf:"remote_timeout"`
	BreakerFailures    uint32        `koanf:"breaker_failures"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
	CacheTTL           time.Duration `koanf:"cache_ttl"`
	NegativeCacheTTL   time.Duration `koanf:"negative_cache_ttl"`
	RevocationCacheTTL time.Duration `koanf:"revocation_cache_ttl"`
	CacheCapacity      uint64        `koanf:"cache_capacity"`

	// Seed entries have the form "appId:apiKey" and are written to the
	// embedded store at startup.
	Seed []string `koanf:"seed"`
	// Revoked lists app IDs marked revoked at startup.
	Revoked []string `koanf:"revoked"`
}

// ClusterConfig holds the NATS fan-out bridge settings.
type ClusterConfig struct {
	Enabled        bool          `koanf:"enabled"`
	URL            string        `koanf:"url"`
	Embedded       bool          `koanf:"embedded"`
	EmbeddedHost   string        `koanf:"embedded_host"`
	EmbeddedPort   int           `koanf:"embedded_port"`
	NodeID         string        `koanf:"node_id"` // generated when empty
	SubjectPrefix  string        `koanf:"subject_prefix"`
	MaxReconnects  int           `koanf:"max_reconnects"`
	ReconnectWait  time.Duration `koanf:"reconnect_wait"`
	BreakerTimeout time.Duration `koanf:"breaker_timeout"`
}

// SecurityConfig holds CORS and handshake throttling settings.
type SecurityConfig struct {
	CORSOrigins        []string      `koanf:"cors_origins"`
	HandshakeRateLimit int           `koanf:"handshake_rate_limit"` // upgrades per window per IP, 0 disables
	HandshakeWindow    time.Duration `koanf:"handshake_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller adds file:line to each entry.
	Caller bool `koanf:"caller"`

	// ConnectionDebugSample keeps one in N per-connection debug entries.
	// 0 keeps all.
	ConnectionDebugSample uint32 `koanf:"connection_debug_sample"`
}

// Load reads configuration from defaults, an optional config file and the
// environment, then validates it.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// IsProduction reports whether ENVIRONMENT=production.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == "" || c.Server.Environment == "development"
}
