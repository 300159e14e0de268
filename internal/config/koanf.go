// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths searched for a config file, in order.
// The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/velyx/config.yaml",
	"/etc/velyx/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns the built-in defaults. They are loaded first and then
// overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		WebSocket: WebSocketConfig{
			SendQueueSize:        256,
			MaxMessageSize:       64 * 1024,
			WriteWait:            10 * time.Second,
			PingInterval:         30 * time.Second,
			PongTimeout:          10 * time.Second,
			MaxSubscriptions:     1000,
			AllowAPIKeyHandshake: false,
			AllowedOrigins:       []string{"*"},
		},
		Publish: PublishConfig{
			MaxPayloadBytes: 1 << 20, // 1 MB
			RateLimit:       10000,
			RateBurst:       10000,
			LimiterTTL:      time.Minute,
		},
		Fanout: FanoutConfig{
			Workers:   0,
			QueueSize: 1024,
		},
		Subscription: SubscriptionConfig{
			Shards: 64,
		},
		Keys: KeysConfig{
			Backend:            "badger",
			BadgerPath:         "/data/velyx/keys",
			InMemory:           false,
			RemoteTimeout:      2 * time.Second,
			BreakerFailures:    5,
			BreakerTimeout:     30 * time.Second,
			CacheTTL:           time.Minute,
			NegativeCacheTTL:   5 * time.Second,
			RevocationCacheTTL: 10 * time.Second,
			CacheCapacity:      100000,
		},
		Cluster: ClusterConfig{
			Enabled:        false,
			URL:            "nats://127.0.0.1:4222",
			Embedded:       false,
			EmbeddedHost:   "127.0.0.1",
			EmbeddedPort:   4222,
			SubjectPrefix:  "velyx.fanout",
			MaxReconnects:  -1, // unlimited
			ReconnectWait:  2 * time.Second,
			BreakerTimeout: 10 * time.Second,
		},
		Security: SecurityConfig{
			CORSOrigins:        []string{"*"},
			HandshakeRateLimit: 60,
			HandshakeWindow:    time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration with koanf v2 from three layers:
//  1. Defaults
//  2. Config file (if one exists)
//  3. Environment variables
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// HTTP_PORT -> server.port, KEYS_SEED -> keys.seed, ...
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// FindConfigFile returns the config file that LoadWithKoanf would read, or "".
func FindConfigFile() string {
	return findConfigFile()
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths are parsed as comma-separated lists when they come from
// the environment.
var sliceConfigPaths = []string{
	"websocket.allowed_origins",
	"security.cors_origins",
	"keys.seed",
	"keys.revoked",
}

// processSliceFields converts comma-separated string values to slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok {
			continue
		}

		trimmed := make([]string, 0)
		for _, p := range strings.Split(strVal, ",") {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lowercased environment variable names to config paths.
var envMappings = map[string]string{
	// Server
	"http_host":          "server.host",
	"http_port":          "server.port",
	"http_read_timeout":  "server.read_timeout",
	"http_write_timeout": "server.write_timeout",
	"http_idle_timeout":  "server.idle_timeout",
	"shutdown_timeout":   "server.shutdown_timeout",
	"environment":        "server.environment",

	// WebSocket
	"ws_send_queue_size":         "websocket.send_queue_size",
	"ws_max_message_size":        "websocket.max_message_size",
	"ws_write_wait":              "websocket.write_wait",
	"ws_ping_interval":           "websocket.ping_interval",
	"ws_pong_timeout":            "websocket.pong_timeout",
	"ws_max_subscriptions":       "websocket.max_subscriptions",
	"ws_allow_api_key_handshake": "websocket.allow_api_key_handshake",
	"ws_allowed_origins":         "websocket.allowed_origins",

	// Publish
	"publish_max_payload_bytes": "publish.max_payload_bytes",
	"publish_rate_limit":        "publish.rate_limit",
	"publish_rate_burst":        "publish.rate_burst",
	"publish_limiter_ttl":       "publish.limiter_ttl",

	// Fan-out and index
	"fanout_workers":      "fanout.workers",
	"fanout_queue_size":   "fanout.queue_size",
	"subscription_shards": "subscription.shards",

	// Keys
	"keys_backend":              "keys.backend",
	"keys_badger_path":          "keys.badger_path",
	"keys_in_memory":            "keys.in_memory",
	"keys_remote_url":           "keys.remote_url",
	"keys_remote_token":         "keys.remote_token",
	"keys_remote_timeout":       "keys.remote_timeout",
	"keys_breaker_failures":     "keys.breaker_failures",
	"keys_breaker_timeout":      "keys.breaker_timeout",
	"keys_cache_ttl":            "keys.cache_ttl",
	"keys_negative_cache_ttl":   "keys.negative_cache_ttl",
	"keys_revocation_cache_ttl": "keys.revocation_cache_ttl",
	"keys_cache_capacity":       "keys.cache_capacity",
	"keys_seed":                 "keys.seed",
	"keys_revoked":              "keys.revoked",

	// Cluster
	"nats_enabled":         "cluster.enabled",
	"nats_url":             "cluster.url",
	"nats_embedded":        "cluster.embedded",
	"nats_embedded_host":   "cluster.embedded_host",
	"nats_embedded_port":   "cluster.embedded_port",
	"nats_node_id":         "cluster.node_id",
	"nats_subject_prefix":  "cluster.subject_prefix",
	"nats_max_reconnects":  "cluster.max_reconnects",
	"nats_reconnect_wait":  "cluster.reconnect_wait",
	"nats_breaker_timeout": "cluster.breaker_timeout",

	// Security
	"cors_origins":         "security.cors_origins",
	"handshake_rate_limit": "security.handshake_rate_limit",
	"handshake_window":     "security.handshake_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"log_connection_debug_sample": "logging.connection_debug_sample",
}

// envTransformFunc maps an environment variable name to its config path.
// Unmapped variables return "" and are skipped so unrelated environment
// variables never leak into the configuration.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}

// WatchConfigFile calls callback whenever the file at path changes.
func WatchConfigFile(path string, callback func()) error {
	return file.Provider(path).Watch(func(_ interface{}, err error) {
		if err != nil {
			return
		}
		callback()
	})
}
