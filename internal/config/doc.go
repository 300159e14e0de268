// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package config loads and validates Velyx configuration.

# Configuration Sources

Settings are layered with koanf v2. Later layers win:
  - Built-in defaults (defaultConfig)
  - A YAML file: $CONFIG_PATH, ./config.yaml, or /etc/velyx/config.yaml
  - Environment variables

Only the environment variables listed in envMappings are read; anything else
in the environment is ignored.

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT (default: 0.0.0.0:8080)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_IDLE_TIMEOUT, SHUTDOWN_TIMEOUT
  - ENVIRONMENT: development, staging, production

WebSocket:
  - WS_SEND_QUEUE_SIZE: per-connection outbound queue (default: 256)
  - WS_PING_INTERVAL, WS_PONG_TIMEOUT: heartbeat (default: 30s, 10s)
  - WS_MAX_SUBSCRIPTIONS: per-connection limit (default: 1000)
  - WS_ALLOW_API_KEY_HANDSHAKE: accept ?apiKey= on /ws (default: false)

Publish:
  - PUBLISH_MAX_PAYLOAD_BYTES (default: 1048576)
  - PUBLISH_RATE_LIMIT, PUBLISH_RATE_BURST: per API key (default: 10000/s)

Keys:
  - KEYS_BACKEND: badger or remote
  - KEYS_SEED: comma-separated appId:apiKey pairs for the embedded store
  - KEYS_REVOKED: comma-separated app IDs to mark revoked
  - KEYS_REMOTE_URL: external key service base URL

Cluster:
  - NATS_ENABLED, NATS_URL, NATS_EMBEDDED, NATS_SUBJECT_PREFIX

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Example

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	srv := &http.Server{Addr: cfg.Server.Addr()}
*/
package config
