// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package main is the entry point for the Velyx server.

Velyx routes events from backend publishers to WebSocket subscribers.
Publishers POST JSON events with an API key; subscribers connect with
their public app ID, subscribe to topics, and receive every event
published to those topics within their own app.

# Application Architecture

	RootSupervisor ("velyx")
	├── ClusterSupervisor ("cluster-layer")
	│   ├── Embedded NATS server (cluster.embedded)
	│   └── Cluster bridge (cluster.enabled)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── Connection manager
	│   └── Fan-out engine
	└── APISupervisor ("api-layer")
	    └── HTTP server (/publish, /ws, /health, /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, YAML file and environment
 2. Logging: zerolog, with log level reload on config file change
 3. Key registry: BadgerDB or remote key service, behind a TTL cache
 4. Subscription index and connection manager
 5. Fan-out engine
 6. Cluster bridge (optional): NATS via Watermill, embedded or external
 7. HTTP server: chi router and middleware
 8. Supervisor tree

# Endpoints

	POST /publish        x-api-key header, {"topic": "...", "payload": ...}
	GET  /ws?appId=...   WebSocket gateway
	GET  /health         liveness
	GET  /health/ready   readiness (key registry, cluster bridge)
	GET  /stats          connection and fan-out counters
	GET  /metrics        Prometheus metrics

# Signal Handling

On SIGINT or SIGTERM the HTTP server stops accepting requests and drains
in-flight publishes, every WebSocket client receives a 1001 close frame,
the fan-out workers stop, and the cluster bridge disconnects.

# Example Usage

	export KEYS_SEED="demo-app:sk_live_demo"
	export KEYS_IN_MEMORY=true
	./velyx

	curl -H 'x-api-key: sk_live_demo' -d '{"topic":"orders","payload":{"id":1}}' \
	  http://localhost:8080/publish
*/
package main
