// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package cluster spreads published events across Velyx nodes over NATS.
//
// A single node keeps subscriptions in memory, so an event published to node
// A would never reach a subscriber connected to node B. The Bridge closes
// that gap: every event accepted by the local fan-out engine is relayed on
// the subject
//
//	<prefix>.app:<appId>:<topic>
//
// and every node listens on <prefix>.> and hands events from other nodes to
// its own subscribers.
//
// # Transport
//
// The bridge uses Watermill's NATS publisher and subscriber with JetStream
// disabled. Delivery is best-effort: an event relayed while a node is
// disconnected is lost for that node, matching the at-most-once contract of
// the WebSocket side. Relays go through a circuit breaker so a bus outage
// costs one rejected call per publish instead of a blocked request.
//
// Watermill messages carry two metadata entries:
//
//	origin  node ID of the publishing node, used to drop local echoes
//	topic   namespaced topic the event was published to
//
// # Embedded Server
//
// EmbeddedServer runs nats-server in process for deployments that want a
// single binary. Other nodes can connect to it like to any NATS server.
//
//	srv, err := cluster.NewEmbeddedServer(cluster.EmbeddedConfig{Host: "0.0.0.0", Port: 4222})
//	bridge, err := cluster.New(cluster.Config{URL: srv.ClientURL()}, engine.DeliverRemote)
//	go bridge.Run(ctx)
package cluster
