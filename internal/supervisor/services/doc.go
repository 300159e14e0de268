// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package services provides suture.Service wrappers for Velyx components.

Each wrapper translates a component's lifecycle (ListenAndServe, Run,
RunWithContext, Start/Shutdown) into suture's context-aware Serve method
and names itself through fmt.Stringer for supervisor logs.

# Available Services

  - HTTPServerService: the HTTP server carrying /publish, /ws and probes
  - ConnectionManagerService: closes WebSocket clients with 1001 on shutdown
  - FanoutService: the fan-out worker pool
  - ClusterBridgeService: the NATS subscription loop for cross-node fan-out
  - EmbeddedNATSService: shutdown of an in-process NATS server

# Usage Example

	tree.AddClusterService(services.NewClusterBridgeService(bridge))
	tree.AddMessagingService(services.NewConnectionManagerService(manager))
	tree.AddMessagingService(services.NewFanoutService(engine))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
*/
package services
