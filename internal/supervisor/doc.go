// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package supervisor provides process supervision for Velyx using suture v4.

Long-running components run under a hierarchical supervisor tree with
automatic restart, failure isolation and graceful shutdown.

# Overview

	RootSupervisor ("velyx")
	├── ClusterSupervisor ("cluster-layer")
	│   ├── EmbeddedNATSService (cluster.embedded only)
	│   └── ClusterBridgeService (cluster.enabled only)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── ConnectionManagerService
	│   └── FanoutService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

A NATS outage restarts the bridge inside the cluster layer. Local
subscribers keep receiving events published to this node meanwhile.

# Logging

Supervisor events (service start, failure, backoff, restart) are logged
through sutureslog, bridged into zerolog by logging.NewSlogLogger.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddMessagingService(services.NewFanoutService(engine))
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
	    return err
	}

See also internal/supervisor/services for the service wrappers.
*/
package supervisor
