// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/velyx/internal/cluster"
	"github.com/tomtom215/velyx/internal/config"
	"github.com/tomtom215/velyx/internal/fanout"
	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/supervisor"
	"github.com/tomtom215/velyx/internal/supervisor/services"
)

// initCluster starts the optional embedded NATS server and the cluster
// bridge, registers them with the tree and routes the engine's relay
// through the bridge. It returns nil when clustering is disabled.
func initCluster(cfg *config.Config, engine *fanout.Engine, tree *supervisor.SupervisorTree) (*cluster.Bridge, error) {
	if !cfg.Cluster.Enabled {
		logging.Info().Msg("Cluster mode disabled, fan-out is node-local")
		return nil, nil
	}

	bridgeCfg := cluster.ConfigFrom(&cfg.Cluster)

	var embedded *cluster.EmbeddedServer
	if cfg.Cluster.Embedded {
		var err error
		embedded, err = cluster.NewEmbeddedServer(cluster.EmbeddedConfig{
			Host:         cfg.Cluster.EmbeddedHost,
			Port:         cfg.Cluster.EmbeddedPort,
			StartTimeout: 30 * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		bridgeCfg.URL = embedded.ClientURL()
	}

	bridge, err := cluster.New(bridgeCfg, engine.DeliverRemote)
	if err != nil {
		if embedded != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = embedded.Shutdown(ctx)
			cancel()
		}
		return nil, err
	}
	engine.SetRelay(bridge)

	if embedded != nil {
		tree.AddClusterService(services.NewEmbeddedNATSService(embedded, 5*time.Second))
	}
	tree.AddClusterService(services.NewClusterBridgeService(bridge))

	logging.Info().
		Str("node_id", bridge.NodeID()).
		Str("url", bridgeCfg.URL).
		Bool("embedded", embedded != nil).
		Msg("Cluster bridge initialized")

	return bridge, nil
}
