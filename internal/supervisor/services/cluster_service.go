// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/velyx/internal/logging"
)

// ClusterBridge matches *cluster.Bridge.
type ClusterBridge interface {
	Run(ctx context.Context) error
	Close() error
}

// ClusterBridgeService runs the NATS subscription loop of the cluster
// bridge. A failed subscription returns an error so suture restarts it
// with backoff. The bridge is closed once, when the tree shuts down.
type ClusterBridgeService struct {
	bridge ClusterBridge
	name   string
}

// NewClusterBridgeService creates a new cluster bridge wrapper.
func NewClusterBridgeService(bridge ClusterBridge) *ClusterBridgeService {
	return &ClusterBridgeService{
		bridge: bridge,
		name:   "cluster-bridge",
	}
}

// Serve implements suture.Service.
func (s *ClusterBridgeService) Serve(ctx context.Context) error {
	err := s.bridge.Run(ctx)

	if ctx.Err() != nil {
		if closeErr := s.bridge.Close(); closeErr != nil {
			logging.Warn().Err(closeErr).Str("service", s.name).Msg("cluster bridge close failed")
		}
		return ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("cluster bridge stopped: %w", err)
	}
	return nil
}

// String implements fmt.Stringer.
func (s *ClusterBridgeService) String() string {
	return s.name
}

// NATSServer matches *cluster.EmbeddedServer.
type NATSServer interface {
	IsRunning() bool
	Shutdown(ctx context.Context) error
}

// EmbeddedNATSService owns the lifecycle of an in-process NATS server that
// was started before the tree. It shuts the server down on cancellation.
// A server that dies on its own cannot be restarted in place, so the
// service then asks suture not to restart it.
type EmbeddedNATSService struct {
	server          NATSServer
	shutdownTimeout time.Duration
	checkInterval   time.Duration
	name            string
}

// NewEmbeddedNATSService creates a new embedded NATS wrapper.
func NewEmbeddedNATSService(server NATSServer, shutdownTimeout time.Duration) *EmbeddedNATSService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}
	return &EmbeddedNATSService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		checkInterval:   time.Second,
		name:            "embedded-nats",
	}
}

// Serve implements suture.Service.
func (s *EmbeddedNATSService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
			defer cancel()
			if err := s.server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("embedded NATS shutdown failed: %w", err)
			}
			return ctx.Err()
		case <-ticker.C:
			if !s.server.IsRunning() {
				logging.Error().Str("service", s.name).Msg("embedded NATS server stopped unexpectedly")
				return suture.ErrDoNotRestart
			}
		}
	}
}

// String implements fmt.Stringer.
func (s *EmbeddedNATSService) String() string {
	return s.name
}
