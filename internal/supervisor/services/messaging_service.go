// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package services

import (
	"context"
)

// ContextManager matches *websocket.Manager's RunWithContext method.
type ContextManager interface {
	RunWithContext(ctx context.Context) error
}

// ConnectionManagerService wraps the WebSocket connection manager.
//
// On cancellation the manager sends every client a 1001 close frame and
// releases its subscriptions.
type ConnectionManagerService struct {
	manager ContextManager
	name    string
}

// NewConnectionManagerService creates a new connection manager wrapper.
func NewConnectionManagerService(manager ContextManager) *ConnectionManagerService {
	return &ConnectionManagerService{
		manager: manager,
		name:    "connection-manager",
	}
}

// Serve implements suture.Service.
func (s *ConnectionManagerService) Serve(ctx context.Context) error {
	return s.manager.RunWithContext(ctx)
}

// String implements fmt.Stringer.
func (s *ConnectionManagerService) String() string {
	return s.name
}

// Runner is a component that blocks in Run until ctx is canceled.
// Satisfied by *fanout.Engine.
type Runner interface {
	Run(ctx context.Context) error
}

// FanoutService wraps the fan-out engine's worker pool.
type FanoutService struct {
	engine Runner
	name   string
}

// NewFanoutService creates a new fan-out engine wrapper.
func NewFanoutService(engine Runner) *FanoutService {
	return &FanoutService{
		engine: engine,
		name:   "fanout-engine",
	}
}

// Serve implements suture.Service.
func (s *FanoutService) Serve(ctx context.Context) error {
	return s.engine.Run(ctx)
}

// String implements fmt.Stringer.
func (s *FanoutService) String() string {
	return s.name
}
