// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/velyx/internal/api"
	"github.com/tomtom215/velyx/internal/config"
	"github.com/tomtom215/velyx/internal/fanout"
	"github.com/tomtom215/velyx/internal/keys"
	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/subscription"
	"github.com/tomtom215/velyx/internal/supervisor"
	"github.com/tomtom215/velyx/internal/supervisor/services"
	ws "github.com/tomtom215/velyx/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// The node ID is fixed here so log records and cluster messages agree.
	if cfg.Cluster.Enabled && cfg.Cluster.NodeID == "" {
		cfg.Cluster.NodeID = uuid.NewString()
	}

	logging.Init(logging.Config{
		Level:                 cfg.Logging.Level,
		Format:                cfg.Logging.Format,
		Caller:                cfg.Logging.Caller,
		Timestamp:             true,
		Output:                os.Stderr,
		NodeID:                cfg.Cluster.NodeID,
		ConnectionDebugSample: cfg.Logging.ConnectionDebugSample,
	})
	watchLogLevel()

	logging.Info().
		Str("version", version).
		Str("addr", cfg.Server.Addr()).
		Str("environment", cfg.Server.Environment).
		Str("key_backend", cfg.Keys.Backend).
		Bool("cluster", cfg.Cluster.Enabled).
		Msg("Starting Velyx")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin in production; set CORS_ORIGINS")
	}

	startedAt := time.Now()
	metrics.SetAppInfo(version)
	uptimeStop := make(chan struct{})
	defer close(uptimeStop)
	go metrics.StartUptime(startedAt, 15*time.Second, uptimeStop)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry, closeRegistry, err := keys.Open(ctx, &cfg.Keys)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open key registry")
	}
	defer func() {
		if err := closeRegistry(); err != nil {
			logging.Error().Err(err).Msg("Error closing key registry")
		}
	}()

	index := subscription.New(cfg.Subscription.Shards)
	manager := ws.NewManager(ws.Config{
		SendQueueSize:    cfg.WebSocket.SendQueueSize,
		MaxMessageSize:   cfg.WebSocket.MaxMessageSize,
		WriteWait:        cfg.WebSocket.WriteWait,
		PingInterval:     cfg.WebSocket.PingInterval,
		PongTimeout:      cfg.WebSocket.PongTimeout,
		MaxSubscriptions: cfg.WebSocket.MaxSubscriptions,
	}, index)

	engine := fanout.New(fanout.Config{
		Workers:         cfg.Fanout.Workers,
		QueueSize:       cfg.Fanout.QueueSize,
		MaxPayloadBytes: cfg.Publish.MaxPayloadBytes,
	}, index, manager)

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	handler := api.NewHandler(cfg, registry, engine, manager)
	handler.SetVersion(version)
	defer handler.Close()

	// The bridge must be wired to the engine before any worker runs.
	bridge, err := initCluster(cfg, engine, tree)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize cluster bridge")
	}
	if bridge != nil {
		handler.SetCluster(bridge)
	}

	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Security.CORSOrigins,
		CORSAllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		CORSAllowedHeaders: []string{"Content-Type", "X-Api-Key", "X-Request-ID"},
		CORSMaxAge:         300,
		HandshakeRequests:  cfg.Security.HandshakeRateLimit,
		HandshakeWindow:    cfg.Security.HandshakeWindow,
	}, logging.NewSecurityLogger())
	router := api.NewRouter(handler, mw)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	tree.AddMessagingService(services.NewConnectionManagerService(manager))
	tree.AddMessagingService(services.NewFanoutService(engine))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		treeErr = <-errCh
	case treeErr = <-errCh:
	}
	if treeErr != nil && !errors.Is(treeErr, context.Canceled) {
		logging.Error().Err(treeErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	manager.Wait()
	logging.Info().Dur("uptime", time.Since(startedAt)).Msg("Velyx stopped")
}

// watchLogLevel re-applies logging.level when the config file changes.
// Other settings need a restart.
func watchLogLevel() {
	path := config.FindConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		cfg, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		logging.SetLevelString(cfg.Logging.Level)
		logging.Info().Str("level", cfg.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}
