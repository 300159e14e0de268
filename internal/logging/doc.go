// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package logging provides zerolog-based structured logging for Velyx.
//
// A single global logger is configured once at startup with Init and used
// everywhere through the package-level helpers:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("app_id", appID).Int("delivered", n).Msg("event published")
//	logging.Ctx(r.Context()).Warn().Err(err).Msg("publish rejected")
//
// # Configuration
//
// Environment Variables (read by the config package):
//
//	LOG_LEVEL   - trace, debug, info, warn, error (default: info)
//	LOG_FORMAT  - json, console (default: json)
//	LOG_CALLER  - include caller file:line (default: false)
//	LOG_CONNECTION_DEBUG_SAMPLE - keep 1 in N per-connection debug entries
//
// # Cluster and Connection Fields
//
// In cluster mode every record carries node_id, the same ID the cluster
// bridge stamps on relayed events, so logs from several nodes can be merged
// and a relayed event traced back to its origin. Loggers from WithConnection
// carry conn_id and app_id; their debug output (subscribe, unsubscribe) is
// the highest-volume stream on a busy node and can be sampled without
// touching warnings or disconnect records.
//
// # Adapters
//
// Two adapters route third-party logging through the global logger:
//
//   - NewSlogLogger returns a *slog.Logger for the suture supervisor tree
//     (via sutureslog).
//   - NewWatermillAdapter returns a watermill.LoggerAdapter for the NATS
//     cluster bridge.
//
// # Security Events
//
// SecurityLogger records publish authentication failures, handshake
// decisions and rate-limit rejections. API keys are never logged in full;
// see MaskCredential.
package logging
