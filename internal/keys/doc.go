// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package keys resolves credentials to application IDs.
//
// Velyx never issues keys through its public API. Keys come from an external
// key service, or from the embedded BadgerDB store seeded from configuration.
// Two credentials exist per application:
//
//   - appId: public, used by WebSocket clients (GET /ws?appId=...)
//   - apiKey: secret, used by backends (POST /publish, x-api-key header)
//
// # Backends
//
//   - BadgerRegistry: embedded store. API keys are stored only as bcrypt
//     hashes of their SHA-256 digest.
//   - RemoteRegistry: HTTP client for an external key service, behind a
//     circuit breaker.
//
// Both are wrapped in a CachedRegistry so the hot publish path rarely reaches
// the backend. Revocation takes effect once the revocation cache entry
// expires (10s by default).
//
// # Authentication
//
//	appID, err := keys.AuthenticateKey(ctx, registry, r.Header.Get("x-api-key"))
//	if err != nil {
//	    // err is a *protocol.AuthError
//	}
package keys
