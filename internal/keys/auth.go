// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package keys

import (
	"context"
	"errors"

	"github.com/tomtom215/velyx/internal/protocol"
)

// AuthenticateKey resolves a secret API key to its app. The public app ID is
// not accepted here. Rejections are *protocol.AuthError.
func AuthenticateKey(ctx context.Context, reg Registry, apiKey string) (string, error) {
	if apiKey == "" {
		return "", &protocol.AuthError{Reason: "Invalid API key"}
	}
	res, err := reg.ResolveAppID(ctx, apiKey)
	if err != nil {
		return "", authFailure("Invalid API key", err)
	}
	if !res.Secret {
		return "", &protocol.AuthError{Reason: "Invalid API key"}
	}
	return checkRevoked(ctx, reg, res.AppID, "Invalid API key")
}

// AuthenticateApp checks a WebSocket handshake credential. appID must name a
// registered app; when allowKey is set an API key is accepted in its place.
func AuthenticateApp(ctx context.Context, reg Registry, credential string, allowKey bool) (string, error) {
	const reason = "Invalid app ID"
	if credential == "" {
		return "", &protocol.AuthError{Reason: reason}
	}
	res, err := reg.ResolveAppID(ctx, credential)
	if err != nil {
		return "", authFailure(reason, err)
	}
	if res.Secret && !allowKey {
		return "", &protocol.AuthError{Reason: reason}
	}
	return checkRevoked(ctx, reg, res.AppID, reason)
}

func checkRevoked(ctx context.Context, reg Registry, appID, reason string) (string, error) {
	revoked, err := reg.IsRevoked(ctx, appID)
	if err != nil {
		return "", authFailure(reason, err)
	}
	if revoked {
		return "", &protocol.AuthError{Reason: reason, Err: errors.New("app revoked")}
	}
	return appID, nil
}

// authFailure maps a registry error. Unknown credentials are an AuthError; a
// registry outage is an InternalError so it is never reported as a bad key.
func authFailure(reason string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return &protocol.AuthError{Reason: reason, Err: err}
	}
	return &protocol.InternalError{Err: err}
}
