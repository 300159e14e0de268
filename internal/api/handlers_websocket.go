// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"errors"
	"net/http"

	"github.com/tomtom215/velyx/internal/keys"
	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/protocol"
)

// WebSocket handles GET /ws?appId=<appId>.
//
// The credential is checked before the upgrade so an unknown or revoked app
// gets a plain 401 JSON response instead of an accepted-then-closed socket.
// With websocket.allow_api_key_handshake enabled, ?apiKey= is accepted as
// well and resolved to its app.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	credential := query.Get("appId")
	logAppID := credential

	allowKey := h.config.WebSocket.AllowAPIKeyHandshake
	if credential == "" && allowKey {
		credential = query.Get("apiKey")
		logAppID = ""
	}

	appID, err := keys.AuthenticateApp(r.Context(), h.registry, credential, allowKey)
	if err != nil {
		outcome := "rejected"
		var authErr *protocol.AuthError
		if !errors.As(err, &authErr) {
			outcome = "error"
		}
		metrics.WSHandshakes.WithLabelValues(outcome).Inc()
		h.security.LogHandshake(logAppID, clientIP(r), r.UserAgent(), false, err.Error())
		respondError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		metrics.WSHandshakes.WithLabelValues("upgrade_failed").Inc()
		logging.Ctx(r.Context()).Warn().Err(err).Str("app_id", appID).Msg("websocket upgrade failed")
		return
	}

	if _, err := h.manager.Register(conn, appID); err != nil {
		metrics.WSHandshakes.WithLabelValues("shutting_down").Inc()
		logging.Ctx(r.Context()).Info().Err(err).Str("app_id", appID).Msg("websocket refused during shutdown")
		return
	}

	metrics.WSHandshakes.WithLabelValues("accepted").Inc()
	h.security.LogHandshake(appID, clientIP(r), r.UserAgent(), true, "")
}
