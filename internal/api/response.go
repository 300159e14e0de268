// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/protocol"
)

// PublishResponse is the body of a successful POST /publish.
type PublishResponse struct {
	Success bool   `json:"success"`
	Topic   string `json:"topic"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error"`
	Code       protocol.ErrorCode `json:"code,omitempty"`
	RetryAfter int                `json:"retryAfter,omitempty"`
	RequestID  string             `json:"requestId,omitempty"`
}

// writeJSON writes data with the given status.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to encode JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError maps err onto its HTTP status. Errors outside the protocol
// taxonomy are logged and reported as a generic 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	coded := protocol.AsCoded(err)

	resp := ErrorResponse{
		Success:   false,
		Error:     coded.Error(),
		Code:      coded.Code(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}

	var rl *protocol.RateLimitError
	if errors.As(err, &rl) {
		resp.RetryAfter = rl.RetryAfter
		w.Header().Set("Retry-After", strconv.Itoa(rl.RetryAfter))
	}

	if coded.HTTPStatus() >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}

	writeJSON(w, coded.HTTPStatus(), resp)
}
