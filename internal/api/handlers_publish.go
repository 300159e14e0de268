// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tomtom215/velyx/internal/keys"
	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/protocol"
	"github.com/tomtom215/velyx/internal/validation"
)

// APIKeyHeader carries the secret publish credential.
const APIKeyHeader = "x-api-key"

// envelopeOverhead is the body allowance above the payload limit for the
// topic and JSON framing. The payload itself is measured by the engine.
const envelopeOverhead = 64 * 1024

var jsonNull = []byte("null")

// PublishRequest is the body of POST /publish.
type PublishRequest struct {
	Topic   string          `json:"topic" validate:"required,topic"`
	Payload json.RawMessage `json:"payload" validate:"required"`
}

// Publish handles POST /publish.
//
// The API key is checked first, then the per-key rate limit, then the body.
// A request with a bad key never reaches the body parser.
func (h *Handler) Publish(w http.ResponseWriter, r *http.Request) {
	apiKey := r.Header.Get(APIKeyHeader)

	appID, err := keys.AuthenticateKey(r.Context(), h.registry, apiKey)
	if err != nil {
		h.rejectPublish(w, r, apiKey, err)
		return
	}

	if err := h.limiter.Allow(apiKey); err != nil {
		metrics.APIRateLimitHits.WithLabelValues("/publish").Inc()
		metrics.RecordPublish(string(protocol.CodeRateLimited), 0, 0)
		h.security.LogRateLimited(appID, clientIP(r))
		respondError(w, r, err)
		return
	}

	req, err := h.decodePublish(w, r)
	if err != nil {
		metrics.RecordPublish(string(protocol.AsCoded(err).Code()), 0, 0)
		respondError(w, r, err)
		return
	}

	delivered, err := h.publisher.Publish(r.Context(), appID, req.Topic, req.Payload)
	if err != nil {
		respondError(w, r, err)
		return
	}

	logging.Ctx(r.Context()).Debug().
		Str("app_id", appID).
		Str("topic", req.Topic).
		Int("delivered", delivered).
		Int("payload_bytes", len(req.Payload)).
		Msg("event published")

	writeJSON(w, http.StatusOK, PublishResponse{Success: true, Topic: req.Topic})
}

func (h *Handler) rejectPublish(w http.ResponseWriter, r *http.Request, apiKey string, err error) {
	var authErr *protocol.AuthError
	if errors.As(err, &authErr) {
		reason := "unknown key"
		if authErr.Err != nil {
			reason = authErr.Err.Error()
		}
		h.security.LogPublishRejected(apiKey, clientIP(r), reason)
	}
	metrics.RecordPublish(string(protocol.AsCoded(err).Code()), 0, 0)
	respondError(w, r, err)
}

// decodePublish reads and validates the body. A body larger than the
// payload limit plus envelope is PayloadTooLargeError.
func (h *Handler) decodePublish(w http.ResponseWriter, r *http.Request) (*PublishRequest, error) {
	limit := int64(h.config.Publish.MaxPayloadBytes) + envelopeOverhead
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var req PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if bodyTooLarge(err, r) {
			return nil, &protocol.PayloadTooLargeError{Limit: h.config.Publish.MaxPayloadBytes}
		}
		return nil, &protocol.MalformedRequestError{Reason: "request body must be a JSON object with topic and payload"}
	}

	// "payload": null is treated as a missing payload.
	if bytes.Equal(bytes.TrimSpace(req.Payload), jsonNull) {
		req.Payload = nil
	}

	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, verr.ToProtocolError()
	}
	return &req, nil
}

// bodyTooLarge reports whether a decode failure was caused by the body
// limit. The decoder may not surface the reader error, but the limited
// reader keeps returning it.
func bodyTooLarge(err error, r *http.Request) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}
	_, readErr := r.Body.Read(make([]byte, 1))
	return errors.As(readErr, &maxErr)
}
