// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package protocol

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode identifies an error class on the wire. It is sent in WebSocket
// error frames and used to pick the HTTP status on the publish path.
type ErrorCode string

const (
	CodeAuth               ErrorCode = "AUTH_ERROR"
	CodeInvalidTopic       ErrorCode = "INVALID_TOPIC"
	CodeInvalidPayload     ErrorCode = "INVALID_PAYLOAD"
	CodePayloadTooLarge    ErrorCode = "PAYLOAD_TOO_LARGE"
	CodeRateLimited        ErrorCode = "RATE_LIMITED"
	CodeMalformedRequest   ErrorCode = "MALFORMED_REQUEST"
	CodeSubscriptionLimit  ErrorCode = "SUBSCRIPTION_LIMIT"
	CodeUnknownMessageType ErrorCode = "UNKNOWN_MESSAGE_TYPE"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// CodedError is implemented by every error in the Velyx taxonomy.
type CodedError interface {
	error
	Code() ErrorCode
	HTTPStatus() int
}

// AuthError reports a missing, unknown or revoked credential.
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Reason == "" {
		return "authentication failed"
	}
	return e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }
func (e *AuthError) Code() ErrorCode { return CodeAuth }
func (e *AuthError) HTTPStatus() int { return http.StatusUnauthorized }

// InvalidTopicError reports a topic that is empty, too long or contains
// characters outside [A-Za-z0-9:_-].
type InvalidTopicError struct {
	Topic  string
	Reason string
}

func (e *InvalidTopicError) Error() string {
	return fmt.Sprintf("invalid topic: %s", e.Reason)
}

func (e *InvalidTopicError) Code() ErrorCode { return CodeInvalidTopic }
func (e *InvalidTopicError) HTTPStatus() int { return http.StatusBadRequest }

// InvalidPayloadError reports a payload that is not well-formed JSON.
type InvalidPayloadError struct {
	Reason string
}

func (e *InvalidPayloadError) Error() string {
	if e.Reason == "" {
		return "payload must be valid JSON"
	}
	return e.Reason
}

func (e *InvalidPayloadError) Code() ErrorCode { return CodeInvalidPayload }
func (e *InvalidPayloadError) HTTPStatus() int { return http.StatusBadRequest }

// PayloadTooLargeError reports a payload above the configured byte limit.
type PayloadTooLargeError struct {
	Size  int
	Limit int
}

func (e *PayloadTooLargeError) Error() string {
	return "Payload size exceeds " + formatLimit(e.Limit) + " limit"
}

// formatLimit renders a byte limit in the largest whole unit. Zero is the
// default 1 MB limit.
func formatLimit(limit int) string {
	const mb = 1 << 20
	switch {
	case limit <= 0:
		return "1 MB"
	case limit%mb == 0:
		return fmt.Sprintf("%d MB", limit/mb)
	case limit%1024 == 0:
		return fmt.Sprintf("%d KB", limit/1024)
	default:
		return fmt.Sprintf("%d bytes", limit)
	}
}

func (e *PayloadTooLargeError) Code() ErrorCode { return CodePayloadTooLarge }
func (e *PayloadTooLargeError) HTTPStatus() int { return http.StatusRequestEntityTooLarge }

// RateLimitError reports a publish rejected by the per-key limiter.
// RetryAfter is the whole number of seconds the caller should wait.
type RateLimitError struct {
	RetryAfter int
}

func (e *RateLimitError) Error() string { return "Rate limit exceeded" }
func (e *RateLimitError) Code() ErrorCode { return CodeRateLimited }
func (e *RateLimitError) HTTPStatus() int { return http.StatusTooManyRequests }

// MalformedRequestError reports a request or frame missing required fields
// or failing to parse.
type MalformedRequestError struct {
	Reason string
}

func (e *MalformedRequestError) Error() string {
	if e.Reason == "" {
		return "malformed request"
	}
	return e.Reason
}

func (e *MalformedRequestError) Code() ErrorCode { return CodeMalformedRequest }
func (e *MalformedRequestError) HTTPStatus() int { return http.StatusBadRequest }

// SubscriptionLimitError reports a subscribe beyond the per-connection cap.
type SubscriptionLimitError struct {
	Limit int
}

func (e *SubscriptionLimitError) Error() string {
	return fmt.Sprintf("subscription limit of %d topics reached", e.Limit)
}

func (e *SubscriptionLimitError) Code() ErrorCode { return CodeSubscriptionLimit }
func (e *SubscriptionLimitError) HTTPStatus() int { return http.StatusBadRequest }

// UnknownMessageTypeError reports a client frame whose type is not
// subscribe or unsubscribe.
type UnknownMessageTypeError struct {
	Type string
}

func (e *UnknownMessageTypeError) Error() string {
	if e.Type == "" {
		return "message type is required"
	}
	return fmt.Sprintf("unknown message type %q", e.Type)
}

func (e *UnknownMessageTypeError) Code() ErrorCode { return CodeUnknownMessageType }
func (e *UnknownMessageTypeError) HTTPStatus() int { return http.StatusBadRequest }

// InternalError wraps an unexpected failure. Its message is generic so that
// internals never leak to clients; the wrapped error is for logs only.
type InternalError struct {
	Err error
}

func (e *InternalError) Error() string { return "internal server error" }
func (e *InternalError) Unwrap() error { return e.Err }
func (e *InternalError) Code() ErrorCode { return CodeInternal }
func (e *InternalError) HTTPStatus() int { return http.StatusInternalServerError }

// AsCoded converts any error into a CodedError. Errors outside the taxonomy
// become an InternalError.
func AsCoded(err error) CodedError {
	if err == nil {
		return nil
	}
	var coded CodedError
	if errors.As(err, &coded) {
		return coded
	}
	return &InternalError{Err: err}
}
