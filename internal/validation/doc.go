// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package validation wraps go-playground/validator v10 with a process-wide
// validator instance and the Velyx-specific tags:
//
//   - topic: a public topic name (see package topic)
//   - appid: 1-64 characters of [A-Za-z0-9_-]
//
// Field names in messages come from `json` tags, so a missing publish topic
// reads "topic is required".
//
//	type PublishRequest struct {
//	    Topic   string          `json:"topic" validate:"required,topic"`
//	    Payload json.RawMessage `json:"payload" validate:"required"`
//	}
//
// RequestValidationError.ToProtocolError maps failures into the error
// taxonomy of package protocol.
package validation
