// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package protocol defines the Velyx wire protocol and error taxonomy.

# Frames

Clients send JSON frames over the WebSocket connection:

	{ "type": "subscribe",   "topic": "chat:room-42" }
	{ "type": "unsubscribe", "topic": "chat:room-42" }

The server answers with event and error frames:

	{ "type": "event", "topic": "chat:room-42", "data": {"msg": "hi"} }
	{ "type": "error", "message": "invalid topic: ...", "code": "INVALID_TOPIC" }

Ping/pong is handled at the WebSocket protocol layer and never appears as a
JSON frame.

# Errors

Every error returned to a client implements CodedError, which pairs an
ErrorCode with the HTTP status used on the publish endpoint:

	AuthError                AUTH_ERROR            401
	InvalidTopicError        INVALID_TOPIC         400
	InvalidPayloadError      INVALID_PAYLOAD       400
	PayloadTooLargeError     PAYLOAD_TOO_LARGE     413
	RateLimitError           RATE_LIMITED          429
	MalformedRequestError    MALFORMED_REQUEST     400
	SubscriptionLimitError   SUBSCRIPTION_LIMIT    400
	UnknownMessageTypeError  UNKNOWN_MESSAGE_TYPE  400
	InternalError            INTERNAL_ERROR        500

Use AsCoded at a boundary to map an arbitrary error onto the taxonomy.
*/
package protocol
