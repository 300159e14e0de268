// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package protocol

import (
	"github.com/goccy/go-json"
)

// Frame types exchanged over the WebSocket connection.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypeEvent       = "event"
	TypeError       = "error"
)

// ClientFrame is a frame sent by a WebSocket client.
//
// Older client snippets send the frame kind under "action" instead of
// "type"; Kind resolves either.
type ClientFrame struct {
	Type   string `json:"type,omitempty"`
	Action string `json:"action,omitempty"`
	Topic  string `json:"topic"`
}

// Kind returns the frame kind, preferring "type" over "action".
func (f *ClientFrame) Kind() string {
	if f.Type != "" {
		return f.Type
	}
	return f.Action
}

// EventFrame carries a published event to a subscriber.
type EventFrame struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

// ErrorFrame reports a per-connection error to the client.
type ErrorFrame struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Code    ErrorCode `json:"code"`
}

// ParseClientFrame decodes a raw client frame. Any decoding failure is a
// MalformedRequestError.
func ParseClientFrame(data []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, &MalformedRequestError{Reason: "frame must be a JSON object"}
	}
	return &frame, nil
}

// EncodeEvent renders an event frame for the given public topic.
func EncodeEvent(publicTopic string, data json.RawMessage) ([]byte, error) {
	return json.Marshal(EventFrame{
		Type:  TypeEvent,
		Topic: publicTopic,
		Data:  data,
	})
}

// EncodeError renders an error frame for err. Errors outside the taxonomy are
// reported as INTERNAL_ERROR with a generic message.
func EncodeError(err error) []byte {
	coded := AsCoded(err)
	data, mErr := json.Marshal(ErrorFrame{
		Type:    TypeError,
		Message: coded.Error(),
		Code:    coded.Code(),
	})
	if mErr != nil {
		return []byte(`{"type":"error","message":"internal server error","code":"INTERNAL_ERROR"}`)
	}
	return data
}
