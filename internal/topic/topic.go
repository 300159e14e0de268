// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package topic validates public topic names and maps them to the
// per-application internal namespace.
//
// A public topic such as "chat:room-42" published by application "app1"
// lives internally as "app:app1:chat:room-42". Two applications using the
// same public topic therefore never share subscribers.
package topic

import (
	"fmt"
	"strings"

	"github.com/tomtom215/velyx/internal/protocol"
)

// MaxLength is the maximum length of a public topic in characters.
const MaxLength = 256

// namespacePrefix starts every internal topic.
const namespacePrefix = "app:"

// Validate reports whether publicTopic is a legal topic name.
// Allowed characters are ASCII letters, digits, ':', '-' and '_'.
func Validate(publicTopic string) error {
	if publicTopic == "" {
		return &protocol.InvalidTopicError{Topic: publicTopic, Reason: "topic is required"}
	}
	if len(publicTopic) > MaxLength {
		return &protocol.InvalidTopicError{
			Topic:  publicTopic,
			Reason: fmt.Sprintf("topic exceeds %d characters", MaxLength),
		}
	}
	for i := 0; i < len(publicTopic); i++ {
		if !allowed(publicTopic[i]) {
			return &protocol.InvalidTopicError{
				Topic:  publicTopic,
				Reason: fmt.Sprintf("topic contains disallowed character %q", publicTopic[i]),
			}
		}
	}
	return nil
}

func allowed(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == ':', c == '-', c == '_':
		return true
	default:
		return false
	}
}

// Namespace returns the internal topic key for appID and publicTopic.
// It does not validate; callers run Validate first.
func Namespace(appID, publicTopic string) string {
	var b strings.Builder
	b.Grow(len(namespacePrefix) + len(appID) + 1 + len(publicTopic))
	b.WriteString(namespacePrefix)
	b.WriteString(appID)
	b.WriteByte(':')
	b.WriteString(publicTopic)
	return b.String()
}

// ValidateAndNamespace validates publicTopic and returns its internal key.
func ValidateAndNamespace(appID, publicTopic string) (string, error) {
	if err := Validate(publicTopic); err != nil {
		return "", err
	}
	return Namespace(appID, publicTopic), nil
}

// Split reverses Namespace. App IDs never contain ':' so the first separator
// after the prefix ends the app ID.
func Split(internalTopic string) (appID, publicTopic string, ok bool) {
	rest, found := strings.CutPrefix(internalTopic, namespacePrefix)
	if !found {
		return "", "", false
	}
	appID, publicTopic, found = strings.Cut(rest, ":")
	if !found || appID == "" || publicTopic == "" {
		return "", "", false
	}
	return appID, publicTopic, true
}
