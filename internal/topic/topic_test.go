// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package topic

import (
	"errors"
	"strings"
	"testing"

	"github.com/tomtom215/velyx/internal/protocol"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		wantErr bool
	}{
		{"simple", "chat:room-42", false},
		{"hierarchical", "stock:prices:AAPL", false},
		{"underscore", "orders:status:ord_123456", false},
		{"single char", "a", false},
		{"exactly max length", strings.Repeat("a", MaxLength), false},
		{"one over max length", strings.Repeat("a", MaxLength+1), true},
		{"empty", "", true},
		{"space", "chat room", true},
		{"dot", "chat.room", true},
		{"slash", "chat/room", true},
		{"wildcard", "chat:*", true},
		{"unicode", "chat:café", true},
		{"newline", "chat\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			}
			if err != nil {
				var invalid *protocol.InvalidTopicError
				if !errors.As(err, &invalid) {
					t.Errorf("error type = %T, want *protocol.InvalidTopicError", err)
				}
			}
		})
	}
}

func TestNamespace(t *testing.T) {
	got := Namespace("app1", "chat:room-42")
	if got != "app:app1:chat:room-42" {
		t.Errorf("Namespace() = %q, want %q", got, "app:app1:chat:room-42")
	}

	if Namespace("app1", "chat") == Namespace("app2", "chat") {
		t.Error("different apps must map the same public topic to different keys")
	}
}

func TestValidateAndNamespace(t *testing.T) {
	key, err := ValidateAndNamespace("app1", "chat:room-1")
	if err != nil {
		t.Fatalf("ValidateAndNamespace() error = %v", err)
	}
	if key != "app:app1:chat:room-1" {
		t.Errorf("key = %q", key)
	}

	if _, err := ValidateAndNamespace("app1", "bad topic"); err == nil {
		t.Error("expected error for invalid topic")
	}
}

func TestSplit(t *testing.T) {
	tests := []struct {
		internal  string
		wantApp   string
		wantTopic string
		wantOK    bool
	}{
		{"app:app1:chat:room-42", "app1", "chat:room-42", true},
		{"app:a:b", "a", "b", true},
		{"chat:room-42", "", "", false},
		{"app:app1", "", "", false},
		{"app::chat", "", "", false},
		{"app:app1:", "", "", false},
	}

	for _, tt := range tests {
		app, pub, ok := Split(tt.internal)
		if ok != tt.wantOK || app != tt.wantApp || pub != tt.wantTopic {
			t.Errorf("Split(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tt.internal, app, pub, ok, tt.wantApp, tt.wantTopic, tt.wantOK)
		}
	}
}

func TestSplitRoundTrip(t *testing.T) {
	app, pub, ok := Split(Namespace("tenant_7", "game:lobby-premium"))
	if !ok || app != "tenant_7" || pub != "game:lobby-premium" {
		t.Errorf("round trip = (%q, %q, %v)", app, pub, ok)
	}
}
