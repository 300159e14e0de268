// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestMaskCredential(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", "****"},
		{"short", "****"},
		{"12345678", "****"},
		{"vx_live_abcdef123456", "vx_l****"},
	}
	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSecurityLogger_PublishRejectedNeverLogsKey(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	l.LogPublishRejected("vx_live_supersecretkey", "10.0.0.1", "unknown key")

	output := buf.String()
	if strings.Contains(output, "supersecretkey") {
		t.Errorf("raw key leaked into log: %s", output)
	}
	for _, want := range []string{`"event":"publish_auth_failed"`, `"status":"failed"`, `"credential":"vx_l****"`, `"reason":"unknown key"`, `"component":"auth"`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSecurityLogger_Handshake(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	l.LogHandshake("app1", "10.0.0.2", strings.Repeat("a", 150), true, "")
	output := buf.String()
	if !strings.Contains(output, `"status":"success"`) || !strings.Contains(output, `"app_id":"app1"`) {
		t.Errorf("unexpected handshake log: %s", output)
	}
	if strings.Contains(output, strings.Repeat("a", 101)) {
		t.Errorf("user agent not truncated: %s", output)
	}
}

func TestSecurityLogger_RateLimited(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewSecurityLoggerWithLogger(zerolog.New(&buf))

	l.LogRateLimited("app1", "10.0.0.3")
	if !strings.Contains(buf.String(), `"event":"publish_rate_limited"`) {
		t.Errorf("unexpected output: %s", buf.String())
	}
}
