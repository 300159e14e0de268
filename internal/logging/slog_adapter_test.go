// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestSlogHandler_Enabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		zerologLevel zerolog.Level
		slogLevel    slog.Level
		want         bool
	}{
		{"debug logger enables debug", zerolog.DebugLevel, slog.LevelDebug, true},
		{"info logger disables debug", zerolog.InfoLevel, slog.LevelDebug, false},
		{"info logger enables warn", zerolog.InfoLevel, slog.LevelWarn, true},
		{"error logger disables warn", zerolog.ErrorLevel, slog.LevelWarn, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := NewSlogHandlerWithLogger(zerolog.New(nil).Level(tt.zerologLevel))
			if got := h.Enabled(context.Background(), tt.slogLevel); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSlogHandler_Handle(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	logger.Warn("service restarting",
		"service", "fanout-engine",
		"failures", 3,
		"backoff", 15*time.Second,
		"terminal", false,
	)

	output := buf.String()
	for _, want := range []string{
		`"level":"warn"`,
		`"message":"service restarting"`,
		`"service":"fanout-engine"`,
		`"failures":3`,
		`"terminal":false`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewSlogHandlerWithLogger(zerolog.New(&buf))
	logger := slog.New(base.WithGroup("supervisor").WithAttrs([]slog.Attr{slog.String("tree", "velyx")}))

	logger.Info("tree started", "layer", "api")

	output := buf.String()
	if !strings.Contains(output, `"supervisor.tree":"velyx"`) {
		t.Errorf("expected grouped pre-configured attr: %s", output)
	}
	if !strings.Contains(output, `"supervisor.layer":"api"`) {
		t.Errorf("expected grouped record attr: %s", output)
	}

	buf.Reset()
	slog.New(base).Info("plain")
	if strings.Contains(buf.String(), "velyx") {
		t.Errorf("WithAttrs leaked into the parent handler: %s", buf.String())
	}
	if h := base.WithGroup(""); h != base {
		t.Error("WithGroup(\"\") should return the same handler")
	}
}

func TestSlogHandler_ErrorAttr(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	logger.Error("service failed", "service", "cluster-bridge", "err", errors.New("nats: no servers available"))

	output := buf.String()
	if !strings.Contains(output, `"error":"nats: no servers available"`) {
		t.Errorf("expected error lifted to the error field: %s", output)
	}
}

func TestSlogHandler_NestedGroupAttr(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(NewSlogHandlerWithLogger(zerolog.New(&buf)))

	logger.Info("report", slog.Group("queue", slog.Int("depth", 12), slog.Int("cap", 256)))

	output := buf.String()
	if !strings.Contains(output, `"queue.depth":12`) || !strings.Contains(output, `"queue.cap":256`) {
		t.Errorf("expected flattened group keys: %s", output)
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug - 4, zerolog.TraceLevel},
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
		{slog.LevelError + 4, zerolog.ErrorLevel},
	}
	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewSlogLogger(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))

	NewSlogLogger().Info("via global")

	if !strings.Contains(buf.String(), "via global") {
		t.Errorf("expected message routed through global logger: %s", buf.String())
	}
	if !strings.Contains(buf.String(), `"component":"supervisor"`) {
		t.Errorf("expected supervisor component tag: %s", buf.String())
	}
}
