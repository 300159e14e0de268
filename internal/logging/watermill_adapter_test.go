// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/rs/zerolog"
)

var _ watermill.LoggerAdapter = (*WatermillAdapter)(nil)

func TestWatermillAdapter_Levels(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	a := NewWatermillAdapterWithLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))

	a.Error("publish failed", errors.New("nats: connection closed"), watermill.LogFields{"subject": "velyx.fanout.x"})
	output := buf.String()
	if !strings.Contains(output, `"level":"error"`) || !strings.Contains(output, "nats: connection closed") {
		t.Errorf("unexpected error output: %s", output)
	}
	if !strings.Contains(output, `"subject":"velyx.fanout.x"`) {
		t.Errorf("missing field: %s", output)
	}

	buf.Reset()
	a.Info("subscribed", nil)
	if !strings.Contains(buf.String(), `"level":"info"`) {
		t.Errorf("unexpected info output: %s", buf.String())
	}
}

func TestWatermillAdapter_With(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := NewWatermillAdapterWithLogger(zerolog.New(&buf))
	child := base.With(watermill.LogFields{"node_id": "node-a"})

	child.Info("message received", watermill.LogFields{"uuid": "m1"})
	output := buf.String()
	if !strings.Contains(output, `"node_id":"node-a"`) || !strings.Contains(output, `"uuid":"m1"`) {
		t.Errorf("expected inherited and call fields: %s", output)
	}

	buf.Reset()
	base.Info("plain", nil)
	if strings.Contains(buf.String(), "node_id") {
		t.Errorf("With must not mutate the parent: %s", buf.String())
	}
}
