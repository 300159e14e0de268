// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

//go:build integration

package testinfra

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNATSContainer_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	SkipIfNoDocker(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	natsC, err := NewNATSContainer(ctx)
	if err != nil {
		t.Fatalf("Failed to create NATS container: %v", err)
	}
	defer CleanupContainer(t, ctx, natsC.Container)

	t.Logf("NATS container started at: %s", natsC.URL)

	if !strings.HasPrefix(natsC.URL, "nats://") {
		t.Errorf("URL = %q, want nats:// scheme", natsC.URL)
	}

	resp, err := http.Get(natsC.MonitorURL + "/healthz")
	if err != nil {
		logs, _ := natsC.Logs(ctx)
		t.Fatalf("Failed to reach monitor endpoint: %v\nContainer logs:\n%s", err, logs)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	info, err := GetContainerInfo(ctx, natsC.Container)
	if err != nil {
		t.Fatalf("GetContainerInfo() error = %v", err)
	}
	if info.State != "running" {
		t.Errorf("State = %q, want running", info.State)
	}
}
