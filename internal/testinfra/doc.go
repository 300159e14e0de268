// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package testinfra starts real service containers for integration tests.
//
// Everything here is behind the integration build tag and uses
// testcontainers-go, so plain `go test ./...` never needs Docker.
//
//	go test -tags integration ./internal/cluster/... ./internal/testinfra/...
//
// # NATS Container
//
// NATSContainer runs a stock nats-server image so the cluster bridge can be
// exercised against a server it does not embed:
//
//	func TestBridge_ExternalNATS(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    ctx := context.Background()
//	    natsC, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, natsC.Container)
//
//	    bridge, err := cluster.New(cluster.Config{URL: natsC.URL}, deliver)
//	    // ...
//	}
//
// Tests are skipped when Docker is unavailable. The first run downloads the
// image; later runs use the local cache.
package testinfra
