// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

/*
Package websocket manages live subscriber connections.

The Manager owns every Connection. Other components (the fan-out engine, the
subscription index) refer to connections by ID only.

Key Components:

  - Manager: registers, tracks and tears down connections
  - Connection: one WebSocket session with a bounded outbound queue
  - NewUpgrader: gorilla/websocket upgrader with an origin allow-list

Each connection runs three goroutines:

  - readPump: parses subscribe/unsubscribe frames in arrival order
  - writePump: the only writer of data frames; exits on teardown
  - heartbeat: protocol ping/pong, see package heartbeat

Backpressure:

Send never blocks. When a connection's queue (default 256 frames) is full the
connection is closed with 1008 and all its subscriptions are removed. A slow
subscriber therefore never delays delivery to others.

Teardown:

Unregister is idempotent. The first call removes the connection's
subscriptions from the index before returning; the socket itself is closed by
the write pump. Frames still queued are discarded, except after an
unparseable frame, where the error frame is flushed before the 1003 close.

Usage Example:

	index := subscription.New(64)
	manager := websocket.NewManager(websocket.DefaultConfig(), index)
	go manager.RunWithContext(ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
	    return
	}
	if _, err := manager.Register(conn, appID); err != nil {
	    logging.Warn().Err(err).Msg("register failed")
	}
*/
package websocket
