// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package fanout delivers published events to subscribed WebSocket
// connections.
//
// Engine.Publish checks the payload (at most 1 MB, well-formed JSON),
// namespaces the topic under the publishing app, snapshots the subscriber
// set and encodes the event frame once:
//
//	{"type":"event","topic":"<public topic>","data":<payload>}
//
// The frame is queued on a worker chosen by hashing the namespaced topic
// with xxhash, so all events on one topic are delivered by the same worker
// in the order they were accepted. Each delivery is a non-blocking enqueue
// on the connection; a subscriber whose queue is full is disconnected by the
// connection manager and the remaining subscribers are unaffected.
//
// When a Relayer is installed, accepted events are also forwarded to other
// nodes. Events arriving from other nodes enter through DeliverRemote and
// are never relayed again.
package fanout
