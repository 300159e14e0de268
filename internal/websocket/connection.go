// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package websocket

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tomtom215/velyx/internal/heartbeat"
	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/protocol"
)

// Connection is one live WebSocket session. It is owned by the Manager;
// other components refer to it by ID.
type Connection struct {
	id        string
	appID     string
	createdAt time.Time

	conn      *websocket.Conn
	manager   *Manager
	heartbeat *heartbeat.Monitor
	logger    zerolog.Logger

	// send is never closed; the write pump exits on done instead so a
	// late Send can never panic.
	send chan []byte
	done chan struct{}

	closed    atomic.Bool
	closeOnce sync.Once
	cancel    context.CancelFunc

	// Set once by teardown before done is closed.
	closeCode  int
	closeText  string
	flushQueue bool
}

// ID returns the connection identifier.
func (c *Connection) ID() string { return c.id }

// AppID returns the application the connection authenticated as.
func (c *Connection) AppID() string { return c.appID }

// CreatedAt returns when the connection was registered.
func (c *Connection) CreatedAt() time.Time { return c.createdAt }

// LastPong returns when the peer last answered a ping.
func (c *Connection) LastPong() time.Time { return c.heartbeat.LastPong() }

// Closed reports whether the connection has been torn down.
func (c *Connection) Closed() bool { return c.closed.Load() }

// enqueue queues msg without blocking.
func (c *Connection) enqueue(msg []byte) error {
	if c.closed.Load() {
		return ErrConnectionClosed
	}
	select {
	case c.send <- msg:
		return nil
	default:
		return ErrSlowConsumer
	}
}

// teardown runs once per connection. Subscriptions are removed before it
// returns; the socket is closed asynchronously by the write pump.
func (c *Connection) teardown(code int, text string, flush bool) bool {
	first := false
	c.closeOnce.Do(func() {
		first = true
		c.closed.Store(true)
		if removed := c.manager.index.RemoveAllFor(c.id); removed > 0 {
			metrics.WSSubscriptionsActive.Sub(float64(removed))
		}
		c.closeCode = code
		c.closeText = text
		c.flushQueue = flush
		c.cancel()
		close(c.done)
	})
	return first
}

// readPump processes inbound frames in arrival order until the socket fails.
func (c *Connection) readPump() {
	defer c.manager.wg.Done()

	reason := ReasonClientClosed
	defer func() {
		c.manager.unregister(c.id, reason, websocket.CloseNormalClosure, "", false)
	}()

	c.conn.SetReadLimit(c.manager.cfg.MaxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.heartbeat.Pong()
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				reason = ReasonReadError
				c.logger.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}

		if !c.handleFrame(data) {
			reason = ReasonUnsupportedData
			c.manager.unregister(c.id, reason, websocket.CloseUnsupportedData, "unsupported data", true)
			return
		}
	}
}

// handleFrame applies one client frame. It returns false when the frame is
// unparseable and the connection must be closed.
func (c *Connection) handleFrame(data []byte) bool {
	frame, err := protocol.ParseClientFrame(data)
	if err != nil {
		metrics.WSFramesReceived.WithLabelValues("malformed").Inc()
		c.replyError(err)
		return false
	}

	kind := frame.Kind()
	switch kind {
	case protocol.TypeSubscribe:
		metrics.WSFramesReceived.WithLabelValues(kind).Inc()
		if err := c.manager.subscribe(c, frame.Topic); err != nil {
			c.replyError(err)
		}
	case protocol.TypeUnsubscribe:
		metrics.WSFramesReceived.WithLabelValues(kind).Inc()
		if err := c.manager.unsubscribe(c, frame.Topic); err != nil {
			c.replyError(err)
		}
	default:
		metrics.WSFramesReceived.WithLabelValues("unknown").Inc()
		c.replyError(&protocol.UnknownMessageTypeError{Type: kind})
	}
	return true
}

// replyError queues an error frame. A full queue drops the connection like
// any other slow consumer.
func (c *Connection) replyError(err error) {
	coded := protocol.AsCoded(err)
	metrics.WSFrameErrors.WithLabelValues(string(coded.Code())).Inc()
	if sendErr := c.enqueue(protocol.EncodeError(coded)); errors.Is(sendErr, ErrSlowConsumer) {
		c.manager.dropSlow(c)
	}
}

// writePump is the only writer of data frames on the socket.
func (c *Connection) writePump() {
	defer c.manager.wg.Done()
	defer func() {
		_ = c.conn.Close() // best-effort cleanup
	}()

	writeWait := c.manager.cfg.WriteWait

	for {
		select {
		case <-c.done:
			if c.flushQueue {
				c.flush(writeWait)
			}
			msg := websocket.FormatCloseMessage(c.closeCode, c.closeText)
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return

		case msg := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.manager.unregister(c.id, ReasonWriteError, websocket.CloseAbnormalClosure, "", false)
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Debug().Err(err).Msg("websocket write failed")
				c.manager.unregister(c.id, ReasonWriteError, websocket.CloseAbnormalClosure, "", false)
				return
			}
			metrics.WSMessagesSent.Inc()
		}
	}
}

// flush writes whatever is already queued, without waiting for more.
func (c *Connection) flush(writeWait time.Duration) {
	for {
		select {
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// ping sends a protocol-level ping. WriteControl may run concurrently with
// the write pump.
func (c *Connection) ping() error {
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.manager.cfg.WriteWait))
}

// runHeartbeat drives the heartbeat monitor until teardown.
func (c *Connection) runHeartbeat(ctx context.Context) {
	defer c.manager.wg.Done()
	c.heartbeat.Run(ctx)
}

func newConnection(m *Manager, raw *websocket.Conn, id, appID string, cancel context.CancelFunc) *Connection {
	c := &Connection{
		id:        id,
		appID:     appID,
		createdAt: time.Now(),
		conn:      raw,
		manager:   m,
		logger:    logging.WithConnection(id, appID),
		send:      make(chan []byte, m.cfg.SendQueueSize),
		done:      make(chan struct{}),
		cancel:    cancel,
	}
	c.heartbeat = heartbeat.New(m.cfg.PingInterval, m.cfg.PongTimeout, c.ping, func() {
		m.unregister(c.id, ReasonHeartbeatTimeout, websocket.CloseGoingAway, "heartbeat timeout", false)
	})
	return c
}
