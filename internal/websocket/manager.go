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

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/protocol"
	"github.com/tomtom215/velyx/internal/subscription"
)

// ShutdownReason identifies why the manager is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Disconnect reasons, used as the websocket_disconnects_total label.
const (
	ReasonClientClosed     = "client_closed"
	ReasonReadError        = "read_error"
	ReasonWriteError       = "write_error"
	ReasonUnsupportedData  = "unsupported_data"
	ReasonSlowConsumer     = "slow_consumer"
	ReasonHeartbeatTimeout = "heartbeat_timeout"
	ReasonShutdown         = "shutdown"
	ReasonUnregistered     = "unregistered"
)

var (
	// ErrConnectionClosed is returned by Send for unknown or closed
	// connections.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrSlowConsumer is returned by Send when the connection's queue was
	// full. The connection has been dropped.
	ErrSlowConsumer = errors.New("send queue full: slow consumer disconnected")

	// ErrManagerClosed is returned by Register during shutdown.
	ErrManagerClosed = errors.New("connection manager is shutting down")
)

// Config configures the Manager.
type Config struct {
	SendQueueSize    int
	MaxMessageSize   int64
	WriteWait        time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	MaxSubscriptions int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SendQueueSize:    256,
		MaxMessageSize:   64 * 1024,
		WriteWait:        10 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      10 * time.Second,
		MaxSubscriptions: 1000,
	}
}

// Stats is a point-in-time snapshot for /stats.
type Stats struct {
	Connections       int            `json:"connections"`
	ConnectionsByApp  map[string]int `json:"connectionsByApp"`
	Topics            int            `json:"topics"`
	Subscriptions     int            `json:"subscriptions"`
	TotalConnections  uint64         `json:"totalConnections"`
	SlowConsumerDrops uint64         `json:"slowConsumerDrops"`
	HeartbeatTimeouts uint64         `json:"heartbeatTimeouts"`
}

// Manager owns the set of live connections.
type Manager struct {
	cfg   Config
	index *subscription.Index

	mu     sync.RWMutex
	conns  map[string]*Connection
	byApp  map[string]int
	closed bool

	wg sync.WaitGroup

	totalConnections  atomic.Uint64
	slowConsumerDrops atomic.Uint64
	heartbeatTimeouts atomic.Uint64
}

// NewManager creates a manager that records subscriptions in index.
func NewManager(cfg Config, index *subscription.Index) *Manager {
	def := DefaultConfig()
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = def.WriteWait
	}
	if cfg.MaxSubscriptions <= 0 {
		cfg.MaxSubscriptions = def.MaxSubscriptions
	}
	return &Manager{
		cfg:   cfg,
		index: index,
		conns: make(map[string]*Connection),
		byApp: make(map[string]int),
	}
}

// Index returns the subscription index the manager maintains.
func (m *Manager) Index() *subscription.Index { return m.index }

// Register takes ownership of an upgraded socket that authenticated as
// appID and starts its read, write and heartbeat goroutines. The credential
// must already have been validated.
func (m *Manager) Register(raw *websocket.Conn, appID string) (*Connection, error) {
	ctx, cancel := context.WithCancel(context.Background())
	c := newConnection(m, raw, uuid.New().String(), appID, cancel)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = raw.WriteControl(websocket.CloseMessage, msg, time.Now().Add(m.cfg.WriteWait))
		_ = raw.Close()
		return nil, ErrManagerClosed
	}
	m.conns[c.id] = c
	m.byApp[appID]++
	m.mu.Unlock()

	m.totalConnections.Add(1)
	metrics.WSConnectionsActive.Inc()

	m.wg.Add(3)
	go c.writePump()
	go c.readPump()
	go c.runHeartbeat(ctx)

	c.logger.Info().Int("total_connections", m.Count()).Msg("websocket client connected")
	return c, nil
}

// Unregister removes the connection and all of its subscriptions. It is
// idempotent and safe to call concurrently.
func (m *Manager) Unregister(connID string) {
	m.unregister(connID, ReasonUnregistered, websocket.CloseNormalClosure, "", false)
}

func (m *Manager) unregister(connID, reason string, code int, text string, flush bool) {
	m.mu.Lock()
	c, ok := m.conns[connID]
	if ok {
		delete(m.conns, connID)
		if m.byApp[c.appID]--; m.byApp[c.appID] <= 0 {
			delete(m.byApp, c.appID)
		}
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	if !c.teardown(code, text, flush) {
		return
	}

	metrics.WSConnectionsActive.Dec()
	metrics.WSDisconnects.WithLabelValues(reason).Inc()
	if reason == ReasonHeartbeatTimeout {
		m.heartbeatTimeouts.Add(1)
	}

	c.logger.Info().
		Str("reason", reason).
		Dur("connected_for", time.Since(c.createdAt)).
		Msg("websocket client disconnected")
}

// Send enqueues msg for connID without blocking. A full queue disconnects the
// connection and returns ErrSlowConsumer.
func (m *Manager) Send(connID string, msg []byte) error {
	m.mu.RLock()
	c, ok := m.conns[connID]
	m.mu.RUnlock()
	if !ok {
		return ErrConnectionClosed
	}

	err := c.enqueue(msg)
	if errors.Is(err, ErrSlowConsumer) {
		m.dropSlow(c)
	}
	return err
}

func (m *Manager) dropSlow(c *Connection) {
	m.slowConsumerDrops.Add(1)
	metrics.SlowConsumersDropped.Inc()
	c.logger.Warn().Int("queue_size", m.cfg.SendQueueSize).Msg("dropping slow consumer")
	m.unregister(c.id, ReasonSlowConsumer, websocket.ClosePolicyViolation, "slow consumer", false)
}

// Get returns the live connection with the given ID.
func (m *Manager) Get(connID string) (*Connection, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.conns[connID]
	return c, ok
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns)
}

// CountForApp returns the number of live connections of appID.
func (m *Manager) CountForApp(appID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.byApp[appID]
}

// Stats returns a snapshot of connection and subscription counts.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	byApp := make(map[string]int, len(m.byApp))
	for app, n := range m.byApp {
		byApp[app] = n
	}
	count := len(m.conns)
	m.mu.RUnlock()

	return Stats{
		Connections:       count,
		ConnectionsByApp:  byApp,
		Topics:            m.index.TopicCount(),
		Subscriptions:     m.index.SubscriptionCount(),
		TotalConnections:  m.totalConnections.Load(),
		SlowConsumerDrops: m.slowConsumerDrops.Load(),
		HeartbeatTimeouts: m.heartbeatTimeouts.Load(),
	}
}

// subscribe adds a subscription for c, enforcing the per-connection cap.
func (m *Manager) subscribe(c *Connection, publicTopic string) error {
	_, created, err := m.index.Subscribe(c.appID, publicTopic, c.id)
	if err != nil || !created {
		return err
	}
	// Counted as soon as it is in the index: a racing teardown subtracts
	// every entry RemoveAllFor finds, including this one.
	metrics.WSSubscriptionsActive.Inc()

	if m.index.CountFor(c.id) > m.cfg.MaxSubscriptions {
		m.dropEntry(c, publicTopic)
		return &protocol.SubscriptionLimitError{Limit: m.cfg.MaxSubscriptions}
	}

	// A concurrent teardown may have run RemoveAllFor before the entry
	// was added; remove it again so the index never holds a dead ID.
	if c.closed.Load() {
		m.dropEntry(c, publicTopic)
		return nil
	}

	c.logger.Debug().Str("topic", publicTopic).Msg("subscribed")
	return nil
}

// dropEntry rolls back a subscription added by subscribe. The gauge is only
// decremented when this call removed the entry.
func (m *Manager) dropEntry(c *Connection, publicTopic string) {
	if removed, _ := m.index.Unsubscribe(c.appID, publicTopic, c.id); removed {
		metrics.WSSubscriptionsActive.Dec()
	}
}

func (m *Manager) unsubscribe(c *Connection, publicTopic string) error {
	removed, err := m.index.Unsubscribe(c.appID, publicTopic, c.id)
	if err != nil {
		return err
	}
	if removed {
		metrics.WSSubscriptionsActive.Dec()
		c.logger.Debug().Str("topic", publicTopic).Msg("unsubscribed")
	}
	return nil
}

// RunWithContext blocks until ctx is done, then sends every connection a
// 1001 close frame and unregisters it. Clients are expected to reconnect
// and resubscribe.
func (m *Manager) RunWithContext(ctx context.Context) error {
	m.mu.Lock()
	m.closed = false
	m.mu.Unlock()

	<-ctx.Done()

	count := m.closeAll(websocket.CloseGoingAway, "server shutting down")

	logging.Info().
		Str("component", "websocket-manager").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", count).
		Msg("websocket manager stopped")
	return ctx.Err()
}

// Close refuses new registrations and closes every connection.
func (m *Manager) Close() {
	m.closeAll(websocket.CloseGoingAway, "server shutting down")
}

func (m *Manager) closeAll(code int, text string) int {
	m.mu.Lock()
	m.closed = true
	ids := make([]string, 0, len(m.conns))
	for id := range m.conns {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.unregister(id, ReasonShutdown, code, text, false)
	}
	return len(ids)
}

// Wait blocks until every connection goroutine has exited.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}
