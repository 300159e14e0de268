// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package heartbeat detects dead WebSocket connections with protocol-level
// ping/pong.
//
// Each connection gets one Monitor running this state machine:
//
//	Alive --interval--> AwaitingPong --pong--> Alive
//	                         |
//	                      timeout
//	                         v
//	                       Dead
//
// Dead is terminal. The monitor calls its onDead callback exactly once and
// returns; the caller tears the connection down.
package heartbeat

import (
	"context"
	"sync"
	"time"

	"github.com/tomtom215/velyx/internal/metrics"
)

// Defaults used when New is given non-positive durations.
const (
	DefaultInterval = 30 * time.Second
	DefaultTimeout  = 10 * time.Second
)

// State is the monitor state.
type State int

const (
	Alive State = iota
	AwaitingPong
	Dead
)

func (s State) String() string {
	switch s {
	case Alive:
		return "alive"
	case AwaitingPong:
		return "awaiting_pong"
	case Dead:
		return "dead"
	default:
		return "unknown"
	}
}

// Monitor is the heartbeat of one connection.
type Monitor struct {
	interval time.Duration
	timeout  time.Duration
	ping     func() error
	onDead   func()

	mu       sync.Mutex
	state    State
	lastPong time.Time
	pong     chan struct{}
	deadOnce sync.Once
}

// New creates a monitor. ping sends a protocol ping frame; a ping error is
// treated like a missing pong. onDead runs once when the connection is
// declared dead.
func New(interval, timeout time.Duration, ping func() error, onDead func()) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Monitor{
		interval: interval,
		timeout:  timeout,
		ping:     ping,
		onDead:   onDead,
		state:    Alive,
		lastPong: time.Now(),
		pong:     make(chan struct{}, 1),
	}
}

// Run drives the state machine until ctx is cancelled or the connection is
// declared dead.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		m.drainPong()
		m.setState(AwaitingPong)

		if err := m.ping(); err != nil {
			m.die()
			return
		}

		timer := time.NewTimer(m.timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-m.pong:
			timer.Stop()
			m.setState(Alive)
		case <-timer.C:
			metrics.HeartbeatTimeouts.Inc()
			m.die()
			return
		}
	}
}

// Pong records a pong from the peer. Safe to call from the read loop.
func (m *Monitor) Pong() {
	m.mu.Lock()
	m.lastPong = time.Now()
	m.mu.Unlock()

	select {
	case m.pong <- struct{}{}:
	default:
	}
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastPong returns when the last pong arrived, or the creation time.
func (m *Monitor) LastPong() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPong
}

func (m *Monitor) setState(s State) {
	m.mu.Lock()
	if m.state != Dead {
		m.state = s
	}
	m.mu.Unlock()
}

// drainPong discards a pong that arrived while no ping was outstanding.
func (m *Monitor) drainPong() {
	select {
	case <-m.pong:
	default:
	}
}

func (m *Monitor) die() {
	m.deadOnce.Do(func() {
		m.mu.Lock()
		m.state = Dead
		m.mu.Unlock()
		if m.onDead != nil {
			m.onDead()
		}
	})
}
