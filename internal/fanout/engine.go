// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package fanout

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/protocol"
	"github.com/tomtom215/velyx/internal/topic"
)

// DefaultMaxPayloadBytes is the largest accepted payload. A payload of
// exactly this size is accepted.
const DefaultMaxPayloadBytes = 1 << 20

// ErrEngineStopped is returned by Publish and DeliverRemote after Run has
// returned.
var ErrEngineStopped = errors.New("fan-out engine stopped")

// Subscribers returns the connection IDs subscribed to a namespaced topic.
// The returned slice must be a snapshot the caller may keep.
type Subscribers interface {
	SubscribersOf(namespacedTopic string) []string
}

// Sender enqueues an encoded frame on one connection without blocking.
type Sender interface {
	Send(connID string, msg []byte) error
}

// Relayer forwards locally accepted events to other nodes.
type Relayer interface {
	Relay(ctx context.Context, namespacedTopic string, payload []byte) error
}

// Config sizes the worker pool.
type Config struct {
	// Workers is the number of delivery workers. 0 uses runtime.NumCPU().
	Workers int
	// QueueSize bounds each worker's pending job queue.
	QueueSize       int
	MaxPayloadBytes int
}

// Stats is a point-in-time view of engine activity.
type Stats struct {
	Workers     int    `json:"workers"`
	QueueDepth  int    `json:"queue_depth"`
	Published   uint64 `json:"published"`
	Remote      uint64 `json:"remote"`
	Delivered   uint64 `json:"delivered"`
	Relayed     uint64 `json:"relayed"`
	RelayErrors uint64 `json:"relay_errors"`
}

type job struct {
	namespacedTopic string
	frame           []byte
	subscribers     []string
}

// Engine turns a published event into one encoded frame and enqueues it on
// every subscribed connection.
//
// Each topic is pinned to one worker by hashing the namespaced topic, so
// events on a topic leave the engine in the order they were accepted.
// Different topics are delivered in parallel with no ordering between them.
type Engine struct {
	cfg    Config
	index  Subscribers
	sender Sender
	relay  Relayer
	queues []chan job

	stopped   chan struct{}
	stopOnce  sync.Once
	published atomic.Uint64
	remote    atomic.Uint64
	delivered atomic.Uint64
	relayed   atomic.Uint64
	relayErrs atomic.Uint64
}

// New creates an engine. Call Run to start the workers.
func New(cfg Config, index Subscribers, sender Sender) *Engine {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}

	queues := make([]chan job, cfg.Workers)
	for i := range queues {
		queues[i] = make(chan job, cfg.QueueSize)
	}

	return &Engine{
		cfg:     cfg,
		index:   index,
		sender:  sender,
		queues:  queues,
		stopped: make(chan struct{}),
	}
}

// SetRelay installs the cluster relay. It must be called before Run.
func (e *Engine) SetRelay(r Relayer) {
	e.relay = r
}

// Publish validates payload, fans it out to the local subscribers of
// publicTopic in appID's namespace and relays it to other nodes. It returns
// the number of local subscribers the event was handed to.
func (e *Engine) Publish(ctx context.Context, appID, publicTopic string, payload json.RawMessage) (int, error) {
	n, err := e.publish(ctx, appID, publicTopic, payload)
	if err != nil {
		metrics.RecordPublish(string(protocol.AsCoded(err).Code()), len(payload), 0)
		return 0, err
	}
	metrics.RecordPublish("accepted", len(payload), n)
	return n, nil
}

func (e *Engine) publish(ctx context.Context, appID, publicTopic string, payload json.RawMessage) (int, error) {
	if err := e.checkPayload(payload); err != nil {
		return 0, err
	}
	namespaced, err := topic.ValidateAndNamespace(appID, publicTopic)
	if err != nil {
		return 0, err
	}

	n, err := e.dispatch(ctx, namespaced, publicTopic, payload)
	if err != nil {
		return 0, err
	}
	e.published.Add(1)

	if e.relay != nil {
		if err := e.relay.Relay(ctx, namespaced, payload); err != nil {
			e.relayErrs.Add(1)
			logging.Warn().Err(err).Str("topic", namespaced).Msg("cluster relay failed, event delivered locally only")
		} else {
			e.relayed.Add(1)
		}
	}
	return n, nil
}

// DeliverRemote fans out an event that another node accepted. It is never
// relayed again.
func (e *Engine) DeliverRemote(ctx context.Context, namespacedTopic string, payload []byte) error {
	_, publicTopic, ok := topic.Split(namespacedTopic)
	if !ok {
		return &protocol.InvalidTopicError{Topic: namespacedTopic, Reason: "not a namespaced topic"}
	}
	if err := e.checkPayload(payload); err != nil {
		return err
	}
	if _, err := e.dispatch(ctx, namespacedTopic, publicTopic, payload); err != nil {
		return err
	}
	e.remote.Add(1)
	return nil
}

func (e *Engine) checkPayload(payload []byte) error {
	if len(payload) > e.cfg.MaxPayloadBytes {
		return &protocol.PayloadTooLargeError{Size: len(payload), Limit: e.cfg.MaxPayloadBytes}
	}
	if !json.Valid(payload) {
		return &protocol.InvalidPayloadError{}
	}
	return nil
}

// dispatch snapshots the subscribers, encodes the frame once and queues it
// on the topic's worker. It blocks while that worker's queue is full.
func (e *Engine) dispatch(ctx context.Context, namespaced, publicTopic string, payload []byte) (int, error) {
	select {
	case <-e.stopped:
		return 0, ErrEngineStopped
	default:
	}

	subs := e.index.SubscribersOf(namespaced)
	if len(subs) == 0 {
		return 0, nil
	}

	frame, err := protocol.EncodeEvent(publicTopic, payload)
	if err != nil {
		return 0, &protocol.InternalError{Err: fmt.Errorf("encode event frame: %w", err)}
	}

	w := e.workerFor(namespaced)
	select {
	case e.queues[w] <- job{namespacedTopic: namespaced, frame: frame, subscribers: subs}:
		metrics.FanoutQueueDepth.WithLabelValues(strconv.Itoa(w)).Set(float64(len(e.queues[w])))
		return len(subs), nil
	case <-e.stopped:
		return 0, ErrEngineStopped
	case <-ctx.Done():
		return 0, &protocol.InternalError{Err: ctx.Err()}
	}
}

func (e *Engine) workerFor(namespacedTopic string) int {
	return int(xxhash.Sum64String(namespacedTopic) % uint64(len(e.queues)))
}

// Run starts the workers and blocks until ctx is canceled. Jobs still queued
// at shutdown are dropped; delivery is best-effort.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := range e.queues {
		g.Go(func() error {
			e.work(gctx, i)
			return nil
		})
	}

	logging.Info().Int("workers", len(e.queues)).Int("queue_size", e.cfg.QueueSize).Msg("Fan-out engine started")

	<-ctx.Done()
	e.stopOnce.Do(func() { close(e.stopped) })
	_ = g.Wait()

	logging.Info().
		Uint64("published", e.published.Load()).
		Uint64("delivered", e.delivered.Load()).
		Msg("Fan-out engine stopped")
	return ctx.Err()
}

func (e *Engine) work(ctx context.Context, id int) {
	queue := e.queues[id]
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-queue:
			metrics.FanoutQueueDepth.WithLabelValues(label).Set(float64(len(queue)))
			e.deliver(j)
		}
	}
}

func (e *Engine) deliver(j job) {
	start := time.Now()
	var sent int
	for _, connID := range j.subscribers {
		if err := e.sender.Send(connID, j.frame); err == nil {
			sent++
		}
	}
	e.delivered.Add(uint64(sent))
	metrics.EventsDelivered.Add(float64(sent))
	metrics.FanoutDuration.Observe(time.Since(start).Seconds())
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	depth := 0
	for _, q := range e.queues {
		depth += len(q)
	}
	return Stats{
		Workers:     len(e.queues),
		QueueDepth:  depth,
		Published:   e.published.Load(),
		Remote:      e.remote.Load(),
		Delivered:   e.delivered.Load(),
		Relayed:     e.relayed.Load(),
		RelayErrors: e.relayErrs.Load(),
	}
}
