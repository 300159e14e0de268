// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/velyx/internal/breaker"
	"github.com/tomtom215/velyx/internal/config"
	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/topic"
)

// Message metadata keys.
const (
	MetadataOrigin = "origin"
	MetadataTopic  = "topic"
)

// DefaultSubjectPrefix is used when Config.SubjectPrefix is empty.
const DefaultSubjectPrefix = "velyx.fanout"

var (
	// ErrBridgeClosed is returned by Relay and Run after Close.
	ErrBridgeClosed = errors.New("cluster bridge is closed")

	// ErrNotConnected is returned by Ready while the bus connection is down.
	ErrNotConnected = errors.New("cluster bus not connected")
)

// DeliverFunc hands an event received from another node to local
// subscribers. namespacedTopic is the internal app:<appId>:<topic> key.
type DeliverFunc func(ctx context.Context, namespacedTopic string, payload []byte) error

// Config holds bridge settings.
type Config struct {
	URL              string
	NodeID           string
	SubjectPrefix    string
	MaxReconnects    int
	ReconnectWait    time.Duration
	BreakerTimeout   time.Duration
	FailureThreshold uint32
	CloseTimeout     time.Duration
}

// ConfigFrom maps the cluster section of the service configuration.
func ConfigFrom(c *config.ClusterConfig) Config {
	return Config{
		URL:            c.URL,
		NodeID:         c.NodeID,
		SubjectPrefix:  c.SubjectPrefix,
		MaxReconnects:  c.MaxReconnects,
		ReconnectWait:  c.ReconnectWait,
		BreakerTimeout: c.BreakerTimeout,
	}
}

func (c *Config) setDefaults() {
	if c.NodeID == "" {
		c.NodeID = uuid.NewString()
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	c.SubjectPrefix = strings.TrimSuffix(c.SubjectPrefix, ".")
	if c.ReconnectWait <= 0 {
		c.ReconnectWait = 2 * time.Second
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = 10 * time.Second
	}
	if c.CloseTimeout <= 0 {
		c.CloseTimeout = 5 * time.Second
	}
}

// Bridge relays locally accepted events to every other node over core NATS
// and delivers events published on other nodes to local subscribers.
//
// Each node subscribes to <prefix>.> without a queue group so every node
// sees every event. Events carry the publishing node's ID and a node drops
// its own events on receipt, so nothing is delivered twice locally.
type Bridge struct {
	cfg        Config
	deliver    DeliverFunc
	publisher  message.Publisher
	subscriber message.Subscriber
	conn       *natsgo.Conn
	breaker    *gobreaker.CircuitBreaker[struct{}]
	logger     watermill.LoggerAdapter

	mu     sync.RWMutex
	closed bool
}

// New connects the bridge publisher, subscriber and health connection to
// the bus at cfg.URL. Connection failures are retried in the background.
func New(cfg Config, deliver DeliverFunc) (*Bridge, error) {
	if deliver == nil {
		return nil, errors.New("cluster: deliver func is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("cluster: NATS URL is required")
	}
	cfg.setDefaults()

	logger := logging.NewWatermillAdapter("cluster").With(watermill.LogFields{"node_id": cfg.NodeID})
	natsOpts := connectionOptions(&cfg, logger)

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         cfg.URL,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream:   wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              cfg.URL,
		SubscribersCount: 1, // one consumer keeps per-topic order
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        wmNats.JetStreamConfig{Disabled: true},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	conn, err := natsgo.Connect(cfg.URL, append(natsOpts, natsgo.Name("velyx-health-"+cfg.NodeID))...)
	if err != nil {
		_ = sub.Close()
		_ = pub.Close()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	cb := breaker.New[struct{}](breaker.Config{
		Name:             "cluster-publish",
		Timeout:          cfg.BreakerTimeout,
		FailureThreshold: cfg.FailureThreshold,
	})

	logger.Info("Cluster bridge connected", watermill.LogFields{
		"url":     cfg.URL,
		"subject": cfg.SubjectPrefix + ".>",
	})

	return &Bridge{
		cfg:        cfg,
		deliver:    deliver,
		publisher:  pub,
		subscriber: sub,
		conn:       conn,
		breaker:    cb,
		logger:     logger,
	}, nil
}

func connectionOptions(cfg *Config, logger watermill.LoggerAdapter) []natsgo.Option {
	return []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
		natsgo.ErrorHandler(func(_ *natsgo.Conn, sub *natsgo.Subscription, err error) {
			fields := watermill.LogFields{}
			if sub != nil {
				fields["subject"] = sub.Subject
			}
			logger.Error("NATS error", err, fields)
		}),
	}
}

// NodeID returns the identifier stamped on events relayed by this node.
func (b *Bridge) NodeID() string {
	return b.cfg.NodeID
}

// Subject returns the bus subject for a namespaced topic.
func (b *Bridge) Subject(namespacedTopic string) string {
	return b.cfg.SubjectPrefix + "." + namespacedTopic
}

// Relay publishes an accepted event to the other nodes. Calls are rejected
// without touching the bus while the publish breaker is open.
func (b *Bridge) Relay(_ context.Context, namespacedTopic string, payload []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBridgeClosed
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set(MetadataOrigin, b.cfg.NodeID)
	msg.Metadata.Set(MetadataTopic, namespacedTopic)

	_, err := breaker.Execute(b.breaker, func() (struct{}, error) {
		return struct{}{}, b.publisher.Publish(b.Subject(namespacedTopic), msg)
	})
	if err != nil {
		metrics.ClusterPublishErrors.Inc()
		return fmt.Errorf("relay %s: %w", namespacedTopic, err)
	}
	metrics.ClusterMessagesPublished.Inc()
	return nil
}

// Run consumes events from the bus until ctx is canceled or the bridge is
// closed. Every message is acknowledged after local delivery; the bus is
// best-effort and nothing is redelivered.
func (b *Bridge) Run(ctx context.Context) error {
	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrBridgeClosed
	}

	messages, err := b.subscriber.Subscribe(ctx, b.cfg.SubjectPrefix+".>")
	if err != nil {
		return fmt.Errorf("subscribe to %s.>: %w", b.cfg.SubjectPrefix, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrBridgeClosed
			}
			b.handle(ctx, msg)
			msg.Ack()
		}
	}
}

func (b *Bridge) handle(ctx context.Context, msg *message.Message) {
	if msg.Metadata.Get(MetadataOrigin) == b.cfg.NodeID {
		metrics.ClusterMessagesReceived.WithLabelValues("own_origin").Inc()
		return
	}

	namespaced := msg.Metadata.Get(MetadataTopic)
	if _, _, ok := topic.Split(namespaced); !ok {
		metrics.ClusterMessagesReceived.WithLabelValues("invalid").Inc()
		b.logger.Error("Dropping relayed event with invalid topic", nil, watermill.LogFields{
			"message_uuid": msg.UUID,
			"topic":        namespaced,
		})
		return
	}

	if err := b.deliver(ctx, namespaced, msg.Payload); err != nil {
		metrics.ClusterMessagesReceived.WithLabelValues("invalid").Inc()
		b.logger.Error("Failed to deliver relayed event", err, watermill.LogFields{
			"message_uuid": msg.UUID,
			"topic":        namespaced,
			"origin":       msg.Metadata.Get(MetadataOrigin),
		})
		return
	}
	metrics.ClusterMessagesReceived.WithLabelValues("delivered").Inc()
}

// Ready reports whether the bridge can relay events.
func (b *Bridge) Ready() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBridgeClosed
	}
	if !b.conn.IsConnected() {
		return ErrNotConnected
	}
	if b.breaker.State() == gobreaker.StateOpen {
		return fmt.Errorf("cluster publish breaker is open")
	}
	return nil
}

// Close stops the subscriber and releases all bus connections.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	var errs []error
	if err := b.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close publisher: %w", err))
	}
	b.conn.Close()

	b.logger.Info("Cluster bridge closed", nil)
	return errors.Join(errs...)
}
