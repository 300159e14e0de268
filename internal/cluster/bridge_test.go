// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package cluster

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/velyx/internal/config"
	"github.com/tomtom215/velyx/internal/logging"
)

type recorder struct {
	mu     sync.Mutex
	topics map[string]int
	last   map[string][]byte
	err    error
}

func newRecorder() *recorder {
	return &recorder{topics: make(map[string]int), last: make(map[string][]byte)}
}

func (r *recorder) deliver(_ context.Context, namespacedTopic string, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.topics[namespacedTopic]++
	r.last[namespacedTopic] = append([]byte(nil), payload...)
	return nil
}

func (r *recorder) count(namespacedTopic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.topics[namespacedTopic]
}

func (r *recorder) payload(namespacedTopic string) []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last[namespacedTopic]
}

func startServer(t *testing.T) *EmbeddedServer {
	t.Helper()
	srv, err := NewEmbeddedServer(EmbeddedConfig{Host: "127.0.0.1", Port: RandomPort})
	if err != nil {
		t.Fatalf("NewEmbeddedServer() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

func startBridge(t *testing.T, url, nodeID string, deliver DeliverFunc) *Bridge {
	t.Helper()
	b, err := New(Config{URL: url, NodeID: nodeID, SubjectPrefix: "test.fanout"}, deliver)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = b.Close()
	})
	return b
}

// relayUntil relays until cond holds. The subscriber on the other side may
// not be listening yet when the first relay is sent.
func relayUntil(t *testing.T, b *Bridge, namespacedTopic string, payload []byte, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if err := b.Relay(context.Background(), namespacedTopic, payload); err != nil {
			t.Fatalf("Relay() error = %v", err)
		}
		time.Sleep(20 * time.Millisecond)
		if cond() {
			return
		}
	}
	t.Fatalf("relay on %s never arrived", namespacedTopic)
}

func TestBridge_RelayReachesOtherNodes(t *testing.T) {
	srv := startServer(t)

	recA, recB := newRecorder(), newRecorder()
	nodeA := startBridge(t, srv.ClientURL(), "node-a", recA.deliver)
	nodeB := startBridge(t, srv.ClientURL(), "node-b", recB.deliver)

	const fromA = "app:app1:from-a"
	const fromB = "app:app1:from-b"

	relayUntil(t, nodeA, fromA, []byte(`{"n":1}`), func() bool { return recB.count(fromA) > 0 })
	relayUntil(t, nodeB, fromB, []byte(`{"n":2}`), func() bool { return recA.count(fromB) > 0 })

	if got := string(recB.payload(fromA)); got != `{"n":1}` {
		t.Errorf("node B payload = %s, want {\"n\":1}", got)
	}
	if got := recA.count(fromA); got != 0 {
		t.Errorf("node A delivered its own event %d times, want 0", got)
	}
	if got := recB.count(fromB); got != 0 {
		t.Errorf("node B delivered its own event %d times, want 0", got)
	}
}

func TestBridge_PreservesPublishOrder(t *testing.T) {
	srv := startServer(t)

	var mu sync.Mutex
	var seen []string
	recv := func(_ context.Context, namespacedTopic string, payload []byte) error {
		if namespacedTopic != "app:app1:ordered" {
			return nil
		}
		mu.Lock()
		seen = append(seen, string(payload))
		mu.Unlock()
		return nil
	}

	sender := startBridge(t, srv.ClientURL(), "sender", func(context.Context, string, []byte) error { return nil })
	warmup := newRecorder()
	startBridge(t, srv.ClientURL(), "receiver", func(ctx context.Context, topic string, payload []byte) error {
		_ = warmup.deliver(ctx, topic, payload)
		return recv(ctx, topic, payload)
	})

	relayUntil(t, sender, "app:app1:warmup", []byte(`0`), func() bool { return warmup.count("app:app1:warmup") > 0 })

	want := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	for _, p := range want {
		if err := sender.Relay(context.Background(), "app:app1:ordered", []byte(p)); err != nil {
			t.Fatalf("Relay() error = %v", err)
		}
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n >= len(want) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != len(want) {
		t.Fatalf("received %d events, want %d", len(seen), len(want))
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, seen[i], want[i])
		}
	}
}

func TestBridge_Handle(t *testing.T) {
	rec := newRecorder()
	b := &Bridge{
		cfg:     Config{NodeID: "self"},
		deliver: rec.deliver,
		logger:  logging.NewWatermillAdapter("cluster-test"),
	}

	newMsg := func(origin, topic string) *message.Message {
		m := message.NewMessage("uuid", []byte(`{}`))
		m.Metadata.Set(MetadataOrigin, origin)
		m.Metadata.Set(MetadataTopic, topic)
		return m
	}

	tests := []struct {
		name  string
		msg   *message.Message
		topic string
		want  int
	}{
		{name: "other node delivered", msg: newMsg("peer", "app:app1:chat"), topic: "app:app1:chat", want: 1},
		{name: "own origin skipped", msg: newMsg("self", "app:app1:mine"), topic: "app:app1:mine", want: 0},
		{name: "missing prefix dropped", msg: newMsg("peer", "chat"), topic: "chat", want: 0},
		{name: "empty topic dropped", msg: newMsg("peer", ""), topic: "", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.handle(context.Background(), tt.msg)
			if got := rec.count(tt.topic); got != tt.want {
				t.Errorf("deliveries to %q = %d, want %d", tt.topic, got, tt.want)
			}
		})
	}
}

func TestBridge_HandleDeliverError(t *testing.T) {
	rec := newRecorder()
	rec.err = errors.New("boom")
	b := &Bridge{
		cfg:     Config{NodeID: "self"},
		deliver: rec.deliver,
		logger:  logging.NewWatermillAdapter("cluster-test"),
	}

	msg := message.NewMessage("uuid", []byte(`{}`))
	msg.Metadata.Set(MetadataOrigin, "peer")
	msg.Metadata.Set(MetadataTopic, "app:app1:chat")

	// Must not panic; the error is logged and counted.
	b.handle(context.Background(), msg)
	if got := rec.count("app:app1:chat"); got != 0 {
		t.Errorf("deliveries = %d, want 0", got)
	}
}

func TestBridge_ReadyAndClose(t *testing.T) {
	srv := startServer(t)

	b, err := New(Config{URL: srv.ClientURL()}, func(context.Context, string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if b.NodeID() == "" {
		t.Error("NodeID() is empty, want a generated ID")
	}
	if got := b.Subject("app:app1:chat"); got != DefaultSubjectPrefix+".app:app1:chat" {
		t.Errorf("Subject() = %q", got)
	}

	deadline := time.Now().Add(5 * time.Second)
	for b.Ready() != nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if err := b.Ready(); err != nil {
		t.Fatalf("Ready() error = %v", err)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := b.Ready(); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Ready() after Close = %v, want ErrBridgeClosed", err)
	}
	if err := b.Relay(context.Background(), "app:app1:chat", []byte(`{}`)); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Relay() after Close = %v, want ErrBridgeClosed", err)
	}
	if err := b.Run(context.Background()); !errors.Is(err, ErrBridgeClosed) {
		t.Errorf("Run() after Close = %v, want ErrBridgeClosed", err)
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{URL: "nats://127.0.0.1:4222"}, nil); err == nil {
		t.Error("New() with nil deliver succeeded, want error")
	}
	if _, err := New(Config{}, func(context.Context, string, []byte) error { return nil }); err == nil {
		t.Error("New() without URL succeeded, want error")
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(&config.ClusterConfig{
		URL:            "nats://example:4222",
		SubjectPrefix:  "custom.prefix.",
		MaxReconnects:  3,
		ReconnectWait:  time.Second,
		BreakerTimeout: 0,
	})
	cfg.setDefaults()

	if cfg.URL != "nats://example:4222" {
		t.Errorf("URL = %q", cfg.URL)
	}
	if cfg.SubjectPrefix != "custom.prefix" {
		t.Errorf("SubjectPrefix = %q, want trailing dot trimmed", cfg.SubjectPrefix)
	}
	if cfg.NodeID == "" {
		t.Error("NodeID not generated")
	}
	if cfg.BreakerTimeout != 10*time.Second {
		t.Errorf("BreakerTimeout = %v, want 10s default", cfg.BreakerTimeout)
	}
	if cfg.MaxReconnects != 3 {
		t.Errorf("MaxReconnects = %d, want 3", cfg.MaxReconnects)
	}
}
