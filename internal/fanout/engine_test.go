// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package fanout

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/goleak"

	"github.com/tomtom215/velyx/internal/protocol"
	"github.com/tomtom215/velyx/internal/subscription"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSender struct {
	mu     sync.Mutex
	frames map[string][][]byte
	fail   map[string]bool
}

func newFakeSender() *fakeSender {
	return &fakeSender{frames: make(map[string][][]byte), fail: make(map[string]bool)}
}

func (s *fakeSender) Send(connID string, msg []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[connID] {
		return errors.New("connection closed")
	}
	s.frames[connID] = append(s.frames[connID], msg)
	return nil
}

func (s *fakeSender) received(connID string) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames[connID]...)
}

type fakeRelay struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (r *fakeRelay) Relay(_ context.Context, namespacedTopic string, _ []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, namespacedTopic)
	return r.err
}

func (r *fakeRelay) relayed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.topics...)
}

func startEngine(t *testing.T, cfg Config) (*Engine, *subscription.Index, *fakeSender) {
	t.Helper()
	index := subscription.New(8)
	sender := newFakeSender()
	e := New(cfg, index, sender)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e, index, sender
}

func subscribe(t *testing.T, index *subscription.Index, appID, publicTopic, connID string) {
	t.Helper()
	if _, _, err := index.Subscribe(appID, publicTopic, connID); err != nil {
		t.Fatalf("Subscribe(%s, %s, %s) error = %v", appID, publicTopic, connID, err)
	}
}

func waitFrames(t *testing.T, s *fakeSender, connID string, n int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := s.received(connID); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("connection %s received %d frames, want %d", connID, len(s.received(connID)), n)
	return nil
}

func TestPublish_DeliversEventFrame(t *testing.T) {
	e, index, sender := startEngine(t, Config{Workers: 2})
	subscribe(t, index, "app1", "chat", "c1")
	subscribe(t, index, "app1", "chat", "c2")

	n, err := e.Publish(context.Background(), "app1", "chat", json.RawMessage(`{"msg":"hi"}`))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Publish() delivered = %d, want 2", n)
	}

	for _, id := range []string{"c1", "c2"} {
		frames := waitFrames(t, sender, id, 1)
		var got protocol.EventFrame
		if err := json.Unmarshal(frames[0], &got); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if got.Type != "event" || got.Topic != "chat" || string(got.Data) != `{"msg":"hi"}` {
			t.Errorf("frame for %s = %+v", id, got)
		}
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	e, _, _ := startEngine(t, Config{Workers: 1})

	n, err := e.Publish(context.Background(), "app1", "empty", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 0 {
		t.Errorf("Publish() delivered = %d, want 0", n)
	}
	if got := e.Stats().Published; got != 1 {
		t.Errorf("Stats().Published = %d, want 1", got)
	}
}

func TestPublish_AppIsolation(t *testing.T) {
	e, index, sender := startEngine(t, Config{Workers: 2})
	subscribe(t, index, "app1", "chat", "c1")
	subscribe(t, index, "app2", "chat", "c2")

	n, err := e.Publish(context.Background(), "app1", "chat", json.RawMessage(`1`))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Publish() delivered = %d, want 1", n)
	}
	waitFrames(t, sender, "c1", 1)

	time.Sleep(20 * time.Millisecond)
	if got := sender.received("c2"); len(got) != 0 {
		t.Errorf("app2 subscriber received %d frames from app1, want 0", len(got))
	}
}

func TestPublish_Validation(t *testing.T) {
	e, _, _ := startEngine(t, Config{Workers: 1})

	exactlyMax := `"` + strings.Repeat("a", DefaultMaxPayloadBytes-2) + `"`
	overMax := `"` + strings.Repeat("a", DefaultMaxPayloadBytes-1) + `"`

	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{name: "exactly 1MB accepted", topic: "big", payload: exactlyMax},
		{name: "1MB plus one byte rejected", topic: "big", payload: overMax, wantErr: &protocol.PayloadTooLargeError{}},
		{name: "malformed JSON", topic: "chat", payload: `{"a":`, wantErr: &protocol.InvalidPayloadError{}},
		{name: "empty payload", topic: "chat", payload: ``, wantErr: &protocol.InvalidPayloadError{}},
		{name: "empty topic", topic: "", payload: `{}`, wantErr: &protocol.InvalidTopicError{}},
		{name: "topic with space", topic: "a b", payload: `{}`, wantErr: &protocol.InvalidTopicError{}},
		{name: "scalar payload", topic: "chat", payload: `42`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Publish(context.Background(), "app1", tt.topic, json.RawMessage(tt.payload))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Publish() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Publish() error = nil, want %T", tt.wantErr)
			}
			if got, want := protocol.AsCoded(err).Code(), protocol.AsCoded(tt.wantErr).Code(); got != want {
				t.Errorf("error code = %s, want %s", got, want)
			}
		})
	}
}

func TestPublish_PreservesTopicOrder(t *testing.T) {
	e, index, sender := startEngine(t, Config{Workers: 4, QueueSize: 8})
	subscribe(t, index, "app1", "ordered", "c1")
	subscribe(t, index, "app1", "other", "c1")

	const events = 200
	for i := 0; i < events; i++ {
		if _, err := e.Publish(context.Background(), "app1", "ordered", json.RawMessage(strconv.Itoa(i))); err != nil {
			t.Fatalf("Publish(%d) error = %v", i, err)
		}
		if _, err := e.Publish(context.Background(), "app1", "other", json.RawMessage(`-1`)); err != nil {
			t.Fatalf("Publish(other) error = %v", err)
		}
	}

	frames := waitFrames(t, sender, "c1", 2*events)
	next := 0
	for _, f := range frames {
		var ev protocol.EventFrame
		if err := json.Unmarshal(f, &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if ev.Topic != "ordered" {
			continue
		}
		if got := string(ev.Data); got != strconv.Itoa(next) {
			t.Fatalf("event %d arrived as %s", next, got)
		}
		next++
	}
	if next != events {
		t.Errorf("saw %d ordered events, want %d", next, events)
	}
}

func TestPublish_SendFailureDoesNotStopFanout(t *testing.T) {
	e, index, sender := startEngine(t, Config{Workers: 1})
	sender.fail["gone"] = true
	subscribe(t, index, "app1", "chat", "gone")
	subscribe(t, index, "app1", "chat", "live")

	n, err := e.Publish(context.Background(), "app1", "chat", json.RawMessage(`{}`))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Publish() delivered = %d, want 2 attempted", n)
	}
	waitFrames(t, sender, "live", 1)

	deadline := time.Now().Add(time.Second)
	for e.Stats().Delivered != 1 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := e.Stats().Delivered; got != 1 {
		t.Errorf("Stats().Delivered = %d, want 1", got)
	}
}

func TestPublish_Relay(t *testing.T) {
	index := subscription.New(8)
	e := New(Config{Workers: 1}, index, newFakeSender())
	relay := &fakeRelay{}
	e.SetRelay(relay)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	if _, err := e.Publish(context.Background(), "app1", "chat", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if got := relay.relayed(); len(got) != 1 || got[0] != "app:app1:chat" {
		t.Errorf("relayed = %v, want [app:app1:chat]", got)
	}

	// Rejected events are never relayed.
	if _, err := e.Publish(context.Background(), "app1", "chat", json.RawMessage(`{`)); err == nil {
		t.Fatal("Publish() with bad payload succeeded")
	}
	if got := relay.relayed(); len(got) != 1 {
		t.Errorf("relayed %d events, want 1", len(got))
	}

	// A failing relay does not fail the publish.
	relay.mu.Lock()
	relay.err = errors.New("bus down")
	relay.mu.Unlock()
	if _, err := e.Publish(context.Background(), "app1", "chat", json.RawMessage(`{}`)); err != nil {
		t.Errorf("Publish() with failing relay error = %v, want nil", err)
	}
	if got := e.Stats().RelayErrors; got != 1 {
		t.Errorf("Stats().RelayErrors = %d, want 1", got)
	}
}

func TestDeliverRemote(t *testing.T) {
	index := subscription.New(8)
	sender := newFakeSender()
	e := New(Config{Workers: 2}, index, sender)
	relay := &fakeRelay{}
	e.SetRelay(relay)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	subscribe(t, index, "app1", "chat", "c1")

	if err := e.DeliverRemote(context.Background(), "app:app1:chat", []byte(`{"from":"peer"}`)); err != nil {
		t.Fatalf("DeliverRemote() error = %v", err)
	}
	frames := waitFrames(t, sender, "c1", 1)

	var ev protocol.EventFrame
	if err := json.Unmarshal(frames[0], &ev); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if ev.Topic != "chat" {
		t.Errorf("frame topic = %q, want public topic chat", ev.Topic)
	}
	if got := relay.relayed(); len(got) != 0 {
		t.Errorf("remote event relayed again: %v", got)
	}

	if err := e.DeliverRemote(context.Background(), "chat", []byte(`{}`)); err == nil {
		t.Error("DeliverRemote() with non-namespaced topic succeeded")
	}
	if err := e.DeliverRemote(context.Background(), "app:app1:chat", []byte(`nope`)); err == nil {
		t.Error("DeliverRemote() with invalid JSON succeeded")
	}
	if got := e.Stats().Remote; got != 1 {
		t.Errorf("Stats().Remote = %d, want 1", got)
	}
}

func TestEngine_StoppedRejects(t *testing.T) {
	index := subscription.New(8)
	e := New(Config{Workers: 1}, index, newFakeSender())
	subscribe(t, index, "app1", "chat", "c1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	cancel()
	<-done

	if _, err := e.Publish(context.Background(), "app1", "chat", json.RawMessage(`{}`)); !errors.Is(err, ErrEngineStopped) {
		t.Errorf("Publish() after stop = %v, want ErrEngineStopped", err)
	}
}

func TestWorkerFor_Stable(t *testing.T) {
	e := New(Config{Workers: 8}, subscription.New(8), newFakeSender())
	for _, key := range []string{"app:a:x", "app:b:y", "app:c:z"} {
		w := e.workerFor(key)
		if w < 0 || w >= 8 {
			t.Fatalf("workerFor(%q) = %d out of range", key, w)
		}
		for i := 0; i < 10; i++ {
			if got := e.workerFor(key); got != w {
				t.Fatalf("workerFor(%q) changed from %d to %d", key, w, got)
			}
		}
	}
}

func TestNew_Defaults(t *testing.T) {
	e := New(Config{}, subscription.New(8), newFakeSender())
	st := e.Stats()
	if st.Workers <= 0 {
		t.Errorf("Workers = %d, want NumCPU default", st.Workers)
	}
	if e.cfg.QueueSize != 1024 {
		t.Errorf("QueueSize = %d, want 1024", e.cfg.QueueSize)
	}
	if e.cfg.MaxPayloadBytes != DefaultMaxPayloadBytes {
		t.Errorf("MaxPayloadBytes = %d, want %d", e.cfg.MaxPayloadBytes, DefaultMaxPayloadBytes)
	}
}
