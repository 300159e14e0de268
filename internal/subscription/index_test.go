// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package subscription

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/tomtom215/velyx/internal/protocol"
	"github.com/tomtom215/velyx/internal/topic"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSubscribe_Idempotent(t *testing.T) {
	ix := New(4)

	key, created, err := ix.Subscribe("app1", "chat:room-1", "c1")
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}
	if !created {
		t.Error("first subscribe should create an entry")
	}
	if key != "app:app1:chat:room-1" {
		t.Errorf("key = %q", key)
	}

	_, created, err = ix.Subscribe("app1", "chat:room-1", "c1")
	if err != nil {
		t.Fatalf("second Subscribe() error = %v", err)
	}
	if created {
		t.Error("second subscribe should be a no-op")
	}

	subs := ix.SubscribersOf(key)
	if len(subs) != 1 || subs[0] != "c1" {
		t.Errorf("SubscribersOf() = %v, want [c1]", subs)
	}
	if ix.SubscriptionCount() != 1 {
		t.Errorf("SubscriptionCount() = %d, want 1", ix.SubscriptionCount())
	}
}

func TestSubscribe_InvalidTopic(t *testing.T) {
	ix := New(4)

	tooLong := strings.Repeat("x", topic.MaxLength+1)
	for _, bad := range []string{"", "has space", "dots.not.allowed", tooLong} {
		_, _, err := ix.Subscribe("app1", bad, "c1")
		var invalid *protocol.InvalidTopicError
		if !errors.As(err, &invalid) {
			t.Errorf("Subscribe(%q) error = %v, want InvalidTopicError", bad, err)
		}
	}
	if ix.SubscriptionCount() != 0 {
		t.Errorf("invalid subscribes must not create entries, got %d", ix.SubscriptionCount())
	}
}

func TestSubscribe_NamespaceIsolation(t *testing.T) {
	ix := New(4)

	mustSubscribe(t, ix, "app1", "chat:room-1", "c1")
	mustSubscribe(t, ix, "app2", "chat:room-1", "c2")

	got := ix.SubscribersOf(topic.Namespace("app1", "chat:room-1"))
	if len(got) != 1 || got[0] != "c1" {
		t.Errorf("app1 subscribers = %v, want [c1]", got)
	}
	got = ix.SubscribersOf(topic.Namespace("app2", "chat:room-1"))
	if len(got) != 1 || got[0] != "c2" {
		t.Errorf("app2 subscribers = %v, want [c2]", got)
	}
}

func TestUnsubscribe(t *testing.T) {
	ix := New(4)
	mustSubscribe(t, ix, "app1", "chat:room-1", "c1")
	mustSubscribe(t, ix, "app1", "chat:room-1", "c2")

	removed, err := ix.Unsubscribe("app1", "chat:room-1", "c1")
	if err != nil || !removed {
		t.Fatalf("Unsubscribe() = (%v, %v), want (true, nil)", removed, err)
	}

	got := ix.SubscribersOf(topic.Namespace("app1", "chat:room-1"))
	if len(got) != 1 || got[0] != "c2" {
		t.Errorf("SubscribersOf() = %v, want [c2]", got)
	}

	t.Run("absent subscription is a no-op", func(t *testing.T) {
		removed, err := ix.Unsubscribe("app1", "never:subscribed", "c1")
		if err != nil {
			t.Errorf("Unsubscribe() error = %v, want nil", err)
		}
		if removed {
			t.Error("Unsubscribe() reported removal of an absent entry")
		}
	})

	t.Run("unknown connection is a no-op", func(t *testing.T) {
		removed, err := ix.Unsubscribe("app1", "chat:room-1", "ghost")
		if err != nil || removed {
			t.Errorf("Unsubscribe() = (%v, %v), want (false, nil)", removed, err)
		}
	})

	t.Run("invalid topic is still rejected", func(t *testing.T) {
		if _, err := ix.Unsubscribe("app1", "bad topic", "c1"); err == nil {
			t.Error("expected InvalidTopicError")
		}
	})

	t.Run("last subscriber removes the topic", func(t *testing.T) {
		if _, err := ix.Unsubscribe("app1", "chat:room-1", "c2"); err != nil {
			t.Fatal(err)
		}
		if ix.TopicCount() != 0 {
			t.Errorf("TopicCount() = %d, want 0", ix.TopicCount())
		}
	})
}

func TestRemoveAllFor(t *testing.T) {
	ix := New(8)
	for i := 0; i < 10; i++ {
		mustSubscribe(t, ix, "app1", fmt.Sprintf("topic:%d", i), "c1")
	}
	mustSubscribe(t, ix, "app1", "topic:0", "c2")

	if n := ix.CountFor("c1"); n != 10 {
		t.Fatalf("CountFor(c1) = %d, want 10", n)
	}

	if removed := ix.RemoveAllFor("c1"); removed != 10 {
		t.Errorf("RemoveAllFor() = %d, want 10", removed)
	}
	if removed := ix.RemoveAllFor("c1"); removed != 0 {
		t.Errorf("second RemoveAllFor() = %d, want 0", removed)
	}

	for i := 1; i < 10; i++ {
		if subs := ix.SubscribersOf(topic.Namespace("app1", fmt.Sprintf("topic:%d", i))); len(subs) != 0 {
			t.Errorf("topic:%d still has subscribers %v", i, subs)
		}
	}
	subs := ix.SubscribersOf(topic.Namespace("app1", "topic:0"))
	if len(subs) != 1 || subs[0] != "c2" {
		t.Errorf("topic:0 subscribers = %v, want [c2]", subs)
	}
	if ix.TopicCount() != 1 {
		t.Errorf("TopicCount() = %d, want 1", ix.TopicCount())
	}
}

func TestTopicsFor(t *testing.T) {
	ix := New(2)
	mustSubscribe(t, ix, "app1", "b", "c1")
	mustSubscribe(t, ix, "app1", "a", "c1")

	got := ix.TopicsFor("c1")
	sort.Strings(got)
	want := []string{"app:app1:a", "app:app1:b"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("TopicsFor() = %v, want %v", got, want)
	}
	if got := ix.TopicsFor("nobody"); len(got) != 0 {
		t.Errorf("TopicsFor(nobody) = %v, want empty", got)
	}
}

func TestSubscribersOf_SnapshotIsCopy(t *testing.T) {
	ix := New(1)
	mustSubscribe(t, ix, "app1", "t", "c1")

	snap := ix.SubscribersOf("app:app1:t")
	mustSubscribe(t, ix, "app1", "t", "c2")

	if len(snap) != 1 {
		t.Errorf("snapshot changed after later subscribe: %v", snap)
	}
}

func TestNew_DefaultShards(t *testing.T) {
	ix := New(0)
	if len(ix.shards) != DefaultShardCount {
		t.Errorf("shard count = %d, want %d", len(ix.shards), DefaultShardCount)
	}
}

func TestConcurrentMutationAndLookup(t *testing.T) {
	ix := New(16)
	const conns = 32
	const topics = 16

	var wg sync.WaitGroup
	for c := 0; c < conns; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			connID := fmt.Sprintf("c%d", c)
			for i := 0; i < topics; i++ {
				if _, _, err := ix.Subscribe("app1", fmt.Sprintf("t:%d", i), connID); err != nil {
					t.Errorf("Subscribe() error = %v", err)
					return
				}
			}
			if c%2 == 0 {
				ix.RemoveAllFor(connID)
			}
		}(c)
	}

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = ix.SubscribersOf(topic.Namespace("app1", fmt.Sprintf("t:%d", i%topics)))
			}
		}()
	}
	wg.Wait()

	for i := 0; i < topics; i++ {
		subs := ix.SubscribersOf(topic.Namespace("app1", fmt.Sprintf("t:%d", i)))
		if len(subs) != conns/2 {
			t.Errorf("t:%d has %d subscribers, want %d", i, len(subs), conns/2)
		}
	}
	if got := ix.SubscriptionCount(); got != conns/2*topics {
		t.Errorf("SubscriptionCount() = %d, want %d", got, conns/2*topics)
	}
}

func mustSubscribe(t *testing.T, ix *Index, appID, publicTopic, connID string) {
	t.Helper()
	if _, _, err := ix.Subscribe(appID, publicTopic, connID); err != nil {
		t.Fatalf("Subscribe(%q, %q, %q) error = %v", appID, publicTopic, connID, err)
	}
}
