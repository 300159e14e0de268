// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

// Package subscription maintains the mapping from namespaced topics to the
// connections subscribed to them.
//
// The forward map (topic -> connection IDs) is split into shards selected by
// an xxhash of the namespaced topic, each guarded by its own RWMutex, so that
// fan-out lookups on different topics never contend. A reverse map
// (connection ID -> topics), sharded by connection ID, makes RemoveAllFor
// proportional to the number of subscriptions the connection holds.
//
// Lock order is always connection shard, then topic shard.
//
// Connections are referenced by ID only; the index never owns them.
package subscription

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/tomtom215/velyx/internal/topic"
)

// DefaultShardCount is used when New is given a non-positive shard count.
const DefaultShardCount = 64

type shard struct {
	mu     sync.RWMutex
	topics map[string]map[string]struct{}
}

type connShard struct {
	mu     sync.Mutex
	byConn map[string]map[string]struct{}
}

// Index is the subscription index. The zero value is not usable; call New.
type Index struct {
	shards     []*shard
	connShards []*connShard
}

// New creates an index with the given number of shards.
func New(shardCount int) *Index {
	if shardCount <= 0 {
		shardCount = DefaultShardCount
	}
	shards := make([]*shard, shardCount)
	connShards := make([]*connShard, shardCount)
	for i := range shards {
		shards[i] = &shard{topics: make(map[string]map[string]struct{})}
		connShards[i] = &connShard{byConn: make(map[string]map[string]struct{})}
	}
	return &Index{
		shards:     shards,
		connShards: connShards,
	}
}

func (ix *Index) shardFor(key string) *shard {
	return ix.shards[xxhash.Sum64String(key)%uint64(len(ix.shards))]
}

func (ix *Index) connShardFor(connID string) *connShard {
	return ix.connShards[xxhash.Sum64String(connID)%uint64(len(ix.connShards))]
}

// Subscribe validates publicTopic, namespaces it under appID and adds connID
// to its subscriber set. Subscribing again to the same topic is a no-op.
// It returns the namespaced topic and whether a new entry was created.
func (ix *Index) Subscribe(appID, publicTopic, connID string) (string, bool, error) {
	key, err := topic.ValidateAndNamespace(appID, publicTopic)
	if err != nil {
		return "", false, err
	}

	// The reverse entry is recorded under the connection shard lock so a
	// concurrent RemoveAllFor either sees this topic or runs before it.
	cs := ix.connShardFor(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	topics, ok := cs.byConn[connID]
	if !ok {
		topics = make(map[string]struct{})
		cs.byConn[connID] = topics
	}
	if _, exists := topics[key]; exists {
		return key, false, nil
	}
	topics[key] = struct{}{}

	s := ix.shardFor(key)
	s.mu.Lock()
	subs, ok := s.topics[key]
	if !ok {
		subs = make(map[string]struct{})
		s.topics[key] = subs
	}
	subs[connID] = struct{}{}
	s.mu.Unlock()

	return key, true, nil
}

// Unsubscribe removes connID from the topic's subscriber set. Removing an
// absent subscription is not an error; an invalid topic still is.
func (ix *Index) Unsubscribe(appID, publicTopic, connID string) (bool, error) {
	key, err := topic.ValidateAndNamespace(appID, publicTopic)
	if err != nil {
		return false, err
	}

	cs := ix.connShardFor(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	topics, ok := cs.byConn[connID]
	if !ok {
		return false, nil
	}
	if _, exists := topics[key]; !exists {
		return false, nil
	}
	delete(topics, key)
	if len(topics) == 0 {
		delete(cs.byConn, connID)
	}

	ix.removeFromShard(key, connID)
	return true, nil
}

// SubscribersOf returns a snapshot of the connection IDs subscribed to the
// namespaced topic. The returned slice is owned by the caller.
func (ix *Index) SubscribersOf(namespacedTopic string) []string {
	s := ix.shardFor(namespacedTopic)
	s.mu.RLock()
	defer s.mu.RUnlock()

	subs := s.topics[namespacedTopic]
	if len(subs) == 0 {
		return nil
	}
	out := make([]string, 0, len(subs))
	for id := range subs {
		out = append(out, id)
	}
	return out
}

// RemoveAllFor drops every subscription held by connID and returns how many
// were removed.
func (ix *Index) RemoveAllFor(connID string) int {
	cs := ix.connShardFor(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	topics, ok := cs.byConn[connID]
	if !ok {
		return 0
	}
	delete(cs.byConn, connID)

	for key := range topics {
		ix.removeFromShard(key, connID)
	}
	return len(topics)
}

func (ix *Index) removeFromShard(key, connID string) {
	s := ix.shardFor(key)
	s.mu.Lock()
	if subs, ok := s.topics[key]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(s.topics, key)
		}
	}
	s.mu.Unlock()
}

// TopicsFor returns the namespaced topics connID is subscribed to.
func (ix *Index) TopicsFor(connID string) []string {
	cs := ix.connShardFor(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()

	topics := cs.byConn[connID]
	out := make([]string, 0, len(topics))
	for key := range topics {
		out = append(out, key)
	}
	return out
}

// CountFor returns the number of subscriptions held by connID.
func (ix *Index) CountFor(connID string) int {
	cs := ix.connShardFor(connID)
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.byConn[connID])
}

// TopicCount returns the number of topics with at least one subscriber.
func (ix *Index) TopicCount() int {
	total := 0
	for _, s := range ix.shards {
		s.mu.RLock()
		total += len(s.topics)
		s.mu.RUnlock()
	}
	return total
}

// SubscriptionCount returns the total number of (topic, connection) entries.
func (ix *Index) SubscriptionCount() int {
	total := 0
	for _, cs := range ix.connShards {
		cs.mu.Lock()
		for _, topics := range cs.byConn {
			total += len(topics)
		}
		cs.mu.Unlock()
	}
	return total
}
