// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package api

import (
	"math"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/tomtom215/velyx/internal/protocol"
)

// Publish rate limiter defaults.
const (
	DefaultPublishRate  = 10000 // events per second per API key
	DefaultPublishBurst = 10000
	DefaultLimiterTTL   = time.Minute
)

// KeyLimiter holds one token bucket per API key. Buckets of keys that stop
// publishing expire after the idle TTL.
type KeyLimiter struct {
	limit    rate.Limit
	burst    int
	limiters *ttlcache.Cache[string, *rate.Limiter]
}

// NewKeyLimiter creates a limiter allowing perSecond events per key with the
// given burst. Call Start to evict idle buckets.
func NewKeyLimiter(perSecond float64, burst int, idleTTL time.Duration) *KeyLimiter {
	if perSecond <= 0 {
		perSecond = DefaultPublishRate
	}
	if burst <= 0 {
		burst = int(math.Ceil(perSecond))
	}
	if idleTTL <= 0 {
		idleTTL = DefaultLimiterTTL
	}
	return &KeyLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		limiters: ttlcache.New[string, *rate.Limiter](ttlcache.WithTTL[string, *rate.Limiter](idleTTL)),
	}
}

// Start runs the eviction loop in the background.
func (l *KeyLimiter) Start() {
	go l.limiters.Start()
}

// Stop ends the eviction loop.
func (l *KeyLimiter) Stop() {
	l.limiters.Stop()
}

// Allow takes one token for apiKey. When the bucket is empty it returns a
// RateLimitError with the whole seconds until a token is available.
func (l *KeyLimiter) Allow(apiKey string) error {
	lim := l.limiterFor(apiKey)

	res := lim.Reserve()
	if !res.OK() {
		return &protocol.RateLimitError{RetryAfter: 1}
	}
	delay := res.Delay()
	if delay == 0 {
		return nil
	}
	res.Cancel()

	retry := int(math.Ceil(delay.Seconds()))
	if retry < 1 {
		retry = 1
	}
	return &protocol.RateLimitError{RetryAfter: retry}
}

// Len returns the number of live buckets.
func (l *KeyLimiter) Len() int {
	return l.limiters.Len()
}

// limiterFor keys buckets by a hash so raw keys are not held in the cache.
func (l *KeyLimiter) limiterFor(apiKey string) *rate.Limiter {
	key := strconv.FormatUint(xxhash.Sum64String(apiKey), 16)
	item, _ := l.limiters.GetOrSet(key, rate.NewLimiter(l.limit, l.burst))
	return item.Value()
}
