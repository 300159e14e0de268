// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package keys

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/tomtom215/velyx/internal/metrics"
)

// CacheConfig holds the cache lifetimes.
type CacheConfig struct {
	TTL           time.Duration // resolved credentials
	NegativeTTL   time.Duration // unknown credentials
	RevocationTTL time.Duration // revoked flags
	Capacity      uint64
}

type resolveEntry struct {
	res      Resolution
	notFound bool
}

// CachedRegistry caches another Registry. Backend errors other than
// ErrNotFound are never cached.
type CachedRegistry struct {
	next        Registry
	negativeTTL time.Duration
	resolved    *ttlcache.Cache[string, resolveEntry]
	revoked     *ttlcache.Cache[string, bool]
}

// NewCachedRegistry wraps next. Call Start before use and Stop when done.
func NewCachedRegistry(next Registry, cfg CacheConfig) *CachedRegistry {
	if cfg.TTL <= 0 {
		cfg.TTL = time.Minute
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = 5 * time.Second
	}
	if cfg.RevocationTTL <= 0 {
		cfg.RevocationTTL = 10 * time.Second
	}

	resolveOpts := []ttlcache.Option[string, resolveEntry]{
		ttlcache.WithTTL[string, resolveEntry](cfg.TTL),
		ttlcache.WithDisableTouchOnHit[string, resolveEntry](),
	}
	revokedOpts := []ttlcache.Option[string, bool]{
		ttlcache.WithTTL[string, bool](cfg.RevocationTTL),
		ttlcache.WithDisableTouchOnHit[string, bool](),
	}
	if cfg.Capacity > 0 {
		resolveOpts = append(resolveOpts, ttlcache.WithCapacity[string, resolveEntry](cfg.Capacity))
		revokedOpts = append(revokedOpts, ttlcache.WithCapacity[string, bool](cfg.Capacity))
	}

	return &CachedRegistry{
		next:        next,
		negativeTTL: cfg.NegativeTTL,
		resolved:    ttlcache.New(resolveOpts...),
		revoked:     ttlcache.New(revokedOpts...),
	}
}

// Start runs the expiry loops.
func (c *CachedRegistry) Start() {
	go c.resolved.Start()
	go c.revoked.Start()
}

// Stop ends the expiry loops.
func (c *CachedRegistry) Stop() {
	c.resolved.Stop()
	c.revoked.Stop()
}

// ResolveAppID serves from cache or asks the backend.
func (c *CachedRegistry) ResolveAppID(ctx context.Context, credential string) (Resolution, error) {
	// Secrets are cached under their digest.
	sum := sha256.Sum256([]byte(credential))
	key := hex.EncodeToString(sum[:])

	if item := c.resolved.Get(key); item != nil {
		metrics.RecordKeyCache("resolve", true)
		entry := item.Value()
		if entry.notFound {
			return Resolution{}, ErrNotFound
		}
		return entry.res, nil
	}
	metrics.RecordKeyCache("resolve", false)

	res, err := c.next.ResolveAppID(ctx, credential)
	switch {
	case err == nil:
		c.resolved.Set(key, resolveEntry{res: res}, ttlcache.DefaultTTL)
	case errors.Is(err, ErrNotFound):
		c.resolved.Set(key, resolveEntry{notFound: true}, c.negativeTTL)
	}
	return res, err
}

// IsRevoked serves from cache or asks the backend.
func (c *CachedRegistry) IsRevoked(ctx context.Context, appID string) (bool, error) {
	if item := c.revoked.Get(appID); item != nil {
		metrics.RecordKeyCache("revoked", true)
		return item.Value(), nil
	}
	metrics.RecordKeyCache("revoked", false)

	revoked, err := c.next.IsRevoked(ctx, appID)
	if err != nil {
		return false, err
	}
	c.revoked.Set(appID, revoked, ttlcache.DefaultTTL)
	return revoked, nil
}

// Ping forwards to the backend.
func (c *CachedRegistry) Ping(ctx context.Context) error {
	return Ping(ctx, c.next)
}

// Len returns the number of cached resolutions.
func (c *CachedRegistry) Len() int {
	return c.resolved.Len()
}
