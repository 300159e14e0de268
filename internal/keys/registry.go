// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/velyx/internal/config"
	"github.com/tomtom215/velyx/internal/logging"
)

// ErrNotFound is returned when a credential or app does not exist.
var ErrNotFound = errors.New("credential not found")

// Resolution is the result of resolving a credential.
type Resolution struct {
	AppID string `json:"appId"`

	// Secret is true when the credential was an API key rather than the
	// public app ID.
	Secret bool `json:"secret"`
}

// Registry is the key registry contract.
type Registry interface {
	// ResolveAppID maps an API key or an app ID to its application.
	// Unknown credentials return ErrNotFound.
	ResolveAppID(ctx context.Context, credential string) (Resolution, error)

	// IsRevoked reports whether the application has been revoked.
	// Unknown apps return ErrNotFound.
	IsRevoked(ctx context.Context, appID string) (bool, error)
}

// Pinger is implemented by registries that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks reg when it implements Pinger.
func Ping(ctx context.Context, reg Registry) error {
	if p, ok := reg.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Open builds the registry selected by cfg, wrapped in a cache. The returned
// close func releases the backend and the cache.
func Open(ctx context.Context, cfg *config.KeysConfig) (*CachedRegistry, func() error, error) {
	var (
		backend Registry
		closer  func() error
	)

	switch cfg.Backend {
	case "remote":
		backend = NewRemoteRegistry(RemoteConfig{
			BaseURL:          cfg.RemoteURL,
			Token:            cfg.RemoteToken,
			Timeout:          cfg.RemoteTimeout,
			FailureThreshold: cfg.BreakerFailures,
			BreakerTimeout:   cfg.BreakerTimeout,
		})
		closer = func() error { return nil }

	case "badger", "":
		db, err := OpenBadger(cfg.BadgerPath, cfg.InMemory)
		if err != nil {
			return nil, nil, err
		}
		store := NewBadgerRegistry(db)
		if err := store.Seed(ctx, cfg.Seed, cfg.Revoked); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("seed key store: %w", err)
		}
		backend = store
		closer = store.Close

	default:
		return nil, nil, fmt.Errorf("unknown key backend %q", cfg.Backend)
	}

	cached := NewCachedRegistry(backend, CacheConfig{
		TTL:           cfg.CacheTTL,
		NegativeTTL:   cfg.NegativeCacheTTL,
		RevocationTTL: cfg.RevocationCacheTTL,
		Capacity:      cfg.CacheCapacity,
	})
	cached.Start()

	logging.Info().
		Str("backend", cfg.Backend).
		Dur("cache_ttl", cfg.CacheTTL).
		Dur("revocation_ttl", cfg.RevocationCacheTTL).
		Msg("Key registry ready")

	return cached, func() error {
		cached.Stop()
		return closer()
	}, nil
}

// lookupResult labels registry lookup metrics.
func lookupResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
