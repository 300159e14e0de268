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
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"golang.org/x/crypto/bcrypt"

	"github.com/tomtom215/velyx/internal/logging"
	"github.com/tomtom215/velyx/internal/metrics"
	"github.com/tomtom215/velyx/internal/validation"
)

// Key prefixes for BadgerDB storage
const (
	appKeyPrefix    = "app:"
	apiKeyKeyPrefix = "apikey:"
)

// lookupPrefixLength is the number of hex digits of the key digest used to
// narrow the bcrypt comparison to a handful of candidates.
const lookupPrefixLength = 12

const backendBadger = "badger"

// App is a registered application.
type App struct {
	ID        string    `json:"id"`
	Revoked   bool      `json:"revoked"`
	CreatedAt time.Time `json:"createdAt"`
}

type storedKey struct {
	AppID     string    `json:"appId"`
	Hash      []byte    `json:"hash"`
	CreatedAt time.Time `json:"createdAt"`
}

// OpenBadger opens the key database at path, or an in-memory database when
// inMemory is set.
func OpenBadger(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	return db, nil
}

// BadgerRegistry implements Registry on an embedded BadgerDB.
type BadgerRegistry struct {
	db       *badger.DB
	hashCost int
}

// BadgerOption configures a BadgerRegistry.
type BadgerOption func(*BadgerRegistry)

// WithHashCost sets the bcrypt cost used when storing keys.
func WithHashCost(cost int) BadgerOption {
	return func(r *BadgerRegistry) { r.hashCost = cost }
}

// NewBadgerRegistry creates a registry on db. The registry owns db.
func NewBadgerRegistry(db *badger.DB, opts ...BadgerOption) *BadgerRegistry {
	r := &BadgerRegistry{db: db, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Close closes the underlying database.
func (r *BadgerRegistry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

// Ping fails once the database is closed.
func (r *BadgerRegistry) Ping(_ context.Context) error {
	if r.db.IsClosed() {
		return errors.New("key store is closed")
	}
	return nil
}

// CreateApp registers appID. Creating an existing app is a no-op.
func (r *BadgerRegistry) CreateApp(_ context.Context, appID string) error {
	if err := validation.ValidateAppID(appID); err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(appKeyPrefix + appID)
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("get app: %w", err)
		}
		data, err := json.Marshal(App{ID: appID, CreatedAt: time.Now().UTC()})
		if err != nil {
			return fmt.Errorf("marshal app: %w", err)
		}
		return txn.Set(key, data)
	})
}

// AddKey stores apiKey for an existing app.
func (r *BadgerRegistry) AddKey(ctx context.Context, appID, apiKey string) error {
	if apiKey == "" {
		return errors.New("api key is empty")
	}
	if _, err := r.getApp(ctx, appID); err != nil {
		return err
	}

	digest := digestKey(apiKey)
	hash, err := bcrypt.GenerateFromPassword(digest[:], r.hashCost)
	if err != nil {
		return fmt.Errorf("hash api key: %w", err)
	}
	data, err := json.Marshal(storedKey{AppID: appID, Hash: hash, CreatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal api key: %w", err)
	}

	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(apiKeyStorageKey(digest, appID), data)
	})
}

// Revoke marks appID revoked. Its credentials stay stored but no longer
// authenticate.
func (r *BadgerRegistry) Revoke(ctx context.Context, appID string) error {
	return r.setRevoked(ctx, appID, true)
}

// Restore clears the revoked flag.
func (r *BadgerRegistry) Restore(ctx context.Context, appID string) error {
	return r.setRevoked(ctx, appID, false)
}

func (r *BadgerRegistry) setRevoked(_ context.Context, appID string, revoked bool) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := []byte(appKeyPrefix + appID)
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get app: %w", err)
		}
		var app App
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &app)
		}); err != nil {
			return fmt.Errorf("decode app: %w", err)
		}
		app.Revoked = revoked
		data, err := json.Marshal(app)
		if err != nil {
			return fmt.Errorf("marshal app: %w", err)
		}
		return txn.Set(key, data)
	})
}

// ResolveAppID resolves a public app ID or a secret API key.
func (r *BadgerRegistry) ResolveAppID(ctx context.Context, credential string) (res Resolution, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordKeyLookup(backendBadger, "resolve", lookupResult(err), time.Since(start))
	}()

	if credential == "" {
		return Resolution{}, ErrNotFound
	}

	if validation.ValidateAppID(credential) == nil {
		if _, err := r.getApp(ctx, credential); err == nil {
			return Resolution{AppID: credential}, nil
		} else if !errors.Is(err, ErrNotFound) {
			return Resolution{}, err
		}
	}

	appID, err := r.matchKey(credential)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{AppID: appID, Secret: true}, nil
}

// IsRevoked reports the revoked flag of appID.
func (r *BadgerRegistry) IsRevoked(ctx context.Context, appID string) (revoked bool, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordKeyLookup(backendBadger, "revoked", lookupResult(err), time.Since(start))
	}()

	app, err := r.getApp(ctx, appID)
	if err != nil {
		return false, err
	}
	return app.Revoked, nil
}

func (r *BadgerRegistry) getApp(_ context.Context, appID string) (*App, error) {
	var app App
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(appKeyPrefix + appID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get app: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &app)
		})
	})
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// matchKey scans the keys sharing the credential's digest prefix and returns
// the app of the first bcrypt match.
func (r *BadgerRegistry) matchKey(credential string) (string, error) {
	digest := digestKey(credential)
	prefix := []byte(apiKeyKeyPrefix + hex.EncodeToString(digest[:])[:lookupPrefixLength] + ":")

	var appID string
	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var stored storedKey
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &stored)
			}); err != nil {
				return fmt.Errorf("decode api key: %w", err)
			}
			if bcrypt.CompareHashAndPassword(stored.Hash, digest[:]) == nil {
				appID = stored.AppID
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return "", err
	}
	return appID, nil
}

// Seed registers the "appId:apiKey" pairs in entries and revokes the apps
// listed in revoked. Seeded apps missing from revoked are restored, so the
// revoked list is authoritative across restarts of a persistent store.
// Seeding is idempotent; an existing key is re-hashed.
func (r *BadgerRegistry) Seed(ctx context.Context, entries, revoked []string) error {
	revokedSet := make(map[string]struct{}, len(revoked))
	for _, appID := range revoked {
		revokedSet[appID] = struct{}{}
	}

	for _, entry := range entries {
		appID, apiKey, ok := strings.Cut(entry, ":")
		if !ok || appID == "" || apiKey == "" {
			return fmt.Errorf("invalid seed entry for app %q: want appId:apiKey", appID)
		}
		if err := r.CreateApp(ctx, appID); err != nil {
			return fmt.Errorf("create app %s: %w", appID, err)
		}
		if err := r.AddKey(ctx, appID, apiKey); err != nil {
			return fmt.Errorf("add key for %s: %w", appID, err)
		}
		if _, ok := revokedSet[appID]; !ok {
			if err := r.Restore(ctx, appID); err != nil {
				return fmt.Errorf("restore %s: %w", appID, err)
			}
		}
	}
	for _, appID := range revoked {
		if err := r.Revoke(ctx, appID); err != nil {
			if errors.Is(err, ErrNotFound) {
				logging.Warn().Str("app_id", appID).Msg("Revoked app is not registered")
				continue
			}
			return fmt.Errorf("revoke %s: %w", appID, err)
		}
	}
	if len(entries) > 0 || len(revoked) > 0 {
		logging.Info().Int("apps", len(entries)).Int("revoked", len(revoked)).Msg("Key store seeded")
	}
	return nil
}

// digestKey pre-hashes an API key so bcrypt's 72-byte input limit never
// truncates it.
func digestKey(apiKey string) [sha256.Size]byte {
	return sha256.Sum256([]byte(apiKey))
}

func apiKeyStorageKey(digest [sha256.Size]byte, appID string) []byte {
	return []byte(apiKeyKeyPrefix + hex.EncodeToString(digest[:])[:lookupPrefixLength] + ":" + appID)
}
