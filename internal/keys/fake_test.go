// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package keys

import (
	"context"
	"sync"
)

// fakeRegistry is an in-memory Registry that counts backend calls.
type fakeRegistry struct {
	mu           sync.Mutex
	apps         map[string]bool   // appID -> revoked
	apiKeys      map[string]string // apiKey -> appID
	err          error
	resolveCalls int
	revokeCalls  int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		apps:    map[string]bool{"app1": false, "gone": true},
		apiKeys: map[string]string{"key-app1": "app1", "key-gone": "gone"},
	}
}

func (f *fakeRegistry) ResolveAppID(_ context.Context, credential string) (Resolution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if f.err != nil {
		return Resolution{}, f.err
	}
	if _, ok := f.apps[credential]; ok {
		return Resolution{AppID: credential}, nil
	}
	if appID, ok := f.apiKeys[credential]; ok {
		return Resolution{AppID: appID, Secret: true}, nil
	}
	return Resolution{}, ErrNotFound
}

func (f *fakeRegistry) IsRevoked(_ context.Context, appID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revokeCalls++
	if f.err != nil {
		return false, f.err
	}
	revoked, ok := f.apps[appID]
	if !ok {
		return false, ErrNotFound
	}
	return revoked, nil
}

func (f *fakeRegistry) setRevoked(appID string, revoked bool) {
	f.mu.Lock()
	f.apps[appID] = revoked
	f.mu.Unlock()
}

func (f *fakeRegistry) calls() (resolve, revoke int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolveCalls, f.revokeCalls
}
