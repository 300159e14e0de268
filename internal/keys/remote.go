// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package keys

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/velyx/internal/breaker"
	"github.com/tomtom215/velyx/internal/metrics"
)

const backendRemote = "remote"

// maxRemoteBody caps key service responses.
const maxRemoteBody = 64 << 10

// errCallerGone marks calls abandoned by the caller's context. The key
// service may be healthy, so the breaker does not count them.
var errCallerGone = errors.New("key lookup abandoned by caller")

// RemoteConfig configures a RemoteRegistry.
type RemoteConfig struct {
	BaseURL          string
	Token            string // sent as a Bearer token when set
	Timeout          time.Duration
	FailureThreshold uint32
	BreakerTimeout   time.Duration
	HTTPClient       *http.Client
}

// RemoteRegistry resolves credentials through an external key service:
//
//	POST {base}/keys/resolve {"credential":"..."} -> {"appId":"...","secret":true}
//	GET  {base}/apps/{appId}                      -> {"id":"...","revoked":false}
//
// Credentials travel in the request body so API keys stay out of access
// logs. A 404 maps to ErrNotFound and does not count against the breaker,
// and neither do calls whose context was canceled or expired.
type RemoteRegistry struct {
	baseURL string
	token   string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewRemoteRegistry creates a remote registry client.
func NewRemoteRegistry(cfg RemoteConfig) *RemoteRegistry {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &RemoteRegistry{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  client,
		cb: breaker.New[[]byte](breaker.Config{
			Name:             "key-registry",
			MaxRequests:      3,
			Interval:         time.Minute,
			Timeout:          cfg.BreakerTimeout,
			FailureThreshold: cfg.FailureThreshold,
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound) || errors.Is(err, errCallerGone)
			},
		}),
	}
}

// ResolveAppID asks the key service which app owns credential.
func (r *RemoteRegistry) ResolveAppID(ctx context.Context, credential string) (res Resolution, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordKeyLookup(backendRemote, "resolve", lookupResult(err), time.Since(start))
	}()

	if credential == "" {
		return Resolution{}, ErrNotFound
	}
	reqBody, err := json.Marshal(resolveRequest{Credential: credential})
	if err != nil {
		return Resolution{}, fmt.Errorf("encode resolve request: %w", err)
	}
	body, err := r.do(ctx, http.MethodPost, "/keys/resolve", reqBody)
	if err != nil {
		return Resolution{}, err
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return Resolution{}, fmt.Errorf("decode resolve response: %w", err)
	}
	if res.AppID == "" {
		return Resolution{}, ErrNotFound
	}
	return res, nil
}

// IsRevoked fetches the app record from the key service.
func (r *RemoteRegistry) IsRevoked(ctx context.Context, appID string) (revoked bool, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordKeyLookup(backendRemote, "revoked", lookupResult(err), time.Since(start))
	}()

	body, err := r.do(ctx, http.MethodGet, "/apps/"+url.PathEscape(appID), nil)
	if err != nil {
		return false, err
	}
	var app App
	if err := json.Unmarshal(body, &app); err != nil {
		return false, fmt.Errorf("decode app response: %w", err)
	}
	return app.Revoked, nil
}

// Ping fails while the breaker is open.
func (r *RemoteRegistry) Ping(_ context.Context) error {
	if r.cb.State() == gobreaker.StateOpen {
		return fmt.Errorf("key service circuit is open")
	}
	return nil
}

type resolveRequest struct {
	Credential string `json:"credential"`
}

func (r *RemoteRegistry) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", errCallerGone, err)
	}
	return breaker.Execute(r.cb, func() ([]byte, error) {
		body, err := r.roundTrip(ctx, method, path, payload)
		if err != nil && ctx.Err() != nil && !errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", errCallerGone, err)
		}
		return body, err
	})
}

func (r *RemoteRegistry) roundTrip(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	var reqBody io.Reader = http.NoBody
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("key service request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, fmt.Errorf("read key service response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("key service returned %d", resp.StatusCode)
	}
	return body, nil
}
