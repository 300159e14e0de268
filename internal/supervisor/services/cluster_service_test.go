// Velyx - Real-time Pub/Sub Event Routing
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/velyx

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type blockingRunner struct {
	runs atomic.Int32
}

func (r *blockingRunner) Run(ctx context.Context) error {
	r.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (r *blockingRunner) RunWithContext(ctx context.Context) error {
	return r.Run(ctx)
}

type fakeBridge struct {
	runErrs chan error
	runs    atomic.Int32
	closes  atomic.Int32
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{runErrs: make(chan error, 4)}
}

func (b *fakeBridge) Run(ctx context.Context) error {
	b.runs.Add(1)
	select {
	case err := <-b.runErrs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *fakeBridge) Close() error {
	b.closes.Add(1)
	return nil
}

type fakeNATS struct {
	running   atomic.Bool
	shutdowns atomic.Int32
}

func (n *fakeNATS) IsRunning() bool { return n.running.Load() }

func (n *fakeNATS) Shutdown(ctx context.Context) error {
	n.shutdowns.Add(1)
	n.running.Store(false)
	return nil
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestMessagingServices(t *testing.T) {
	runner := &blockingRunner{}
	mgr := NewConnectionManagerService(runner)
	fan := NewFanoutService(runner)

	if mgr.String() != "connection-manager" || fan.String() != "fanout-engine" {
		t.Errorf("names = %q, %q", mgr.String(), fan.String())
	}

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 2)
	go func() { errs <- mgr.Serve(ctx) }()
	go func() { errs <- fan.Serve(ctx) }()

	eventually(t, func() bool { return runner.runs.Load() == 2 })
	cancel()

	for i := 0; i < 2; i++ {
		if err := <-errs; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	}
}

func TestClusterBridgeService_RestartsAfterFailure(t *testing.T) {
	bridge := newFakeBridge()
	bridge.runErrs <- errors.New("subscribe failed")

	sup := suture.New("test-cluster", suture.Spec{
		FailureThreshold: 5,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewClusterBridgeService(bridge))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	eventually(t, func() bool { return bridge.runs.Load() >= 2 })
	if bridge.closes.Load() != 0 {
		t.Error("bridge closed before shutdown")
	}

	cancel()
	<-errCh

	if bridge.closes.Load() != 1 {
		t.Errorf("Close called %d times, want 1", bridge.closes.Load())
	}
}

func TestEmbeddedNATSService(t *testing.T) {
	t.Run("shuts server down on cancellation", func(t *testing.T) {
		nats := &fakeNATS{}
		nats.running.Store(true)
		svc := NewEmbeddedNATSService(nats, 0)
		if svc.shutdownTimeout != 5*time.Second {
			t.Errorf("default shutdown timeout = %v", svc.shutdownTimeout)
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() { errCh <- svc.Serve(ctx) }()
		cancel()

		if err := <-errCh; !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v", err)
		}
		if nats.shutdowns.Load() != 1 {
			t.Errorf("Shutdown called %d times, want 1", nats.shutdowns.Load())
		}
	})

	t.Run("does not restart a dead server", func(t *testing.T) {
		nats := &fakeNATS{}
		svc := NewEmbeddedNATSService(nats, time.Second)
		svc.checkInterval = 5 * time.Millisecond

		err := svc.Serve(context.Background())
		if !errors.Is(err, suture.ErrDoNotRestart) {
			t.Errorf("Serve returned %v, want ErrDoNotRestart", err)
		}
	})
}
