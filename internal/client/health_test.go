package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestHealthMonitor_InvalidSpec(t *testing.T) {
	c := NewWebhookClient("http://example.invalid")
	if _, err := NewHealthMonitor(c, "http://example.invalid/health", "not a schedule"); err == nil {
		t.Fatalf("expected error for invalid schedule, got nil")
	}
}

func TestHealthMonitor_ProbeFlipsConnected(t *testing.T) {
	var up atomic.Bool
	up.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if up.Load() {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL)
	m, err := NewHealthMonitor(c, srv.URL+"/health", "@every 1h")
	if err != nil {
		t.Fatalf("NewHealthMonitor() error: %v", err)
	}

	if ok := m.Probe(context.Background()); !ok || !c.Connected() {
		t.Fatalf("expected connected while health endpoint is up")
	}

	up.Store(false)
	if ok := m.Probe(context.Background()); ok || c.Connected() {
		t.Fatalf("expected disconnected while health endpoint is down")
	}

	up.Store(true)
	if ok := m.Probe(context.Background()); !ok || !c.Connected() {
		t.Fatalf("expected reconnect after health endpoint recovers")
	}
}

func TestHealthMonitor_UnreachableIsDisconnected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewWebhookClient(url)
	m, err := NewHealthMonitor(c, url, "@every 1h")
	if err != nil {
		t.Fatalf("NewHealthMonitor() error: %v", err)
	}
	if m.Probe(context.Background()) {
		t.Fatalf("expected probe against closed server to fail")
	}
	if c.Connected() {
		t.Fatalf("expected Connected() false")
	}
}

func TestHealthMonitor_RunProbesAndStopsOnCancel(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewWebhookClient(srv.URL)
	c.SetConnected(false)
	m, err := NewHealthMonitor(c, srv.URL, "@every 1h")
	if err != nil {
		t.Fatalf("NewHealthMonitor() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	deadline := time.Now().Add(time.Second)
	for hits.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected an initial probe on Run")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
	if !c.Connected() {
		t.Fatalf("expected Connected() true after a 204 probe")
	}
}
