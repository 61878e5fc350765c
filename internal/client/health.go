package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// HealthMonitor probes a health URL on a cron schedule and keeps the
// client's Connected flag in sync with the result.
type HealthMonitor struct {
	client *WebhookClient
	url    string
	hc     *http.Client
	cron   *cron.Cron

	mu      sync.Mutex
	started bool
}

// NewHealthMonitor validates spec ("@every 30s", "*/1 * * * *", ...) up front.
func NewHealthMonitor(c *WebhookClient, url, spec string) (*HealthMonitor, error) {
	m := &HealthMonitor{
		client: c,
		url:    url,
		hc:     &http.Client{Timeout: 5 * time.Second},
		cron:   cron.New(),
	}
	if _, err := m.cron.AddFunc(spec, func() { m.Probe(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid health check schedule %q: %w", spec, err)
	}
	c.monitored.Store(true)
	return m, nil
}

// Run probes once, starts the schedule and blocks until ctx is done.
func (m *HealthMonitor) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	m.mu.Unlock()

	m.Probe(ctx)
	m.cron.Start()
	log.Info().Str("url", m.url).Msg("transport health monitor started")

	<-ctx.Done()
	stopped := m.cron.Stop()
	<-stopped.Done()
	log.Info().Msg("transport health monitor stopped")
	return nil
}

// Probe issues one GET and records the outcome. Any 2xx counts as up.
func (m *HealthMonitor) Probe(ctx context.Context) bool {
	ok := m.probe(ctx)
	if prev := m.client.Connected(); prev != ok {
		log.Warn().Bool("connected", ok).Msg("transport connection state changed")
	}
	m.client.SetConnected(ok)
	return ok
}

func (m *HealthMonitor) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.hc.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("transport health probe failed")
		return false
	}
	resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
