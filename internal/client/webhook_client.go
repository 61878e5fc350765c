package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

type WebhookClient struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter

	connected atomic.Bool
	// set once a HealthMonitor owns the connected flag
	monitored atomic.Bool
}

type Option func(*WebhookClient)

// WithRateLimit caps sends across all jobs at rps messages per second.
func WithRateLimit(rps int) Option {
	return func(c *WebhookClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), rps)
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *WebhookClient) { c.client = hc }
}

func NewWebhookClient(url string, opts ...Option) *WebhookClient {
	c := &WebhookClient{
		url: url,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	c.connected.Store(true)
	return c
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// Connected reports the last known reachability of the webhook. Without a
// health monitor it stays true and send errors are per-message failures.
// With one, network errors clear it and the next successful probe or send
// restores it.
func (c *WebhookClient) Connected() bool {
	return c.connected.Load()
}

func (c *WebhookClient) SetConnected(v bool) {
	c.connected.Store(v)
}

func (c *WebhookClient) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}

	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: phoneNumber,
		Message:     message,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if c.monitored.Load() && !errors.Is(err, context.Canceled) {
			c.connected.Store(false)
		}
		return "", err
	}
	defer resp.Body.Close()
	c.connected.Store(true)

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("missing messageId in response body=%q", string(body))
	}

	return sr.MessageID, nil
}
