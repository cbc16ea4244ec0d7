// Package ratelimit is the GET-only JSON client behind the widget APIs.
// Requests answered with 429 are retried with capped exponential backoff,
// honouring Retry-After.
package ratelimit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// Config configures a Client. Zero values take the defaults noted below.
type Config struct {
	// Service names the remote API in errors.
	Service string
	// MaxRetries after a 429. Default 2.
	MaxRetries int
	// BaseDelay doubles per retry up to MaxDelay. Defaults 1s and 30s.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// Timeout bounds each attempt. Default 10s.
	Timeout time.Duration
	// Jitter spreads each delay over 80-120%.
	Jitter    bool
	UserAgent string
}

// Client retries rate-limited GETs.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient returns a Client for cfg.
func NewClient(cfg Config) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 2
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Service == "" {
		cfg.Service = "API"
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// GetJSON fetches url and decodes a 2xx JSON body into v. Non-2xx
// responses are returned as *StatusError, an exhausted retry budget as
// *RateLimitError.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	resp, err := c.get(ctx, url)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Service: c.cfg.Service, StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", c.cfg.Service, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("build %s request: %w", c.cfg.Service, err)
		}
		req.Header.Set("Accept", "application/json")
		if c.cfg.UserAgent != "" {
			req.Header.Set("User-Agent", c.cfg.UserAgent)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			return resp, nil
		}
		_ = resp.Body.Close()
		if attempt >= c.cfg.MaxRetries {
			return nil, &RateLimitError{Service: c.cfg.Service, Attempts: attempt + 1}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.backoff(attempt, resp.Header.Get("Retry-After"))):
		}
	}
}

// backoff is Retry-After when the server sent one, else BaseDelay*2^attempt
// capped at MaxDelay.
func (c *Client) backoff(attempt int, retryAfter string) time.Duration {
	if d, ok := parseRetryAfter(retryAfter); ok {
		return d
	}
	delay := c.cfg.MaxDelay
	if attempt < 30 {
		delay = min(c.cfg.BaseDelay<<attempt, c.cfg.MaxDelay)
	}
	if c.cfg.Jitter {
		delay = time.Duration(float64(delay) * (0.8 + rand.Float64()*0.4))
	}
	return delay
}

// parseRetryAfter accepts delta-seconds or an HTTP-date.
func parseRetryAfter(value string) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Duration(secs) * time.Second, secs >= 0
	}
	if t, err := http.ParseTime(value); err == nil {
		return max(time.Until(t), 0), true
	}
	return 0, false
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Service, e.StatusCode)
}

// RateLimitError reports that every attempt was answered with 429.
type RateLimitError struct {
	Service  string
	Attempts int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded after %d attempts", e.Service, e.Attempts)
}
