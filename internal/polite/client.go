// Package polite provides the shared HTTP client for every request that
// reaches a public broadcaster host. All callers go through one
// process-wide token bucket so discovery, probing and page fetches
// together stay inside the pacing budget.
package polite

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// maxBodyBytes caps page reads; catalog pages and AJAX fragments are
// far smaller, anything larger is a server misbehaving.
const maxBodyBytes = 32 << 20

// Config holds pacing and identification settings for the client.
type Config struct {
	RPS       float64       // Default: 0.5
	Burst     int           // Default: 2
	Timeout   time.Duration // Default: 30s
	UserAgent string        // Default: a desktop browser string
}

// Client is a rate-limited HTTP client. There are no client-level
// retries: transient failures surface to the caller and the next
// scheduler tick retries naturally.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string

	requests atomic.Int64
	errors   atomic.Int64
}

// NewClient creates the shared client, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.RPS <= 0 {
		cfg.RPS = 0.5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		userAgent: cfg.UserAgent,
	}
}

// Do waits for a token, stamps identification headers and executes the
// request. The caller owns the response body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter wait: %w", err)
	}

	c.requests.Add(1)

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", "cs,en;q=0.8")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.errors.Add(1)
		return nil, err
	}
	return resp, nil
}

// Get fetches a URL. The caller owns the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// Head issues a HEAD request, following redirects like a browser would.
func (c *Client) Head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.Do(req)
}

// FetchBody fetches a URL and reads the whole (size-capped) body.
// Non-2xx statuses are returned as errors carrying the status code.
func (c *Client) FetchBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.errors.Add(1)
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		c.errors.Add(1)
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// Metrics returns request counters for the stats endpoint.
func (c *Client) Metrics() map[string]int64 {
	return map[string]int64{
		"requests": c.requests.Load(),
		"errors":   c.errors.Load(),
	}
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// IsNotFound reports whether the response indicates the resource is gone
// for good (404 or 410).
func (e *StatusError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}
