// Package catalog is a paged REST client over the launch catalog service
// (spec §4.3): listing endpoints, a cached "upcoming launches" aggregate,
// and the discover_project polling loop that picks the single project this
// system tracks.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"launchsentinel/internal/apperr"
)

const (
	defaultMaxRetries  = 3
	defaultRetryDelay  = 1 * time.Second
	defaultMaxDelay    = 10 * time.Second
	defaultBackoffMult = 2.0
	defaultTimeout     = 10 * time.Second
)

// Client is the HTTP client for the catalog REST API.
type Client struct {
	baseURL     string
	http        *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64

	upcoming upcomingCache
}

// Option configures Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client (tests use this to
// point at an httptest.Server transport if needed).
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// New builds a catalog client against baseURL (no trailing slash assumed).
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     baseURL,
		http:        &http.Client{Timeout: defaultTimeout},
		maxRetries:  defaultMaxRetries,
		retryDelay:  defaultRetryDelay,
		maxDelay:    defaultMaxDelay,
		backoffMult: defaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs a GET against path with query params, making at most
// maxRetries attempts with exponential backoff between them (spec §4.3:
// 3 attempts, 1s→10s, 10s per-request timeout), and decodes the JSON body
// into out.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		status, body, err := c.doOnce(ctx, fullURL)
		if err != nil {
			lastErr = apperr.Api(status, fullURL, err)
			continue
		}
		if status == http.StatusNotFound {
			return apperr.Api(status, fullURL, errNotFound)
		}
		if status < 200 || status >= 300 {
			lastErr = apperr.Api(status, fullURL, fmt.Errorf("unexpected status %d", status))
			continue
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return apperr.Api(status, fullURL, fmt.Errorf("decode response: %w", err))
			}
		}
		return nil
	}
	return lastErr
}

func (c *Client) doOnce(ctx context.Context, fullURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

var errNotFound = fmt.Errorf("resource not found")
