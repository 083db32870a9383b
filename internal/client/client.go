// Package client talks to the remote storefront API. Every request passes the
// session interceptor; idempotent reads are retried behind a circuit breaker.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 10 << 20

// Config configures a Client.
type Config struct {
	// BaseURL is the API root, e.g. https://api.example.com/api
	BaseURL string

	// Timeout bounds each HTTP attempt (default: 15s)
	Timeout time.Duration

	// Retries is the number of attempts for idempotent reads (default: 3)
	Retries int

	// RetryDelay is the first backoff delay (default: 500ms)
	RetryDelay time.Duration

	// Auth supplies session tokens; nil sends anonymous requests
	Auth Authorizer

	// Transport overrides the underlying round tripper
	Transport http.RoundTripper

	// Logger for resilience events
	Logger *slog.Logger
}

// Client is the remote storefront API client.
type Client struct {
	base    *url.URL
	http    *http.Client
	logger  *slog.Logger
	breaker circuitbreaker.CircuitBreaker[*response]
	retrier retry.Retry[*response]
}

type response struct {
	status int
	body   []byte
}

// New creates a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := newHTTPClient(cfg.Timeout)
	if cfg.Transport != nil {
		httpClient.Transport = cfg.Transport
	}
	httpClient.Transport = NewAuthTransport(httpClient.Transport, cfg.Auth)

	c := &Client{
		base:   base,
		http:   httpClient,
		logger: cfg.Logger,
	}

	c.breaker = circuitbreaker.New[*response](circuitbreaker.Config{
		MaxRequests: 2,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts circuitbreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(from, to circuitbreaker.State) {
			c.logger.Warn("circuit breaker state change",
				"api", base.Host,
				"from", from.String(),
				"to", to.String())
		},
	})

	c.retrier = retry.New[*response](retry.Config{
		MaxAttempts:   cfg.Retries,
		InitialDelay:  cfg.RetryDelay,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		BackoffPolicy: retry.BackoffExponential,
		Jitter:        true,
		IsRetryable:   IsRetryable,
	})

	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// URL resolves path against the API root.
func (c *Client) URL(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	return u.String()
}

// send performs one request. 4xx responses other than 429 are returned as a
// response so they do not count against the breaker.
func (c *Client) send(ctx context.Context, method, path, contentType string, body []byte) (*response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	r := &response{status: resp.StatusCode, body: data}
	if apiErr := r.err(method, path); apiErr != nil && apiErr.Temporary() {
		return nil, apiErr
	}
	return r, nil
}

func (r *response) err(method, path string) *APIError {
	if r.status >= 200 && r.status < 300 {
		return nil
	}
	return newAPIError(method, path, r.status, r.body)
}

func (r *response) decode(method, path string, out any) error {
	if apiErr := r.err(method, path); apiErr != nil {
		return apiErr
	}
	if out == nil || len(bytes.TrimSpace(r.body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.body, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrBadResponse, method, path, err)
	}
	return nil
}

// get performs an idempotent read with retry inside the circuit breaker.
func (c *Client) get(ctx context.Context, path string, out any) error {
	op := func(ctx context.Context) (*response, error) {
		return c.send(ctx, http.MethodGet, path, "", nil)
	}

	resp, err := c.breaker.Execute(ctx, func(ctx context.Context) (*response, error) {
		return c.retrier.Do(ctx, op)
	})
	if err != nil {
		return err
	}
	return resp.decode(http.MethodGet, path, out)
}

// write performs a single non-idempotent request with a JSON body.
func (c *Client) write(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	var contentType string
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		contentType = "application/json"
	}
	return c.writeRaw(ctx, method, path, contentType, body, out)
}

func (c *Client) writeRaw(ctx context.Context, method, path, contentType string, body []byte, out any) error {
	resp, err := c.send(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	return resp.decode(method, path, out)
}
