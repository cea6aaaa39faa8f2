// Package httpx is the rate-limited, retrying HTTP client shared by the host
// API client and every ratings provider.
package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/spotlightapp/spotlight-server/internal/ratelimit"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRPS     = 4.0
	defaultBurst   = 4

	// Only transient failures are retried, and only once.
	retryAttempts = 2
	retryDelay    = 500 * time.Millisecond

	maxBodyBytes = 8 << 20

	// UserAgent identifies the server to public APIs that ask for one.
	UserAgent = "SpotlightServer/1.0 (+https://github.com/spotlightapp/spotlight-server)"
)

// Sentinel errors for outbound requests.
var (
	ErrNotFound    = errors.New("not found")
	ErrRateLimited = errors.New("rate limited by server")
	ErrBadRequest  = errors.New("bad request")
	ErrServer      = errors.New("server error")
	ErrForbidden   = errors.New("forbidden")
)

// StatusError carries an unexpected status code.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	RetryDelay        time.Duration
	// HTTPClient replaces the underlying client; tests pass httptest servers' clients.
	HTTPClient *http.Client
}

// Client executes requests rate limited per host.
type Client struct {
	http       *http.Client
	limiter    *ratelimit.KeyedRateLimiter
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a client.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = defaultRPS
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = retryDelay
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		http:       hc,
		limiter:    ratelimit.New(opts.RequestsPerSecond, opts.Burst),
		retryDelay: opts.RetryDelay,
		logger:     logger,
	}
}

// SetHTTPClient swaps the underlying client. Used by tests.
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.http = hc
}

// Close releases resources held by the client.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Request describes one outbound call.
type Request struct {
	Method string
	URL    string
	Header http.Header
	// Body is re-read on retry, so it must be a byte slice.
	Body []byte
}

// Get is shorthand for a GET request with an Accept header.
func (c *Client) Get(ctx context.Context, rawURL, accept string) ([]byte, error) {
	h := http.Header{}
	if accept != "" {
		h.Set("Accept", accept)
	}
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: h})
}

// Do executes the request, waiting on the per-host rate limit and retrying
// once on 429 or 5xx. It returns the response body on 200.
func (c *Client) Do(ctx context.Context, r Request) ([]byte, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if r.Method == "" {
		r.Method = http.MethodGet
	}

	return retry.DoWithData(
		func() ([]byte, error) {
			if err := c.limiter.Wait(ctx, u.Host); err != nil {
				return nil, retry.Unrecoverable(fmt.Errorf("rate limit wait: %w", err))
			}
			return c.once(ctx, r, u)
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(Retryable),
	)
}

// Retryable reports whether err is worth a second attempt.
func Retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrServer)
}

func (c *Client) once(ctx context.Context, r Request, u *url.URL) ([]byte, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}

	c.logger.Debug("outbound request", "method", r.Method, "host", u.Host, "path", u.Path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return data, nil
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case http.StatusBadRequest:
		return nil, ErrBadRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrForbidden
	default:
		if resp.StatusCode >= 500 {
			return nil, ErrServer
		}
		return nil, &StatusError{Status: resp.StatusCode, Body: truncate(string(data), 200)}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
