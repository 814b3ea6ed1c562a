package request

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"audiobookgo/pkg/store"
	"audiobookgo/pkg/tracker"
	"audiobookgo/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("Audiobookgo/%s", version.Version)

// DefaultRetryStatuses are the HTTP status codes retried by default.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Policy controls retry behavior for a single logical call.
type Policy struct {
	MaxRetries    int           // additional attempts after the first
	BaseDelay     time.Duration // backoff base, doubled per attempt
	MaxDelay      time.Duration // backoff cap, 0 = uncapped
	RetryStatuses []int         // nil = DefaultRetryStatuses
	Timeout       time.Duration // per-attempt deadline, 0 = client default
}

// Response is the outcome of a successful call.
type Response struct {
	Status   int
	Header   http.Header
	Body     []byte
	Attempts int // attempts consumed, for observability
}

// Client issues outbound HTTP requests with retry, backoff, caching
// and per-provider usage tracking. The backoff sleep is scoped to the
// single logical call, so concurrent calls never block each other.
type Client struct {
	httpClient *http.Client
	cache      store.CacheStore
	tracker    *tracker.Tracker
	defaults   Policy
}

// New creates a new Client. cache may be nil to disable caching.
func New(cache store.CacheStore, t *tracker.Tracker, defaults Policy) *Client {
	if defaults.BaseDelay <= 0 {
		defaults.BaseDelay = 500 * time.Millisecond
	}
	if defaults.Timeout <= 0 {
		defaults.Timeout = 30 * time.Second
	}
	return &Client{
		// The transport-level client carries no timeout of its own;
		// deadlines come from the per-attempt context.
		httpClient: &http.Client{},
		cache:      cache,
		tracker:    t,
		defaults:   defaults,
	}
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, u string, headers map[string]string, p *Policy) (*Response, error) {
	return c.Do(ctx, http.MethodGet, u, headers, nil, p)
}

// Post performs a POST request with the given body.
func (c *Client) Post(ctx context.Context, u string, headers map[string]string, body []byte, p *Policy) (*Response, error) {
	return c.Do(ctx, http.MethodPost, u, headers, body, p)
}

// Do performs a request with retry and exponential backoff.
// Non-2xx terminal responses are returned as *StatusError, transport
// failures as *NetworkError; both carry the attempts consumed.
func (c *Client) Do(ctx context.Context, method, u string, headers map[string]string, body []byte, p *Policy) (*Response, error) {
	return c.DoCached(ctx, method, u, headers, body, "", p)
}

// DoCached is Do with an optional cache key. On a hit the cached body
// is returned without any network I/O; on success the body is stored.
func (c *Client) DoCached(ctx context.Context, method, u string, headers map[string]string, body []byte, cacheKey string, p *Policy) (*Response, error) {
	parsedURL, err := url.Parse(u)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	provider := normalizeProvider(parsedURL.Host)

	if cacheKey != "" && c.cache != nil {
		if val, hit := c.cache.GetCache(ctx, cacheKey); hit {
			c.track(func(t *tracker.Tracker) { t.TrackCacheHit(provider) })
			slog.Debug("cache hit", "provider", provider, "key", cacheKey)
			return &Response{Status: http.StatusOK, Body: val}, nil
		}
		c.track(func(t *tracker.Tracker) { t.TrackCacheMiss(provider) })
	}

	pol := c.resolvePolicy(p)
	resp, err := c.execute(ctx, method, u, headers, body, provider, pol)
	if err != nil {
		c.track(func(t *tracker.Tracker) { t.TrackAPIFailure(provider) })
		return nil, err
	}

	c.track(func(t *tracker.Tracker) { t.TrackAPISuccess(provider) })
	if cacheKey != "" && c.cache != nil {
		if err := c.cache.SetCache(ctx, cacheKey, resp.Body); err != nil {
			slog.Error("failed to cache response", "url", u, "error", err)
		}
	}
	return resp, nil
}

func (c *Client) resolvePolicy(p *Policy) Policy {
	pol := c.defaults
	if p != nil {
		pol = *p
		if pol.BaseDelay <= 0 {
			pol.BaseDelay = c.defaults.BaseDelay
		}
		if pol.Timeout <= 0 {
			pol.Timeout = c.defaults.Timeout
		}
	}
	if pol.RetryStatuses == nil {
		pol.RetryStatuses = DefaultRetryStatuses
	}
	if pol.MaxRetries < 0 {
		pol.MaxRetries = 0
	}
	return pol
}

// execute runs the attempt loop. Attempts never exceed MaxRetries+1.
func (c *Client) execute(ctx context.Context, method, u string, headers map[string]string, body []byte, provider string, pol Policy) (*Response, error) {
	maxAttempts := pol.MaxRetries + 1
	var lastNetErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &NetworkError{URL: u, Attempts: attempt - 1, Err: err}
		}

		if attempt > 1 {
			c.track(func(t *tracker.Tracker) { t.TrackRetry(provider) })
			// Exponential backoff: BaseDelay * 2^(attempt-2) after the
			// attempt numbered attempt-1 failed.
			if err := sleepBackoff(ctx, pol, attempt-1); err != nil {
				return nil, &NetworkError{URL: u, Attempts: attempt - 1, Err: err}
			}
		}

		slog.Debug("network request", "provider", provider, "method", method, "url", u, "attempt", attempt)
		resp, err := c.attempt(ctx, method, u, headers, body, pol.Timeout)
		if err != nil {
			// A dead parent context is terminal, not retryable
			if ctx.Err() != nil {
				return nil, &NetworkError{URL: u, Attempts: attempt, Err: ctx.Err()}
			}
			slog.Warn("request failed", "url", u, "attempt", attempt, "error", err)
			lastNetErr = err
			continue
		}

		if statusIn(resp.Status, pol.RetryStatuses) && attempt < maxAttempts {
			slog.Warn("retryable status", "status", resp.Status, "url", u, "attempt", attempt)
			lastNetErr = nil
			continue
		}

		resp.Attempts = attempt
		if resp.Status < 200 || resp.Status > 299 {
			return nil, &StatusError{URL: u, Status: resp.Status, Attempts: attempt, Body: resp.Body}
		}
		return resp, nil
	}

	return nil, &NetworkError{URL: u, Attempts: maxAttempts, Err: lastNetErr}
}

// attempt performs exactly one HTTP round trip under its own deadline.
func (c *Client) attempt(ctx context.Context, method, u string, headers map[string]string, body []byte, timeout time.Duration) (*Response, error) {
	attemptCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	uaSet := false
	for k, v := range headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			uaSet = true
		}
	}
	if !uaSet {
		req.Header.Set("User-Agent", defaultUserAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read error: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// sleepBackoff waits BaseDelay * 2^(failed-1), capped at MaxDelay,
// aborting early if the context is done.
func sleepBackoff(ctx context.Context, pol Policy, failed int) error {
	delay := pol.BaseDelay << (failed - 1)
	if pol.MaxDelay > 0 && delay > pol.MaxDelay {
		delay = pol.MaxDelay
	}
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func statusIn(status int, set []int) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func (c *Client) track(fn func(*tracker.Tracker)) {
	if c.tracker != nil {
		fn(c.tracker)
	}
}

// normalizeProvider groups API hosts into provider names for tracking.
func normalizeProvider(host string) string {
	switch {
	case strings.HasSuffix(host, "openai.com"):
		return "openai"
	case strings.HasSuffix(host, "googleapis.com"):
		return "gemini"
	case strings.HasSuffix(host, "jina.ai"):
		return "jina"
	}
	return host
}

// IsTimeout reports whether err represents an attempt or request deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne *NetworkError
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}
