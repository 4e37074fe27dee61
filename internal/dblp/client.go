package dblp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the DBLP publication search API endpoint.
	BaseURL = "https://dblp.org/search/publ/api"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is conservative: DBLP asks clients to stay well
	// below a few requests per second.
	DefaultRateLimit = 2.0

	// DefaultMaxResults is how many candidates to request per query.
	DefaultMaxResults = 5

	// queryAuthorCount limits how many authors are appended to the query
	// string alongside the title.
	queryAuthorCount = 2

	defaultRetryAttempts  = 4
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// Client is a rate-limited HTTP client for the DBLP publication search API.
// Transient failures (429, 5xx, timeouts) are retried internally with
// exponential backoff; the caller sees at most one logical failure per
// lookup.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	maxResults int
	cache      *Cache

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleeper          func(time.Duration)
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL sets a custom API endpoint (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithMaxResults sets how many candidates each query requests.
func WithMaxResults(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.maxResults = n
		}
	}
}

// WithRateLimit overrides the request rate in queries per second.
func WithRateLimit(qps float64) ClientOption {
	return func(c *Client) {
		if qps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(qps), 1)
		}
	}
}

// WithRetry overrides the retry budget and backoff delays.
func WithRetry(attempts int, baseDelay, maxDelay time.Duration) ClientOption {
	return func(c *Client) {
		if attempts > 0 {
			c.retryMaxAttempts = attempts
		}
		if baseDelay > 0 {
			c.retryBaseDelay = baseDelay
		}
		if maxDelay > 0 {
			c.retryMaxDelay = maxDelay
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleeper func(time.Duration)) ClientOption {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithCache attaches a query cache consulted before any HTTP request.
func WithCache(cache *Cache) ClientOption {
	return func(c *Client) {
		c.cache = cache
	}
}

// NewClient creates a DBLP search client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient:       &http.Client{Timeout: DefaultTimeout},
		limiter:          rate.NewLimiter(rate.Limit(DefaultRateLimit), 1),
		baseURL:          BaseURL,
		maxResults:       DefaultMaxResults,
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Lookup queries DBLP for candidates matching the given title and authors.
// An empty result slice with a nil error means DBLP had no hits. Errors
// are classifiable with IsTransient / IsPermanent; transient failures have
// already exhausted the retry budget.
func (c *Client) Lookup(ctx context.Context, title string, authors []string) ([]Candidate, error) {
	query := buildQuery(title, authors)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrBadQuery)
	}

	if c.cache != nil {
		if body, ok, err := c.cache.Get(query); err == nil && ok {
			return parseCandidates(body)
		}
	}

	body, err := c.fetchWithRetry(ctx, query)
	if err != nil {
		return nil, err
	}

	candidates, err := parseCandidates(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		// Cache write failures are not fatal to the lookup.
		_ = c.cache.Put(query, body)
	}

	return candidates, nil
}

// buildQuery joins the title with the first authors, the same query shape
// a human would type into the DBLP search box.
func buildQuery(title string, authors []string) string {
	parts := []string{strings.TrimSpace(title)}
	for i, a := range authors {
		if i >= queryAuthorCount {
			break
		}
		parts = append(parts, strings.TrimSpace(a))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// fetchWithRetry performs the HTTP request, retrying transient failures
// with exponential backoff until the attempt budget is exhausted.
func (c *Client) fetchWithRetry(ctx context.Context, query string) ([]byte, error) {
	attempts := c.retryMaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		body, err := c.fetchOnce(ctx, query)
		if err == nil {
			return body, nil
		}
		if !IsTransient(err) {
			return nil, err
		}
		lastErr = err

		if attempt == attempts {
			break
		}
		if err := c.sleep(ctx, c.retryDelay(err, attempt)); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("dblp lookup failed after %d attempts: %w", attempts, lastErr)
}

// fetchOnce performs a single rate-limited request.
func (c *Client) fetchOnce(ctx context.Context, query string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("h", strconv.Itoa(c.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}

	return body, nil
}

func checkHTTPErrors(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return fmt.Errorf("%w: %w", ErrRateLimited, &StatusError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfter,
		})
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %w", ErrUnavailable, &StatusError{StatusCode: resp.StatusCode})
	case resp.StatusCode == http.StatusRequestTimeout:
		return &StatusError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: %w", ErrBadQuery, &StatusError{StatusCode: resp.StatusCode})
	}
	return nil
}

// retryDelay computes the backoff before the next attempt: base doubled
// per attempt up to the cap, with a server-provided Retry-After taking
// precedence.
func (c *Client) retryDelay(err error, attempt int) time.Duration {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return c.capDelay(statusErr.RetryAfter)
	}

	delay := c.retryBaseDelay
	for i := 1; i < attempt; i++ {
		if delay > c.retryMaxDelay/2 {
			return c.retryMaxDelay
		}
		delay *= 2
	}
	return c.capDelay(delay)
}

func (c *Client) capDelay(delay time.Duration) time.Duration {
	if c.retryMaxDelay > 0 && delay > c.retryMaxDelay {
		return c.retryMaxDelay
	}
	return delay
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(value); err == nil {
		if delay := time.Until(when); delay > 0 {
			return delay
		}
	}
	return 0
}

// parseCandidates flattens the nested search response into Candidate
// records.
func parseCandidates(body []byte) ([]Candidate, error) {
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	hits := resp.Result.Hits.Hit
	candidates := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		candidates = append(candidates, h.Info.flatten())
	}
	return candidates, nil
}
