package dblp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"
)

// Common errors returned by the DBLP client.
var (
	// ErrRateLimited indicates the DBLP rate limit was exceeded.
	ErrRateLimited = errors.New("dblp rate limit exceeded")

	// ErrUnavailable indicates a server-side failure (5xx).
	ErrUnavailable = errors.New("dblp service unavailable")

	// ErrBadQuery indicates DBLP rejected the query (4xx other than 408/429).
	ErrBadQuery = errors.New("dblp rejected query")

	// ErrInvalidResponse indicates an unparseable API response.
	ErrInvalidResponse = errors.New("invalid response from dblp")

	// ErrNetwork indicates a network connectivity issue.
	ErrNetwork = errors.New("network error communicating with dblp")
)

// StatusError carries the HTTP status of a failed DBLP request.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dblp request: http %d", e.StatusCode)
}

// IsTransient reports whether the error is worth retrying: rate limiting,
// server errors, timeouts, and network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNetwork) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == 408 ||
			statusErr.StatusCode == 429 ||
			statusErr.StatusCode >= 500
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout() || urlErr.Temporary()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return false
}

// IsPermanent reports whether the error should not be retried and the
// entry treated as having zero candidates.
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}
	return !IsTransient(err)
}
