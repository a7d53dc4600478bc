// Package resilience provides retry and circuit-breaker machinery for calls
// to third-party search and extraction backends.
package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
)

// ErrAuthMissing marks a provider that is not configured (no API key). The
// cascade skips such providers and notes them in the shortfall reason.
var ErrAuthMissing = eris.New("provider credentials missing")

// TransientError wraps an error that is safe to retry: timeouts, 5xx
// responses, connection resets.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transient wraps err as retryable, recording the HTTP status when known.
func Transient(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitedError indicates the provider returned 429 (or equivalent).
// RetryAfter is zero when the provider gave no hint.
type RateLimitedError struct {
	Provider   string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	if e.RetryAfter > 0 {
		return "rate limited by " + e.Provider + " (retry after " + e.RetryAfter.String() + ")"
	}
	return "rate limited by " + e.Provider
}

// RateLimited builds a RateLimitedError from a 429 response.
func RateLimited(provider string, resp *http.Response) *RateLimitedError {
	e := &RateLimitedError{Provider: provider}
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if d, err := time.ParseDuration(ra + "s"); err == nil {
				e.RetryAfter = d
			}
		}
	}
	return e
}

// IsRateLimited reports whether err contains a RateLimitedError.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}

// IsRetryable reports whether an error is worth retrying: explicit
// TransientError or RateLimitedError, network timeouts, connection-level
// failures, or common transient message patterns from HTTP clients.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if IsRateLimited(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// RetryableStatus reports whether an HTTP status code indicates a transient
// server-side condition.
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
