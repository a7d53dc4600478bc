package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy controls retry behavior for a provider call.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	// Default: 3.
	MaxAttempts int

	// Schedule, when non-empty, gives the exact delay before each retry
	// (Schedule[0] before attempt 2, and so on) and overrides the
	// exponential computation. Used for providers with contractual backoff
	// steps, e.g. 30s/60s/120s on rate-limit responses.
	Schedule []time.Duration

	// InitialBackoff seeds the exponential backoff. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps a computed delay. Default: 30s.
	MaxBackoff time.Duration

	// JitterFraction randomizes the delay by ±fraction. Default: 0.2.
	// Not applied to fixed Schedule delays.
	JitterFraction float64

	// ShouldRetry overrides the default IsRetryable check when set.
	ShouldRetry func(err error) bool
}

// DefaultRetryPolicy returns the policy used for ordinary provider HTTP calls.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
		JitterFraction: 0.2,
	}
}

// RateLimitSchedule returns the fixed escalating backoff used by the
// last-resort scrape search provider: three attempts spaced 30s, 60s, 120s.
func RateLimitSchedule() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Schedule:    []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second},
		ShouldRetry: IsRateLimited,
	}
}

// Retry runs fn under the policy, sleeping between attempts. Context
// cancellation aborts immediately with the last error.
func Retry[T any](ctx context.Context, policy RetryPolicy, service string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy = policy.withDefaults()

	shouldRetry := policy.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < policy.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !shouldRetry(err) || attempt >= policy.MaxAttempts-1 {
			break
		}

		delay := policy.delay(attempt)

		// Honor a provider-supplied Retry-After when it exceeds our own plan.
		var rl *RateLimitedError
		if errors.As(err, &rl) && rl.RetryAfter > delay {
			delay = rl.RetryAfter
		}

		zap.L().Warn("retrying after failure",
			zap.String("service", service),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}
	return zero, lastErr
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 30 * time.Second
	}
	if p.JitterFraction < 0 {
		p.JitterFraction = 0
	}
	return p
}

// delay computes the sleep before the retry following the given attempt
// index (0-based).
func (p RetryPolicy) delay(attempt int) time.Duration {
	if len(p.Schedule) > 0 {
		if attempt < len(p.Schedule) {
			return p.Schedule[attempt]
		}
		return p.Schedule[len(p.Schedule)-1]
	}

	d := float64(p.InitialBackoff) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxBackoff) {
		d = float64(p.MaxBackoff)
	}
	if p.JitterFraction > 0 {
		d += (rand.Float64()*2 - 1) * d * p.JitterFraction
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
