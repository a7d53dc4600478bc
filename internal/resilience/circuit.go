package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a provider's breaker is rejecting calls.
var ErrCircuitOpen = eris.New("circuit open")

// Breaker is a per-provider circuit breaker. After FailureThreshold
// consecutive failures it rejects calls for ResetTimeout, then lets a single
// probe through; a probe success closes it again.
type Breaker struct {
	failureThreshold int
	resetTimeout     time.Duration

	mu          sync.Mutex
	failures    int
	openedAt    time.Time
	open        bool
	nowFunc     func() time.Time
	halfOpenIn  bool
}

// NewBreaker creates a Breaker. Threshold <= 0 defaults to 5, timeout <= 0
// defaults to 30s.
func NewBreaker(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		nowFunc:          time.Now,
	}
}

// Allow reports whether a call may proceed. In the open state it admits one
// probe after the reset timeout has elapsed.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.nowFunc().Sub(b.openedAt) < b.resetTimeout {
		return ErrCircuitOpen
	}
	if b.halfOpenIn {
		return ErrCircuitOpen
	}
	b.halfOpenIn = true
	return nil
}

// Record reports the outcome of a call admitted by Allow.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		b.open = false
		b.halfOpenIn = false
		return
	}

	b.halfOpenIn = false
	b.failures++
	if b.failures >= b.failureThreshold || b.open {
		b.open = true
		b.openedAt = b.nowFunc()
	}
}

// ProviderBreakers holds one Breaker per provider name, created lazily.
type ProviderBreakers struct {
	mu           sync.Mutex
	breakers     map[string]*Breaker
	threshold    int
	resetTimeout time.Duration
}

// NewProviderBreakers creates a registry with shared settings.
func NewProviderBreakers(threshold int, resetTimeout time.Duration) *ProviderBreakers {
	return &ProviderBreakers{
		breakers:     make(map[string]*Breaker),
		threshold:    threshold,
		resetTimeout: resetTimeout,
	}
}

// Get returns the breaker for a provider, creating it on first use.
func (p *ProviderBreakers) Get(provider string) *Breaker {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.breakers[provider]
	if !ok {
		b = NewBreaker(p.threshold, p.resetTimeout)
		p.breakers[provider] = b
	}
	return b
}
