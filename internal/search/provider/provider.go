// Package provider defines the uniform strategy interface the search
// cascade iterates, plus adapters wrapping each upstream client.
package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/fathom-labs/leadstream/internal/model"
)

// Query is one search request handed to a provider strategy.
type Query struct {
	// Text is the user's original query.
	Text string
	// Terms are expanded variants, Text first. Providers that iterate
	// terms stop when Limit is reached.
	Terms []string
	// Country is an ISO 3166-1 alpha-2 code, lower case. Optional.
	Country string
	// Location is a free-text locality hint, e.g. "Nairobi". Optional.
	Location string
	// Limit caps the candidates a single provider should return.
	Limit int
}

// Primary returns the term a single-shot provider should search:
// the original text with the locality appended when present.
func (q Query) Primary() string {
	if q.Location != "" {
		return q.Text + " " + q.Location
	}
	return q.Text
}

// Batch is one provider's contribution to a search.
type Batch struct {
	Provider   string
	Candidates []model.Candidate
}

// Provider is a single search strategy in the cascade. Attempt returns the
// candidates it found; an error means the provider is unavailable for this
// query (unconfigured, rate limited, timed out), never that the search as a
// whole failed.
type Provider interface {
	Name() string
	Attempt(ctx context.Context, q Query) (Batch, error)
}

// Limited decorates a Provider with a per-provider rate limiter and a hard
// per-call timeout.
type Limited struct {
	Inner   Provider
	Limiter *rate.Limiter
	Timeout time.Duration
}

// Limit wraps p so each Attempt waits for the limiter and runs under the
// given timeout.
func Limit(p Provider, limiter *rate.Limiter, timeout time.Duration) *Limited {
	return &Limited{Inner: p, Limiter: limiter, Timeout: timeout}
}

func (l *Limited) Name() string { return l.Inner.Name() }

func (l *Limited) Attempt(ctx context.Context, q Query) (Batch, error) {
	if l.Limiter != nil {
		if err := l.Limiter.Wait(ctx); err != nil {
			return Batch{Provider: l.Inner.Name()}, err
		}
	}
	if l.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.Timeout)
		defer cancel()
	}
	return l.Inner.Attempt(ctx, q)
}
