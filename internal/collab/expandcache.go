package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExpansionCache persists expanded term lists across restarts. Satisfied by
// store.Store. A miss is (nil, nil).
type ExpansionCache interface {
	GetCachedExpansion(ctx context.Context, key string) ([]string, error)
	SetCachedExpansion(ctx context.Context, key string, terms []string, ttl time.Duration) error
}

// CachedExpander decorates a TermExpander with the persistent expansion
// cache. Cache failures fall through to the inner expander; the cache is
// never load-bearing.
type CachedExpander struct {
	cache ExpansionCache
	inner TermExpander
	ttl   time.Duration
}

// NewCachedExpander wraps inner with cache. A nil cache makes the wrapper a
// pass-through.
func NewCachedExpander(cache ExpansionCache, inner TermExpander, ttl time.Duration) *CachedExpander {
	return &CachedExpander{cache: cache, inner: inner, ttl: ttl}
}

func (e *CachedExpander) ExpandTerms(ctx context.Context, query string, max int) ([]string, error) {
	key := expansionKey(query)
	if e.cache != nil {
		terms, err := e.cache.GetCachedExpansion(ctx, key)
		switch {
		case err != nil:
			zap.L().Debug("expansion cache read failed", zap.String("key", key), zap.Error(err))
		case terms != nil:
			if len(terms) > max {
				terms = terms[:max]
			}
			return terms, nil
		}
	}

	terms, err := e.inner.ExpandTerms(ctx, query, max)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.SetCachedExpansion(ctx, key, terms, e.ttl); err != nil {
			zap.L().Debug("expansion cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return terms, nil
}

func expansionKey(query string) string {
	return fmt.Sprintf("expand:%s", strings.ToLower(strings.TrimSpace(query)))
}
