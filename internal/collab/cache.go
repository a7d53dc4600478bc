package collab

import (
	"sync"
	"time"
)

// memoCache is a small TTL memo for LLM answers keyed by prompt input.
// Expired entries are dropped lazily on read.
type memoCache struct {
	ttl     time.Duration
	mu      sync.Mutex
	entries map[string]memoEntry
	nowFunc func() time.Time
}

type memoEntry struct {
	value   any
	expires time.Time
}

func newMemoCache(ttl time.Duration) *memoCache {
	return &memoCache{
		ttl:     ttl,
		entries: make(map[string]memoEntry),
		nowFunc: time.Now,
	}
}

func (c *memoCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.nowFunc().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *memoCache) set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoEntry{value: value, expires: c.nowFunc().Add(c.ttl)}
}
