package pipeline

import (
	"context"
	"sync"
	"time"
)

// hostLockWait bounds how long a worker waits for another in-flight
// extraction of the same hostname before proceeding independently.
const hostLockWait = 30 * time.Second

// hostLocks serializes extraction per normalized hostname within the
// process. The map is in-memory only; it does not survive restart or span
// instances.
type hostLocks struct {
	mu   sync.Mutex
	held map[string]chan struct{}

	waitBound time.Duration
}

func newHostLocks() *hostLocks {
	return &hostLocks{held: make(map[string]chan struct{}), waitBound: hostLockWait}
}

// acquire blocks until the hostname is free, the wait bound elapses, or ctx
// is done. It always returns a release func the caller must run on every
// exit path; for a timed-out or empty-host acquire the release is a no-op
// and the caller proceeds without holding the lock.
func (h *hostLocks) acquire(ctx context.Context, host string) func() {
	if host == "" {
		return func() {}
	}
	deadline := time.NewTimer(h.waitBound)
	defer deadline.Stop()

	for {
		h.mu.Lock()
		holder, taken := h.held[host]
		if !taken {
			ch := make(chan struct{})
			h.held[host] = ch
			h.mu.Unlock()

			var once sync.Once
			return func() {
				once.Do(func() {
					h.mu.Lock()
					delete(h.held, host)
					h.mu.Unlock()
					close(ch)
				})
			}
		}
		h.mu.Unlock()

		select {
		case <-holder:
			// Holder released; contend for the lock again.
		case <-deadline.C:
			return func() {}
		case <-ctx.Done():
			return func() {}
		}
	}
}
