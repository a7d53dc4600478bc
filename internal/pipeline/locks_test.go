package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHostLocks_SerializesSameHost(t *testing.T) {
	locks := newHostLocks()
	ctx := context.Background()

	var mu sync.Mutex
	var events []string

	release := locks.acquire(ctx, "example.com")

	done := make(chan struct{})
	go func() {
		defer close(done)
		r := locks.acquire(ctx, "example.com")
		mu.Lock()
		events = append(events, "second acquired")
		mu.Unlock()
		r()
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	events = append(events, "first releasing")
	mu.Unlock()
	release()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire never completed")
	}

	assert.Equal(t, []string{"first releasing", "second acquired"}, events)
}

func TestHostLocks_DifferentHostsDoNotBlock(t *testing.T) {
	locks := newHostLocks()
	ctx := context.Background()

	r1 := locks.acquire(ctx, "a.example")
	defer r1()

	done := make(chan struct{})
	go func() {
		r2 := locks.acquire(ctx, "b.example")
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("different host blocked")
	}
}

func TestHostLocks_WaitBoundProceedsIndependently(t *testing.T) {
	locks := newHostLocks()
	locks.waitBound = 30 * time.Millisecond
	ctx := context.Background()

	release := locks.acquire(ctx, "slow.example")
	defer release()

	start := time.Now()
	r := locks.acquire(ctx, "slow.example")
	r()
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
}

func TestHostLocks_ContextCancelUnblocks(t *testing.T) {
	locks := newHostLocks()
	release := locks.acquire(context.Background(), "busy.example")
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	r := locks.acquire(ctx, "busy.example")
	r()
}

func TestHostLocks_EmptyHostIsNoOp(t *testing.T) {
	locks := newHostLocks()
	r1 := locks.acquire(context.Background(), "")
	r2 := locks.acquire(context.Background(), "")
	r1()
	r2()
}

func TestHostLocks_ReleaseIdempotent(t *testing.T) {
	locks := newHostLocks()
	release := locks.acquire(context.Background(), "example.com")
	release()
	release()

	// Lock must be reacquirable after the double release.
	r := locks.acquire(context.Background(), "example.com")
	r()
}
