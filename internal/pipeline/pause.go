package pipeline

import (
	"context"
	"sync"
	"time"
)

// pauseFailsafe caps how long a background fill stays paused without a
// resume signal. A crashed or preempted scheduler must never strand fills.
const pauseFailsafe = 5 * time.Minute

// pauseController suspends all background fills while a foreground job
// runs. Pause installs a one-shot resume channel every waiter blocks on;
// Resume closes it.
type pauseController struct {
	mu          sync.Mutex
	resume      chan struct{}
	pausedSince time.Time

	failsafe time.Duration
}

func newPauseController() *pauseController {
	return &pauseController{failsafe: pauseFailsafe}
}

// Pause suspends background fills. Idempotent.
func (p *pauseController) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resume == nil {
		p.resume = make(chan struct{})
		p.pausedSince = time.Now()
	}
}

// Resume releases every paused waiter. Idempotent.
func (p *pauseController) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resume != nil {
		close(p.resume)
		p.resume = nil
	}
}

// Paused reports whether fills are currently suspended.
func (p *pauseController) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resume != nil
}

// ResumeIfStale resumes fills paused longer than maxAge and reports whether
// it did. Backs up the in-process failsafe across restarts of the waiting
// goroutine.
func (p *pauseController) ResumeIfStale(maxAge time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resume == nil || time.Since(p.pausedSince) < maxAge {
		return false
	}
	close(p.resume)
	p.resume = nil
	return true
}

// wait blocks while fills are paused. Returns false only when ctx ended;
// the failsafe timer counts as a resume.
func (p *pauseController) wait(ctx context.Context) bool {
	p.mu.Lock()
	resume := p.resume
	p.mu.Unlock()
	if resume == nil {
		return ctx.Err() == nil
	}

	failsafe := time.NewTimer(p.failsafe)
	defer failsafe.Stop()

	select {
	case <-resume:
		return true
	case <-failsafe.C:
		return true
	case <-ctx.Done():
		return false
	}
}
