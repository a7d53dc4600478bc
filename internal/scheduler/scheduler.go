// Package scheduler admits search jobs onto per-tenant queues and runs
// them one at a time, strictly alternating between tenants. Priority
// orders jobs within one tenant's queue and never leaks across tenants.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/store"
)

const (
	// defaultCooldown spaces consecutive jobs as rate-limit courtesy
	// toward the search providers.
	defaultCooldown = 2 * time.Second
	// anonymousTenant owns jobs whose tenant cannot be resolved.
	anonymousTenant = "anonymous"
)

// Runner executes one job's foreground phase. Satisfied by
// *pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, jobID string) error
	PauseBackfills()
	ResumeBackfills()
}

// Position reports where a freshly enqueued job sits.
type Position struct {
	Global   int `json:"queue_position"`
	Tenant   int `json:"user_queue_position"`
	Priority int `json:"priority"`
}

// Scheduler coordinates job admission and dispatch.
type Scheduler struct {
	state    *State
	store    store.Store
	runner   Runner
	cooldown time.Duration

	wg sync.WaitGroup
}

// Option adjusts scheduler tuning.
type Option func(*Scheduler)

// WithCooldown overrides the inter-job cooldown. Zero disables it.
func WithCooldown(d time.Duration) Option {
	return func(s *Scheduler) { s.cooldown = d }
}

// New creates a Scheduler.
func New(st store.Store, runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		state:    NewState(),
		store:    st,
		runner:   runner,
		cooldown: defaultCooldown,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enqueue admits a job onto its tenant's queue and triggers dispatch. A
// failed job lookup falls back to the anonymous tenant rather than
// rejecting the job.
func (s *Scheduler) Enqueue(ctx context.Context, jobID string) Position {
	log := zap.L().With(zap.String("job_id", jobID))

	tenant := anonymousTenant
	priority := 0
	job, err := s.store.GetSearchJob(ctx, jobID)
	if err != nil {
		log.Warn("scheduler: job lookup failed, using anonymous tenant", zap.Error(err))
	} else {
		if job.TenantID != "" {
			tenant = job.TenantID
		}
		priority = job.Priority
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, model.JobStatusQueued); err != nil {
		log.Warn("scheduler: failed to mark job queued", zap.Error(err))
	}

	tenantPos, globalPos := s.state.enqueue(tenant, jobID, priority)
	log.Info("scheduler: job enqueued",
		zap.String("tenant", tenant),
		zap.Int("priority", priority),
		zap.Int("tenant_position", tenantPos),
		zap.Int("global_position", globalPos))

	s.dispatch()
	return Position{Global: globalPos, Tenant: tenantPos, Priority: priority}
}

// Stats reports current queue state.
func (s *Scheduler) Stats() Stats {
	return s.state.Snapshot()
}

// Wait blocks until the dispatch loop drains. Test and shutdown hook.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// dispatch starts the run loop unless one is already active.
func (s *Scheduler) dispatch() {
	if !s.state.tryAcquire() {
		return
	}
	s.wg.Add(1)
	go s.runLoop()
}

// runLoop drains the queues one job at a time. Background fills pause for
// the duration of each foreground phase and resume between jobs.
func (s *Scheduler) runLoop() {
	defer s.wg.Done()

	for {
		jobID, ok := s.state.next()
		if !ok {
			break
		}

		log := zap.L().With(zap.String("job_id", jobID))
		s.runner.PauseBackfills()
		if err := s.runner.Run(context.Background(), jobID); err != nil {
			// The pipeline already persisted the failure; move on.
			log.Warn("scheduler: job failed", zap.Error(err))
		}
		s.runner.ResumeBackfills()

		if s.cooldown > 0 {
			time.Sleep(s.cooldown)
		}
	}

	if s.state.release() {
		// A job arrived after the last next() returned empty.
		s.dispatch()
	}
}
