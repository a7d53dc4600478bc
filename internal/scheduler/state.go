package scheduler

import (
	"sort"
	"sync"
	"time"
)

// queueItem is one queued job within a tenant's queue.
type queueItem struct {
	jobID      string
	priority   int
	enqueuedAt time.Time
}

// State owns all mutable scheduler state: the per-tenant queues, the
// round-robin rotation ring, and the global processing flag. In-memory
// only; a multi-instance deployment must replace it with a shared store
// preserving the same semantics.
type State struct {
	mu         sync.Mutex
	queues     map[string][]queueItem
	rotation   []string
	processing bool
}

// NewState creates empty scheduler state.
func NewState() *State {
	return &State{queues: make(map[string][]queueItem)}
}

// enqueue inserts a job into the tenant's queue ordered by priority desc
// then enqueue time asc, adding the tenant to the rotation ring when new.
// Returns the job's 1-based position in the tenant queue and the total
// number of queued jobs.
func (s *State) enqueue(tenant, jobID string, priority int) (tenantPos, globalPos int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.queues[tenant]; !ok {
		s.rotation = append(s.rotation, tenant)
	}
	q := append(s.queues[tenant], queueItem{jobID: jobID, priority: priority, enqueuedAt: time.Now()})
	sort.SliceStable(q, func(i, j int) bool {
		if q[i].priority != q[j].priority {
			return q[i].priority > q[j].priority
		}
		return q[i].enqueuedAt.Before(q[j].enqueuedAt)
	})
	s.queues[tenant] = q

	for i, item := range q {
		if item.jobID == jobID {
			tenantPos = i + 1
			break
		}
	}
	for _, tq := range s.queues {
		globalPos += len(tq)
	}
	return tenantPos, globalPos
}

// next pops the next job in strict round-robin tenant order. The ring
// advances on every call; a tenant whose queue drains is dropped from the
// rotation until it enqueues again.
func (s *State) next() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.rotation) > 0 {
		tenant := s.rotation[0]
		s.rotation = s.rotation[1:]

		q := s.queues[tenant]
		if len(q) == 0 {
			delete(s.queues, tenant)
			continue
		}

		item := q[0]
		if len(q) == 1 {
			delete(s.queues, tenant)
		} else {
			s.queues[tenant] = q[1:]
			s.rotation = append(s.rotation, tenant)
		}
		return item.jobID, true
	}
	return "", false
}

// tryAcquire flips the processing flag, reporting whether the caller won
// the right to dispatch.
func (s *State) tryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.processing {
		return false
	}
	s.processing = true
	return true
}

// release clears the processing flag and reports whether queued work
// remains.
func (s *State) release() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processing = false
	return len(s.queues) > 0
}

// Stats summarizes queue state for observers.
type Stats struct {
	Processing bool           `json:"processing"`
	QueuedJobs int            `json:"queued_jobs"`
	Tenants    map[string]int `json:"tenants,omitempty"`
}

// Snapshot returns current queue statistics.
func (s *State) Snapshot() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{Processing: s.processing, Tenants: make(map[string]int, len(s.queues))}
	for tenant, q := range s.queues {
		st.Tenants[tenant] = len(q)
		st.QueuedJobs += len(q)
	}
	return st
}
