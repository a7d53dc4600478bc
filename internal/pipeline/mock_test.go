package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/extract"
	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/search"
	"github.com/fathom-labs/leadstream/internal/store"
)

// memStore is an in-memory store.Store used by pipeline and scheduler
// tests. It mirrors the real stores' edge semantics: unique-website
// conflicts, no-op writes against deleted jobs.
type memStore struct {
	mu        sync.Mutex
	jobs      map[string]*model.SearchJob
	leads     map[string]*model.Lead
	leadOrder []string
	statusLog map[string][]model.JobStatus
	nextID    int

	// insertConflicts forces InsertLead to return ErrDuplicateWebsite once
	// per listed website_norm, simulating a write race.
	insertConflicts map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		jobs:            make(map[string]*model.SearchJob),
		leads:           make(map[string]*model.Lead),
		statusLog:       make(map[string][]model.JobStatus),
		insertConflicts: make(map[string]bool),
	}
}

func (m *memStore) addJob(job *model.SearchJob) *model.SearchJob {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.ID == "" {
		m.nextID++
		job.ID = fmt.Sprintf("job-%d", m.nextID)
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	m.jobs[job.ID] = job
	return job
}

func (m *memStore) CreateSearchJob(_ context.Context, job *model.SearchJob) error {
	m.addJob(job)
	return nil
}

func (m *memStore) GetSearchJob(_ context.Context, jobID string) (*model.SearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil, eris.Wrapf(store.ErrNotFound, "mem: search job %s", jobID)
	}
	cp := *job
	return &cp, nil
}

func (m *memStore) ListSearchJobs(_ context.Context, _ store.JobFilter) ([]model.SearchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SearchJob
	for _, j := range m.jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (m *memStore) UpdateJobStatus(_ context.Context, jobID string, status model.JobStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = status
	m.statusLog[jobID] = append(m.statusLog[jobID], status)
	return nil
}

func (m *memStore) MarkJobFailed(_ context.Context, jobID string, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return nil
	}
	job.Status = model.JobStatusFailed
	job.Error = message
	m.statusLog[jobID] = append(m.statusLog[jobID], model.JobStatusFailed)
	return nil
}

func (m *memStore) UpdateJobCounters(_ context.Context, jobID string, total, extracted, enriched int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.TotalResults = total
		job.ExtractedCount = extracted
		job.EnrichedCount = enriched
	}
	return nil
}

func (m *memStore) SaveTelemetry(_ context.Context, jobID string, tel model.ProviderTelemetry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		job.Telemetry = tel
	}
	return nil
}

func (m *memStore) DeleteSearchJob(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.jobs[jobID]; !ok {
		return eris.Wrapf(store.ErrNotFound, "mem: search job %s", jobID)
	}
	delete(m.jobs, jobID)
	for id, l := range m.leads {
		if l.SearchJobID == jobID {
			delete(m.leads, id)
		}
	}
	return nil
}

func (m *memStore) InsertLead(_ context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.jobs[lead.SearchJobID]; !ok {
		return nil
	}
	if !lead.IsDuplicate && lead.WebsiteNorm != "" {
		if m.insertConflicts[lead.WebsiteNorm] {
			delete(m.insertConflicts, lead.WebsiteNorm)
			return eris.Wrap(store.ErrDuplicateWebsite, "mem: insert lead")
		}
		for _, other := range m.leads {
			if other.SearchJobID == lead.SearchJobID && !other.IsDuplicate && other.WebsiteNorm == lead.WebsiteNorm {
				return eris.Wrap(store.ErrDuplicateWebsite, "mem: insert lead")
			}
		}
	}
	if lead.ID == "" {
		m.nextID++
		lead.ID = fmt.Sprintf("lead-%d", m.nextID)
	}
	if lead.ExtractionStatus == "" {
		lead.ExtractionStatus = model.ExtractionComplete
	}
	if lead.EnrichmentStatus == "" {
		lead.EnrichmentStatus = model.EnrichmentPending
	}
	cp := *lead
	m.leads[lead.ID] = &cp
	m.leadOrder = append(m.leadOrder, lead.ID)
	return nil
}

func (m *memStore) MarkLeadDuplicate(_ context.Context, leadID, duplicateOfLeadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.leads[leadID]; ok {
		l.IsDuplicate = true
		l.DuplicateOfLeadID = duplicateOfLeadID
	}
	return nil
}

func (m *memStore) UpdateLeadEnrichment(_ context.Context, lead *model.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.leads[lead.ID]
	if !ok {
		return nil
	}
	l.EnrichmentStatus = lead.EnrichmentStatus
	l.QualityScore = lead.QualityScore
	l.VerificationScore = lead.VerificationScore
	l.SignalStrength = lead.SignalStrength
	l.Industry = lead.Industry
	l.CompanySize = lead.CompanySize
	l.EmailPattern = lead.EmailPattern
	return nil
}

func (m *memStore) ActiveLeads(_ context.Context, searchJobID string) ([]model.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Lead
	for _, id := range m.leadOrder {
		l, ok := m.leads[id]
		if ok && l.SearchJobID == searchJobID && !l.IsDuplicate {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (m *memStore) ListLeads(_ context.Context, filter store.LeadFilter) ([]model.Lead, error) {
	return m.ActiveLeads(context.Background(), filter.SearchJobID)
}

func (m *memStore) CountLeads(_ context.Context, searchJobID string) (store.LeadCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c store.LeadCounts
	for _, l := range m.leads {
		if l.SearchJobID != searchJobID {
			continue
		}
		c.Total++
		if l.IsDuplicate {
			c.Duplicates++
			continue
		}
		if l.ExtractionStatus == model.ExtractionComplete {
			c.Extracted++
		}
		if l.EnrichmentStatus == model.EnrichmentComplete {
			c.Enriched++
		}
	}
	return c, nil
}

func (m *memStore) GetCachedExpansion(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (m *memStore) SetCachedExpansion(_ context.Context, _ string, _ []string, _ time.Duration) error {
	return nil
}

func (m *memStore) DeleteExpiredExpansions(_ context.Context) (int, error) { return 0, nil }

func (m *memStore) Migrate(_ context.Context) error { return nil }
func (m *memStore) Ping(_ context.Context) error    { return nil }
func (m *memStore) Close() error                    { return nil }

func (m *memStore) statuses(jobID string) []model.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.JobStatus(nil), m.statusLog[jobID]...)
}

func (m *memStore) leadByNorm(norm string) *model.Lead {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.leads {
		if l.WebsiteNorm == norm {
			cp := *l
			return &cp
		}
	}
	return nil
}

// stubSearcher returns a canned cascade result.
type stubSearcher struct {
	mu    sync.Mutex
	res   *search.Result
	err   error
	calls int
}

func (s *stubSearcher) Search(_ context.Context, _ search.Request) (*search.Result, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.res, nil
}

// stubExtractor maps candidates through a function, optionally slowly.
type stubExtractor struct {
	fn    func(cand model.Candidate) (*extract.Extraction, error)
	delay time.Duration
}

func (s *stubExtractor) Extract(ctx context.Context, cand model.Candidate, _, _ string) (*extract.Extraction, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.fn != nil {
		return s.fn(cand)
	}
	return &extract.Extraction{
		CompanyName: cand.Title,
		Website:     cand.Link,
	}, nil
}

// panicExtractor simulates a catastrophic pipeline failure.
type panicExtractor struct{}

func (panicExtractor) Extract(context.Context, model.Candidate, string, string) (*extract.Extraction, error) {
	panic("extractor blew up")
}

// stubEnricher records calls and returns fixed scores.
type stubEnricher struct {
	mu    sync.Mutex
	calls int
}

func (s *stubEnricher) Enrich(_ context.Context, _ model.Lead) (*collab.Enrichment, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	quality := 0.8
	return &collab.Enrichment{
		Industry:     "hospitality",
		QualityScore: &quality,
	}, nil
}
