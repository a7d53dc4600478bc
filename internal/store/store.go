// Package store persists search jobs and leads. Two implementations share
// one interface: PostgresStore (pgx) for deployments and SQLiteStore
// (modernc) for single-binary and local use.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/model"
)

// ErrNotFound is returned by reads whose subject does not exist.
var ErrNotFound = eris.New("store: not found")

// ErrDuplicateWebsite is returned by InsertLead when another non-duplicate
// lead of the same search job already holds the normalized website. Callers
// use it to catch duplicates that raced past in-memory detection.
var ErrDuplicateWebsite = eris.New("store: website already recorded for job")

// JobFilter specifies criteria for listing search jobs.
type JobFilter struct {
	TenantID string          `json:"tenant_id,omitempty"`
	Status   model.JobStatus `json:"status,omitempty"`
	Limit    int             `json:"limit,omitempty"`
	Offset   int             `json:"offset,omitempty"`
}

// LeadFilter specifies criteria for listing leads. Results are always
// non-duplicate leads ordered by enrichment scores, best first.
type LeadFilter struct {
	SearchJobID string   `json:"search_job_id"`
	MinQuality  *float64 `json:"min_quality,omitempty"`
	Industry    string   `json:"industry,omitempty"`
	Country     string   `json:"country,omitempty"`
	Limit       int      `json:"limit,omitempty"`
	Offset      int      `json:"offset,omitempty"`
}

// LeadCounts carries per-job lead tallies re-derived from the leads table.
type LeadCounts struct {
	Total      int `json:"total"`
	Extracted  int `json:"extracted"`
	Enriched   int `json:"enriched"`
	Duplicates int `json:"duplicates"`
}

// Store defines the persistence interface for the discovery pipeline.
//
// Job updates and lead inserts targeting a deleted job are silent no-ops:
// a tenant may delete a search while its pipeline is still running, and
// in-flight writes must not fail the worker.
type Store interface {
	// Search jobs
	CreateSearchJob(ctx context.Context, job *model.SearchJob) error
	GetSearchJob(ctx context.Context, jobID string) (*model.SearchJob, error)
	ListSearchJobs(ctx context.Context, filter JobFilter) ([]model.SearchJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error
	MarkJobFailed(ctx context.Context, jobID string, message string) error
	UpdateJobCounters(ctx context.Context, jobID string, totalResults, extracted, enriched int) error
	SaveTelemetry(ctx context.Context, jobID string, tel model.ProviderTelemetry) error
	DeleteSearchJob(ctx context.Context, jobID string) error

	// Leads
	InsertLead(ctx context.Context, lead *model.Lead) error
	MarkLeadDuplicate(ctx context.Context, leadID, duplicateOfLeadID string) error
	UpdateLeadEnrichment(ctx context.Context, lead *model.Lead) error
	ActiveLeads(ctx context.Context, searchJobID string) ([]model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error)
	CountLeads(ctx context.Context, searchJobID string) (LeadCounts, error)

	// Expansion cache
	GetCachedExpansion(ctx context.Context, key string) ([]string, error)
	SetCachedExpansion(ctx context.Context, key string, terms []string, ttl time.Duration) error
	DeleteExpiredExpansions(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
