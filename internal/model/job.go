// Package model defines the core domain types shared across the discovery
// pipeline: search jobs, candidates, and persisted leads.
package model

import "time"

// JobStatus is the lifecycle state of a SearchJob.
type JobStatus string

const (
	JobStatusPending            JobStatus = "pending"
	JobStatusQueued             JobStatus = "queued"
	JobStatusSearching          JobStatus = "searching"
	JobStatusExtracting         JobStatus = "extracting"
	JobStatusEnriching          JobStatus = "enriching"
	JobStatusProcessingBackfill JobStatus = "processing_backfill"
	JobStatusCompleted          JobStatus = "completed"
	JobStatusFailed             JobStatus = "failed"
)

// statusRank orders statuses along the pipeline. Failed is reachable from
// any stage and is handled separately in CanTransition.
var statusRank = map[JobStatus]int{
	JobStatusPending:            0,
	JobStatusQueued:             1,
	JobStatusSearching:          2,
	JobStatusExtracting:         3,
	JobStatusEnriching:          4,
	JobStatusProcessingBackfill: 5,
	JobStatusCompleted:          6,
}

// CanTransition reports whether a job may move from one status to another.
// Statuses only advance through the pipeline order; failed is a sink
// reachable from anywhere.
func CanTransition(from, to JobStatus) bool {
	if to == JobStatusFailed {
		return true
	}
	if from == JobStatusFailed {
		return false
	}
	fr, ok := statusRank[from]
	if !ok {
		return false
	}
	tr, ok := statusRank[to]
	if !ok {
		return false
	}
	return tr > fr
}

// ValidResultTargets lists the allowed result count tiers.
var ValidResultTargets = []int{50, 100, 200}

// SearchJob is one user-submitted discovery request.
type SearchJob struct {
	ID             string            `json:"id" db:"id"`
	TenantID       string            `json:"tenant_id" db:"tenant_id"`
	Query          string            `json:"query" db:"query"`
	Country        string            `json:"country,omitempty" db:"country"`
	Location       string            `json:"location,omitempty" db:"location"`
	Industry       string            `json:"industry,omitempty" db:"industry"`
	ResultTarget   int               `json:"result_target" db:"result_target"`
	Priority       int               `json:"priority" db:"priority"`
	Status         JobStatus         `json:"status" db:"status"`
	Error          string            `json:"error,omitempty" db:"error"`
	TotalResults   int               `json:"total_results" db:"total_results"`
	ExtractedCount int               `json:"extracted_count" db:"extracted_count"`
	EnrichedCount  int               `json:"enriched_count" db:"enriched_count"`
	Telemetry      ProviderTelemetry `json:"telemetry" db:"telemetry"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at" db:"updated_at"`
	CompletedAt    *time.Time        `json:"completed_at,omitempty" db:"completed_at"`
}

// ProviderStats records one provider's contribution to a search.
type ProviderStats struct {
	Results    int    `json:"results"`
	DurationMs int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ProviderTelemetry aggregates per-provider counts for a search, plus a
// human-readable reason when the combined total fell short of the target.
type ProviderTelemetry struct {
	Providers       map[string]ProviderStats `json:"providers,omitempty"`
	ShortfallReason string                   `json:"shortfall_reason,omitempty"`
}

// Record adds (or merges) stats for a named provider.
func (t *ProviderTelemetry) Record(provider string, results int, duration time.Duration, err error) {
	if t.Providers == nil {
		t.Providers = make(map[string]ProviderStats)
	}
	st := t.Providers[provider]
	st.Results += results
	st.DurationMs += duration.Milliseconds()
	if err != nil {
		st.Error = err.Error()
	}
	t.Providers[provider] = st
}

// TotalResults sums result counts across all providers.
func (t *ProviderTelemetry) TotalResults() int {
	total := 0
	for _, st := range t.Providers {
		total += st.Results
	}
	return total
}
