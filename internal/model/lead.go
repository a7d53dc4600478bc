package model

import (
	"strings"
	"time"
)

// ExtractionStatus tracks per-lead contact extraction progress.
type ExtractionStatus string

const (
	ExtractionPending    ExtractionStatus = "pending"
	ExtractionInProgress ExtractionStatus = "extracting"
	ExtractionComplete   ExtractionStatus = "extracted"
	ExtractionFailed     ExtractionStatus = "failed"
)

// EnrichmentStatus tracks per-lead enrichment progress.
type EnrichmentStatus string

const (
	EnrichmentPending    EnrichmentStatus = "pending"
	EnrichmentInProgress EnrichmentStatus = "enriching"
	EnrichmentComplete   EnrichmentStatus = "enriched"
	EnrichmentFailed     EnrichmentStatus = "failed"
	EnrichmentSkipped    EnrichmentStatus = "skipped"
)

// Candidate is an unpersisted, provider-sourced business reference produced
// by the search orchestrator, prior to extraction.
type Candidate struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
	PlaceID string `json:"place_id,omitempty"`
	// Source names the provider that produced this candidate.
	Source string `json:"source,omitempty"`
	// DirectoryURL is set when the candidate was expanded out of a
	// directory/listing page.
	DirectoryURL string `json:"directory_url,omitempty"`
}

// placeholderMarkers identify provider-internal search links that stand in
// for a business without a resolved website. Such links are never
// hostname-compared during dedupe; each is intrinsically unique.
var placeholderMarkers = []string{
	"google.com/search?",
	"google.com/maps/place",
	"google.com/maps/search",
	"bing.com/search?",
	"duckduckgo.com/?q=",
}

// IsPlaceholderLink reports whether the candidate's link is a provider
// search placeholder rather than a real business website.
func (c Candidate) IsPlaceholderLink() bool {
	lower := strings.ToLower(c.Link)
	for _, m := range placeholderMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// DecisionMaker is a named person discovered on a business site.
type DecisionMaker struct {
	Name   string `json:"name"`
	Title  string `json:"title,omitempty"`
	Source string `json:"source,omitempty"` // "jsonld", "heading", "team_page"
}

// Lead is a persisted, deduplicated business record with contact data.
type Lead struct {
	ID                string           `json:"id" db:"id"`
	SearchJobID       string           `json:"search_job_id" db:"search_job_id"`
	CompanyName       string           `json:"company_name" db:"company_name"`
	Website           string           `json:"website,omitempty" db:"website"`
	WebsiteNorm       string           `json:"-" db:"website_norm"`
	Emails            []string         `json:"emails,omitempty" db:"emails"`
	PhoneNumbers      []string         `json:"phone_numbers,omitempty" db:"phone_numbers"`
	Address           string           `json:"address,omitempty" db:"address"`
	DecisionMakers    []DecisionMaker  `json:"decision_makers,omitempty" db:"decision_makers"`
	IsDuplicate       bool             `json:"is_duplicate" db:"is_duplicate"`
	DuplicateOfLeadID string           `json:"duplicate_of_lead_id,omitempty" db:"duplicate_of_lead_id"`
	ExtractionStatus  ExtractionStatus `json:"extraction_status" db:"extraction_status"`
	EnrichmentStatus  EnrichmentStatus `json:"enrichment_status" db:"enrichment_status"`

	// Enrichment outputs; nil until the enrichment collaborator has run.
	QualityScore      *float64 `json:"quality_score,omitempty" db:"quality_score"`
	VerificationScore *float64 `json:"verification_score,omitempty" db:"verification_score"`
	SignalStrength    *float64 `json:"signal_strength,omitempty" db:"signal_strength"`
	Industry          string   `json:"industry,omitempty" db:"industry"`
	CompanySize       string   `json:"company_size,omitempty" db:"company_size"`
	EmailPattern      string   `json:"email_pattern,omitempty" db:"email_pattern"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// FetchedPage holds one downloaded page during extraction.
type FetchedPage struct {
	URL        string `json:"url"`
	Title      string `json:"title,omitempty"`
	HTML       string `json:"html,omitempty"`
	StatusCode int    `json:"status_code"`
}
