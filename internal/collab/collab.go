// Package collab defines the contracts of the pipeline's external
// collaborators (enrichment, relevance filtering, intent classification,
// credit ledger) plus the fail-open decorators the core wraps them in. The
// core never trusts a collaborator to be available: each contract documents
// its failure default.
package collab

import (
	"context"

	"github.com/fathom-labs/leadstream/internal/model"
)

// Enrichment is the opaque result of the AI enrichment collaborator.
type Enrichment struct {
	Industry          string                `json:"industry,omitempty"`
	CompanySize       string                `json:"company_size,omitempty"`
	EmailPattern      string                `json:"email_pattern,omitempty"`
	SignalStrength    *float64              `json:"signal_strength,omitempty"`
	QualityScore      *float64              `json:"quality_score,omitempty"`
	VerificationScore *float64              `json:"verification_score,omitempty"`
	DecisionMakers    []model.DecisionMaker `json:"decision_makers,omitempty"`
}

// Enricher enriches a persisted lead. Must fail open: on error the caller
// keeps the lead with default (empty) enrichment.
type Enricher interface {
	Enrich(ctx context.Context, lead model.Lead) (*Enrichment, error)
}

// Relevance is the relevance collaborator's verdict on a candidate.
type Relevance struct {
	Relevant   bool    `json:"relevant"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
}

// RelevanceChecker decides whether a candidate matches a business-type
// specific query. Fails open to relevant.
type RelevanceChecker interface {
	IsRelevant(ctx context.Context, candidate model.Candidate, query, industry string) (Relevance, error)
}

// IntentClassifier decides whether a query targets digital/software
// businesses rather than physical locations. Fails to false (physical).
type IntentClassifier interface {
	ClassifyDigitalIntent(ctx context.Context, query string) (bool, error)
}

// TermExpander proposes additional search terms for a query.
type TermExpander interface {
	ExpandTerms(ctx context.Context, query string, max int) ([]string, error)
}

// LinkExtractor pulls business links out of a directory page when anchor
// parsing yields too few. LLM-assisted fallback.
type LinkExtractor interface {
	ExtractBusinessLinks(ctx context.Context, pageText string, max int) ([]string, error)
}

// CreditLedger is the billing collaborator. Reserve returning ok=false
// means enrichment is skipped, never that the job fails.
type CreditLedger interface {
	Reserve(ctx context.Context, tenantID string, credits int) (bool, error)
	Refund(ctx context.Context, tenantID string, credits int, reason string) error
	Balance(ctx context.Context, tenantID string) (int, error)
}
