package collab

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/model"
)

// FailOpenRelevance wraps a RelevanceChecker so errors answer "relevant":
// a broken filter must never suppress candidates.
type FailOpenRelevance struct {
	Inner RelevanceChecker
}

// IsRelevant delegates, degrading to relevant on error.
func (f FailOpenRelevance) IsRelevant(ctx context.Context, candidate model.Candidate, query, industry string) (Relevance, error) {
	if f.Inner == nil {
		return Relevance{Relevant: true}, nil
	}
	rel, err := f.Inner.IsRelevant(ctx, candidate, query, industry)
	if err != nil {
		zap.L().Warn("collab: relevance check failed, keeping candidate",
			zap.String("candidate", candidate.Title), zap.Error(err))
		return Relevance{Relevant: true, Reason: "relevance check unavailable"}, nil
	}
	return rel, nil
}

// FailOpenIntent wraps an IntentClassifier so errors answer "physical".
type FailOpenIntent struct {
	Inner IntentClassifier
}

// ClassifyDigitalIntent delegates, degrading to false on error.
func (f FailOpenIntent) ClassifyDigitalIntent(ctx context.Context, query string) (bool, error) {
	if f.Inner == nil {
		return false, nil
	}
	digital, err := f.Inner.ClassifyDigitalIntent(ctx, query)
	if err != nil {
		zap.L().Warn("collab: intent classification failed, assuming physical",
			zap.String("query", query), zap.Error(err))
		return false, nil
	}
	return digital, nil
}

// FailOpenEnricher wraps an Enricher so errors yield empty enrichment.
type FailOpenEnricher struct {
	Inner Enricher
}

// Enrich delegates, degrading to defaults on error. The bool reports
// whether real enrichment happened.
func (f FailOpenEnricher) Enrich(ctx context.Context, lead model.Lead) (*Enrichment, error) {
	if f.Inner == nil {
		return &Enrichment{}, nil
	}
	enr, err := f.Inner.Enrich(ctx, lead)
	if err != nil {
		zap.L().Warn("collab: enrichment failed, using defaults",
			zap.String("lead_id", lead.ID), zap.Error(err))
		return &Enrichment{}, nil
	}
	return enr, nil
}

// StaticLedger is an in-process CreditLedger for single-binary deployments
// and tests: every tenant starts with the configured balance.
type StaticLedger struct {
	initial  int
	mu       sync.Mutex
	balances map[string]int
}

// NewStaticLedger creates a ledger granting each tenant the given balance.
func NewStaticLedger(initial int) *StaticLedger {
	return &StaticLedger{
		initial:  initial,
		balances: make(map[string]int),
	}
}

// Reserve deducts credits, reporting false when the balance is short.
func (l *StaticLedger) Reserve(_ context.Context, tenantID string, credits int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[tenantID]
	if !ok {
		bal = l.initial
	}
	if bal < credits {
		return false, nil
	}
	l.balances[tenantID] = bal - credits
	return true, nil
}

// Refund returns credits to the tenant.
func (l *StaticLedger) Refund(_ context.Context, tenantID string, credits int, _ string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	bal, ok := l.balances[tenantID]
	if !ok {
		bal = l.initial
	}
	l.balances[tenantID] = bal + credits
	return nil
}

// Balance reports the tenant's remaining credits.
func (l *StaticLedger) Balance(_ context.Context, tenantID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[tenantID]; ok {
		return bal, nil
	}
	return l.initial, nil
}
