package collab

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/anthropic"
)

// scriptedAI replays canned completions and records the requests it saw.
type scriptedAI struct {
	responses []string
	errs      []error
	calls     []anthropic.MessageRequest
}

func (s *scriptedAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	i := len(s.calls)
	s.calls = append(s.calls, req)
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.responses) {
		return nil, eris.New("scriptedAI: no response scripted")
	}
	return &anthropic.MessageResponse{Text: s.responses[i]}, nil
}

func TestClassifyDigitalIntentMemoizes(t *testing.T) {
	ai := &scriptedAI{responses: []string{`{"digital": true, "reason": "saas"}`}}
	c := NewLLMClassifier(ai, "claude-haiku-test")

	digital, err := c.ClassifyDigitalIntent(context.Background(), "CRM software vendors")
	require.NoError(t, err)
	assert.True(t, digital)

	// Second call with the same query must not hit the model again.
	digital, err = c.ClassifyDigitalIntent(context.Background(), "CRM software vendors")
	require.NoError(t, err)
	assert.True(t, digital)
	assert.Len(t, ai.calls, 1)
}

func TestClassifyDigitalIntentErrorPropagates(t *testing.T) {
	ai := &scriptedAI{errs: []error{eris.New("api down")}}
	c := NewLLMClassifier(ai, "claude-haiku-test")

	_, err := c.ClassifyDigitalIntent(context.Background(), "coffee shops")
	assert.Error(t, err)
}

func TestExpandTermsDedupesAndCaps(t *testing.T) {
	resp, _ := json.Marshal(map[string][]string{"terms": {
		"hvac contractor", "HVAC Contractor", "ac repair", "heating repair", "furnace repair",
	}})
	ai := &scriptedAI{responses: []string{string(resp)}}
	c := NewLLMClassifier(ai, "claude-haiku-test")

	terms, err := c.ExpandTerms(context.Background(), "hvac companies", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"hvac contractor", "ac repair", "heating repair"}, terms)
}

func TestExtractBusinessLinksFiltersNonHTTP(t *testing.T) {
	ai := &scriptedAI{responses: []string{`{"links": ["https://acmeplumbing.com", "javascript:void(0)", "http://citypipes.example"]}`}}
	c := NewLLMClassifier(ai, "claude-haiku-test")

	links, err := c.ExtractBusinessLinks(context.Background(), "directory text", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://acmeplumbing.com", "http://citypipes.example"}, links)
}

func TestFailOpenRelevanceDegradesToRelevant(t *testing.T) {
	ai := &scriptedAI{errs: []error{eris.New("timeout")}}
	checker := FailOpenRelevance{Inner: NewLLMClassifier(ai, "claude-haiku-test")}

	rel, err := checker.IsRelevant(context.Background(), model.Candidate{Title: "Joe's Plumbing"}, "plumbers", "")
	require.NoError(t, err)
	assert.True(t, rel.Relevant)
}

func TestFailOpenRelevancePassesVerdictThrough(t *testing.T) {
	ai := &scriptedAI{responses: []string{`{"relevant": false, "confidence": 0.9, "reason": "law firm, not plumber"}`}}
	checker := FailOpenRelevance{Inner: NewLLMClassifier(ai, "claude-haiku-test")}

	rel, err := checker.IsRelevant(context.Background(), model.Candidate{Title: "Smith & Partners LLP"}, "plumbers", "")
	require.NoError(t, err)
	assert.False(t, rel.Relevant)
	assert.InDelta(t, 0.9, rel.Confidence, 0.001)
}

func TestFailOpenIntentDegradesToPhysical(t *testing.T) {
	ai := &scriptedAI{errs: []error{eris.New("timeout")}}
	intent := FailOpenIntent{Inner: NewLLMClassifier(ai, "claude-haiku-test")}

	digital, err := intent.ClassifyDigitalIntent(context.Background(), "bakeries in austin")
	require.NoError(t, err)
	assert.False(t, digital)
}

func TestFailOpenNilInnerDefaults(t *testing.T) {
	rel, err := FailOpenRelevance{}.IsRelevant(context.Background(), model.Candidate{}, "q", "")
	require.NoError(t, err)
	assert.True(t, rel.Relevant)

	digital, err := FailOpenIntent{}.ClassifyDigitalIntent(context.Background(), "q")
	require.NoError(t, err)
	assert.False(t, digital)

	enr, err := FailOpenEnricher{}.Enrich(context.Background(), model.Lead{})
	require.NoError(t, err)
	assert.Equal(t, &Enrichment{}, enr)
}

func TestStaticLedgerReserveAndRefund(t *testing.T) {
	ctx := context.Background()
	l := NewStaticLedger(10)

	ok, err := l.Reserve(ctx, "tenant-a", 7)
	require.NoError(t, err)
	assert.True(t, ok)

	// Balance short: reservation refused, balance unchanged.
	ok, err = l.Reserve(ctx, "tenant-a", 5)
	require.NoError(t, err)
	assert.False(t, ok)

	bal, err := l.Balance(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 3, bal)

	require.NoError(t, l.Refund(ctx, "tenant-a", 7, "job failed"))
	bal, err = l.Balance(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 10, bal)

	// Other tenants are unaffected.
	bal, err = l.Balance(ctx, "tenant-b")
	require.NoError(t, err)
	assert.Equal(t, 10, bal)
}

func TestMemoCacheExpiry(t *testing.T) {
	c := newMemoCache(time.Minute)
	now := time.Unix(1000, 0)
	c.nowFunc = func() time.Time { return now }

	c.set("k", "v")
	v, ok := c.get("k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.get("k")
	assert.False(t, ok)
}

type fakeExpansionCache struct {
	entries map[string][]string
	getErr  error
	sets    int
}

func (f *fakeExpansionCache) GetCachedExpansion(_ context.Context, key string) ([]string, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entries[key], nil
}

func (f *fakeExpansionCache) SetCachedExpansion(_ context.Context, key string, terms []string, _ time.Duration) error {
	f.sets++
	f.entries[key] = terms
	return nil
}

type countingExpander struct {
	terms []string
	calls int
}

func (c *countingExpander) ExpandTerms(context.Context, string, int) ([]string, error) {
	c.calls++
	return c.terms, nil
}

func TestCachedExpanderWritesThroughAndHits(t *testing.T) {
	cache := &fakeExpansionCache{entries: map[string][]string{}}
	inner := &countingExpander{terms: []string{"plumbing contractors", "pipe fitters"}}
	e := NewCachedExpander(cache, inner, time.Hour)

	terms, err := e.ExpandTerms(context.Background(), "Plumbers", 5)
	require.NoError(t, err)
	assert.Equal(t, inner.terms, terms)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, 1, cache.sets)

	// Second call is served from the cache; lookup keys are
	// case-insensitive.
	terms, err = e.ExpandTerms(context.Background(), "  plumbers ", 5)
	require.NoError(t, err)
	assert.Equal(t, inner.terms, terms)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedExpanderClipsHitToMax(t *testing.T) {
	cache := &fakeExpansionCache{entries: map[string][]string{
		"expand:plumbers": {"a", "b", "c", "d"},
	}}
	inner := &countingExpander{}
	e := NewCachedExpander(cache, inner, time.Hour)

	terms, err := e.ExpandTerms(context.Background(), "plumbers", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, terms)
	assert.Equal(t, 0, inner.calls)
}

func TestCachedExpanderFallsThroughOnCacheError(t *testing.T) {
	cache := &fakeExpansionCache{entries: map[string][]string{}, getErr: eris.New("db down")}
	inner := &countingExpander{terms: []string{"pipe fitters"}}
	e := NewCachedExpander(cache, inner, time.Hour)

	terms, err := e.ExpandTerms(context.Background(), "plumbers", 5)
	require.NoError(t, err)
	assert.Equal(t, inner.terms, terms)
	assert.Equal(t, 1, inner.calls)
}

func TestCachedExpanderNilCachePassesThrough(t *testing.T) {
	inner := &countingExpander{terms: []string{"pipe fitters"}}
	e := NewCachedExpander(nil, inner, time.Hour)

	terms, err := e.ExpandTerms(context.Background(), "plumbers", 5)
	require.NoError(t, err)
	assert.Equal(t, inner.terms, terms)
}
