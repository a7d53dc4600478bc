package collab

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/anthropic"
)

const (
	// maxPromptChars is the truncation limit for page text sent to Claude.
	maxPromptChars = 12000 // ~3K tokens

	llmCallTimeout = 15 * time.Second
)

// intentPrompt is the system prompt for digital-intent classification.
const intentPrompt = `You classify lead-discovery search queries. A query has DIGITAL intent when it targets online-only businesses (software companies, SaaS vendors, e-commerce stores, agencies that operate without a storefront). A query has PHYSICAL intent when it targets businesses found at a location (restaurants, clinics, contractors, shops).

Respond with ONLY valid JSON, no other text:
{"digital": false, "reason": "brief explanation"}`

// relevancePrompt is the system prompt for candidate relevance filtering.
const relevancePrompt = `You are filtering search results for a lead-discovery query. Decide whether the candidate business plausibly matches the query's business type. Err on the side of keeping the candidate: answer relevant=false only when the candidate clearly belongs to a different industry.

Respond with ONLY valid JSON, no other text:
{"relevant": true, "confidence": 0.0, "reason": "brief explanation"}`

// expandPrompt is the system prompt for search-term expansion.
const expandPrompt = `You expand a lead-discovery search query into alternative search terms a person might use for the same business type. Produce close synonyms and common trade names, not broader categories. Keep each term under six words.

Respond with ONLY valid JSON, no other text:
{"terms": ["term one", "term two"]}`

// linksPrompt is the system prompt for directory link extraction.
const linksPrompt = `You are given the visible text and URLs of a business directory page. List the URLs that point to individual business websites or profile pages. Skip navigation, pagination, ads, and links back to the directory's own category pages.

Respond with ONLY valid JSON, no other text:
{"links": ["https://example.com"]}`

// LLMClassifier answers intent, relevance, term-expansion and link-extraction
// questions with single Claude completions. It satisfies IntentClassifier,
// RelevanceChecker, TermExpander and LinkExtractor; callers wrap it in the
// fail-open decorators.
type LLMClassifier struct {
	ai    anthropic.Client
	model string
	memo  *memoCache
}

// NewLLMClassifier creates a classifier using the given model. Intent and
// term-expansion answers are memoized for an hour since the same query
// recurs across jobs.
func NewLLMClassifier(ai anthropic.Client, model string) *LLMClassifier {
	return &LLMClassifier{
		ai:    ai,
		model: model,
		memo:  newMemoCache(time.Hour),
	}
}

type intentResponse struct {
	Digital bool   `json:"digital"`
	Reason  string `json:"reason"`
}

// ClassifyDigitalIntent reports whether the query targets online-only
// businesses.
func (c *LLMClassifier) ClassifyDigitalIntent(ctx context.Context, query string) (bool, error) {
	key := "intent:" + strings.ToLower(strings.TrimSpace(query))
	if v, ok := c.memo.get(key); ok {
		return v.(bool), nil
	}

	ctx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	var result intentResponse
	err := anthropic.CompleteJSON(ctx, c.ai, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 256,
		System:    intentPrompt,
		User:      "Query: " + query,
	}, &result)
	if err != nil {
		return false, eris.Wrap(err, "collab: classify intent")
	}

	zap.L().Debug("intent classified",
		zap.String("query", query),
		zap.Bool("digital", result.Digital),
		zap.String("reason", result.Reason))

	c.memo.set(key, result.Digital)
	return result.Digital, nil
}

// IsRelevant decides whether a candidate matches the query's business type.
func (c *LLMClassifier) IsRelevant(ctx context.Context, candidate model.Candidate, query, industry string) (Relevance, error) {
	ctx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Query: %s\n", query)
	if industry != "" {
		fmt.Fprintf(&sb, "Industry: %s\n", industry)
	}
	fmt.Fprintf(&sb, "\nCandidate:\nTitle: %s\nLink: %s\n", candidate.Title, candidate.Link)
	if candidate.Snippet != "" {
		fmt.Fprintf(&sb, "Snippet: %s\n", clip(candidate.Snippet, 600))
	}

	var result Relevance
	err := anthropic.CompleteJSON(ctx, c.ai, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 256,
		System:    relevancePrompt,
		User:      sb.String(),
	}, &result)
	if err != nil {
		return Relevance{}, eris.Wrap(err, "collab: check relevance")
	}
	return result, nil
}

type expandResponse struct {
	Terms []string `json:"terms"`
}

// ExpandTerms proposes up to max alternative search terms for the query.
func (c *LLMClassifier) ExpandTerms(ctx context.Context, query string, max int) ([]string, error) {
	key := fmt.Sprintf("expand:%d:%s", max, strings.ToLower(strings.TrimSpace(query)))
	if v, ok := c.memo.get(key); ok {
		return v.([]string), nil
	}

	ctx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	var result expandResponse
	err := anthropic.CompleteJSON(ctx, c.ai, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 512,
		System:    expandPrompt,
		User:      fmt.Sprintf("Query: %s\nProduce at most %d terms.", query, max),
	}, &result)
	if err != nil {
		return nil, eris.Wrap(err, "collab: expand terms")
	}

	terms := make([]string, 0, max)
	seen := make(map[string]bool)
	for _, t := range result.Terms {
		t = strings.TrimSpace(t)
		if t == "" || seen[strings.ToLower(t)] {
			continue
		}
		seen[strings.ToLower(t)] = true
		terms = append(terms, t)
		if len(terms) >= max {
			break
		}
	}

	c.memo.set(key, terms)
	return terms, nil
}

type linksResponse struct {
	Links []string `json:"links"`
}

// ExtractBusinessLinks asks Claude to pick business links from a directory
// page whose anchors could not be parsed structurally.
func (c *LLMClassifier) ExtractBusinessLinks(ctx context.Context, pageText string, max int) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, llmCallTimeout)
	defer cancel()

	var result linksResponse
	err := anthropic.CompleteJSON(ctx, c.ai, anthropic.MessageRequest{
		Model:     c.model,
		MaxTokens: 1024,
		System:    linksPrompt,
		User:      clip(pageText, maxPromptChars),
	}, &result)
	if err != nil {
		return nil, eris.Wrap(err, "collab: extract directory links")
	}

	links := make([]string, 0, max)
	for _, l := range result.Links {
		l = strings.TrimSpace(l)
		if !strings.HasPrefix(l, "http://") && !strings.HasPrefix(l, "https://") {
			continue
		}
		links = append(links, l)
		if len(links) >= max {
			break
		}
	}
	return links, nil
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
