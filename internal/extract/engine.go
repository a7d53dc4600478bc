package extract

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/classify"
	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/hostutil"
	"github.com/fathom-labs/leadstream/internal/model"
)

// relevanceConfidenceThreshold is the collaborator confidence above which an
// "irrelevant" verdict actually drops the candidate.
const relevanceConfidenceThreshold = 0.6

// Rejection marks a candidate dropped during extraction: directory pages,
// social-only websites, unusable names, irrelevant businesses. Dropped
// candidates are logged, never surfaced as job failures.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return "candidate rejected: " + r.Reason }

// IsRejection reports whether err is a candidate rejection.
func IsRejection(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej)
}

// Extraction is the engine's output for one candidate.
type Extraction struct {
	CompanyName    string
	Website        string
	Emails         []string
	Phones         []string
	Address        string
	DecisionMakers []model.DecisionMaker

	// Minimal is set when the page could not be fetched and the record
	// was derived from the URL and provider data alone.
	Minimal bool
}

// Engine performs per-candidate contact extraction.
type Engine struct {
	fetcher   *Fetcher
	relevance collab.RelevanceChecker
}

// NewEngine creates an extraction engine. The relevance checker is optional
// and always consulted through a fail-open wrapper.
func NewEngine(fetcher *Fetcher, relevance collab.RelevanceChecker) *Engine {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	return &Engine{fetcher: fetcher, relevance: relevance}
}

// Extract runs the per-candidate steps: fetch, classify, resolve the name,
// gate on relevance, merge provider contact data, parse emails/phones, and
// discover decision-makers with a bounded team-page crawl. A *Rejection
// error means the candidate should be dropped silently.
func (e *Engine) Extract(ctx context.Context, candidate model.Candidate, query, industry string) (*Extraction, error) {
	log := zap.L().With(zap.String("link", candidate.Link), zap.String("title", candidate.Title))

	if candidate.Link != "" && !candidate.IsPlaceholderLink() && hostutil.IsSocialHost(candidate.Link) {
		return nil, &Rejection{Reason: "social-only website"}
	}

	if rej := e.checkRelevance(ctx, candidate, query, industry); rej != nil {
		return nil, rej
	}

	// Placeholder links have no page to fetch; build the record from
	// provider data alone.
	if candidate.Link == "" || candidate.IsPlaceholderLink() {
		return e.providerOnly(candidate)
	}

	page, err := e.fetcher.Fetch(ctx, candidate.Link)
	if err != nil {
		log.Debug("page fetch failed, degrading to minimal record", zap.Error(err))
		return e.minimalRecord(candidate), nil
	}

	verdict := classify.Score(page.URL, page.HTML)
	if verdict.HardReject() {
		log.Debug("candidate classified as directory",
			zap.Int("score", verdict.Score),
			zap.Strings("reasons", verdict.Reasons))
		return nil, &Rejection{Reason: "directory page"}
	}

	doc, derr := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
	if derr != nil {
		doc = nil
	}

	name := ResolveCompanyName(PageName(doc), candidate.Title, candidate.Link)
	if name == "" {
		return nil, &Rejection{Reason: "no usable company name"}
	}

	ext := &Extraction{
		CompanyName: name,
		Website:     candidate.Link,
		Emails:      Emails(doc, page.HTML),
	}

	// Provider-sourced phone and address outrank page-extracted values.
	pagePhones := Phones(doc, page.HTML)
	if candidate.Phone != "" {
		ext.Phones = mergePhones(candidate.Phone, pagePhones)
	} else {
		ext.Phones = pagePhones
	}
	if candidate.Address != "" {
		ext.Address = candidate.Address
	} else if doc != nil {
		ext.Address = pageAddress(doc)
	}

	ext.DecisionMakers = People(doc)
	if len(ext.DecisionMakers) < targetDecisionMakers {
		ext.DecisionMakers = e.crawlTeamPages(ctx, candidate.Link, ext.DecisionMakers)
	}

	return ext, nil
}

// checkRelevance drops candidates the collaborator confidently flags as
// off-type for a business-specific query. Collaborator failure keeps the
// candidate.
func (e *Engine) checkRelevance(ctx context.Context, candidate model.Candidate, query, industry string) error {
	if e.relevance == nil || query == "" {
		return nil
	}
	rel, _ := collab.FailOpenRelevance{Inner: e.relevance}.IsRelevant(ctx, candidate, query, industry)
	if !rel.Relevant && rel.Confidence >= relevanceConfidenceThreshold {
		zap.L().Debug("candidate flagged irrelevant",
			zap.String("title", candidate.Title),
			zap.Float64("confidence", rel.Confidence),
			zap.String("reason", rel.Reason))
		return &Rejection{Reason: "irrelevant: " + rel.Reason}
	}
	return nil
}

// providerOnly builds a record for a candidate without a resolvable
// website.
func (e *Engine) providerOnly(candidate model.Candidate) (*Extraction, error) {
	name := strings.TrimSpace(candidate.Title)
	if !UsableName(name) {
		return nil, &Rejection{Reason: "no usable company name"}
	}
	ext := &Extraction{
		CompanyName: name,
		Website:     candidate.Link,
		Address:     candidate.Address,
		Minimal:     true,
	}
	if candidate.Phone != "" {
		ext.Phones = []string{candidate.Phone}
	}
	return ext, nil
}

// minimalRecord derives a record from the URL and provider data when the
// page is unreachable.
func (e *Engine) minimalRecord(candidate model.Candidate) *Extraction {
	name := ResolveCompanyName("", candidate.Title, candidate.Link)
	if name == "" {
		name = hostutil.DomainToken(candidate.Link)
	}
	ext := &Extraction{
		CompanyName: name,
		Website:     candidate.Link,
		Address:     candidate.Address,
		Minimal:     true,
	}
	if candidate.Phone != "" {
		ext.Phones = []string{candidate.Phone}
	}
	return ext
}

// crawlTeamPages visits likely team/about pages merging unique
// decision-makers until the target count is met or the page list runs out.
func (e *Engine) crawlTeamPages(ctx context.Context, website string, existing []model.DecisionMaker) []model.DecisionMaker {
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[strings.ToLower(p.Name)] = true
	}

	for _, pageURL := range TeamPageURLs(ctx, e.fetcher, website) {
		if ctx.Err() != nil || len(existing) >= targetDecisionMakers {
			break
		}
		page, err := e.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			continue
		}
		doc, derr := goquery.NewDocumentFromReader(strings.NewReader(page.HTML))
		if derr != nil {
			continue
		}
		for _, p := range People(doc) {
			key := strings.ToLower(p.Name)
			if seen[key] {
				continue
			}
			seen[key] = true
			p.Source = "team_page"
			existing = append(existing, p)
		}
	}
	return existing
}

// mergePhones puts the provider phone first, then page phones that do not
// duplicate it.
func mergePhones(providerPhone string, pagePhones []string) []string {
	out := []string{providerPhone}
	providerNorm := normalizePhone(providerPhone)
	for _, p := range pagePhones {
		if normalizePhone(p) == providerNorm {
			continue
		}
		out = append(out, p)
	}
	return out
}

// pageAddress pulls a street address from JSON-LD PostalAddress data or an
// <address> element.
func pageAddress(doc *goquery.Document) string {
	var addr string
	walkDocJSONLD(doc, func(node map[string]any) {
		if addr != "" || typeOf(node) != "PostalAddress" {
			return
		}
		parts := make([]string, 0, 4)
		for _, key := range []string{"streetAddress", "addressLocality", "addressRegion", "postalCode"} {
			if v, _ := node[key].(string); v != "" {
				parts = append(parts, v)
			}
		}
		addr = strings.Join(parts, ", ")
	})
	if addr != "" {
		return addr
	}
	return strings.Join(strings.Fields(doc.Find("address").First().Text()), " ")
}

func walkDocJSONLD(doc *goquery.Document, fn func(map[string]any)) {
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		walkJSONLD(raw, fn)
	})
}
