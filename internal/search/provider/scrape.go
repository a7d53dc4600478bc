package provider

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/resilience"
)

const scrapeBaseURL = "https://html.duckduckgo.com/html/"

// Scrape is the last-resort provider: it scrapes a web search's HTML
// results page. Rate-limit responses are retried on the fixed 30s/60s/120s
// schedule; anything else fails the attempt immediately.
type Scrape struct {
	baseURL string
	http    *http.Client
	policy  resilience.RetryPolicy
}

// ScrapeOption configures the scrape provider.
type ScrapeOption func(*Scrape)

// WithScrapeBaseURL overrides the results-page URL.
func WithScrapeBaseURL(u string) ScrapeOption {
	return func(s *Scrape) { s.baseURL = u }
}

// WithScrapeHTTPClient overrides the default http.Client.
func WithScrapeHTTPClient(hc *http.Client) ScrapeOption {
	return func(s *Scrape) { s.http = hc }
}

// WithScrapeRetryPolicy overrides the rate-limit backoff schedule.
func WithScrapeRetryPolicy(p resilience.RetryPolicy) ScrapeOption {
	return func(s *Scrape) { s.policy = p }
}

// NewScrape creates the scrape-based web search provider.
func NewScrape(opts ...ScrapeOption) *Scrape {
	s := &Scrape{
		baseURL: scrapeBaseURL,
		http:    &http.Client{Timeout: 20 * time.Second},
		policy:  resilience.RateLimitSchedule(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (p *Scrape) Name() string { return "scrape" }

func (p *Scrape) Attempt(ctx context.Context, q Query) (Batch, error) {
	batch := Batch{Provider: p.Name()}

	candidates, err := resilience.Retry(ctx, p.policy, p.Name(),
		func(ctx context.Context) ([]model.Candidate, error) {
			return p.fetchResults(ctx, q.Primary(), q.Limit)
		})
	if err != nil {
		return batch, err
	}
	batch.Candidates = candidates
	return batch, nil
}

func (p *Scrape) fetchResults(ctx context.Context, query string, limit int) ([]model.Candidate, error) {
	params := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		p.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, resilience.RateLimited(p.Name(), resp)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("scrape: results page returned %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: parse results page")
	}

	var candidates []model.Candidate
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		anchor := sel.Find("a.result__a").First()
		href, ok := anchor.Attr("href")
		if !ok {
			return true
		}
		link := resolveRedirect(href)
		title := strings.TrimSpace(anchor.Text())
		if link == "" || title == "" {
			return true
		}
		candidates = append(candidates, model.Candidate{
			Title:   title,
			Link:    link,
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
			Source:  p.Name(),
		})
		return len(candidates) < limit
	})
	return candidates, nil
}

// resolveRedirect unwraps the results page's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	if u.Scheme == "" {
		return "https:" + href
	}
	return href
}
