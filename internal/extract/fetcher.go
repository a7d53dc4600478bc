// Package extract implements per-candidate contact extraction: page fetch,
// email/phone parsing, company-name resolution, and decision-maker
// discovery across a handful of team/about pages.
package extract

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/model"
)

// maxPageBytes bounds a single page download.
const maxPageBytes = 1 << 20

// Fetcher downloads business pages with a hard timeout.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a Fetcher with the default 20s budget.
func NewFetcher() *Fetcher {
	return NewFetcherWithTimeout(20 * time.Second)
}

// NewFetcherWithTimeout creates a Fetcher with an explicit budget.
func NewFetcherWithTimeout(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Fetch downloads a page. Non-2xx statuses and network failures return an
// error; callers degrade to a minimal record rather than aborting.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*model.FetchedPage, error) {
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "extract: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadstreamBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "extract: fetch page")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, eris.Errorf("extract: page returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, eris.Wrap(err, "extract: read page body")
	}

	page := &model.FetchedPage{
		URL:        rawURL,
		HTML:       string(body),
		StatusCode: resp.StatusCode,
	}
	if doc, derr := goquery.NewDocumentFromReader(strings.NewReader(page.HTML)); derr == nil {
		page.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	return page, nil
}
