package search

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/classify"
	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/hostutil"
	"github.com/fathom-labs/leadstream/internal/model"
)

const (
	// maxDirectoryBytes limits directory page downloads.
	maxDirectoryBytes = 1 << 20

	// minAnchorLinks is the threshold below which anchor parsing is
	// considered to have failed and the LLM fallback runs.
	minAnchorLinks = 3
)

// directoryExpander fetches pages flagged as directories and expands them
// into their constituent business links.
type directoryExpander struct {
	http      *http.Client
	links     collab.LinkExtractor
	perDirCap int
}

func newDirectoryExpander(links collab.LinkExtractor, perDirCap int) *directoryExpander {
	return &directoryExpander{
		http:      &http.Client{Timeout: 15 * time.Second},
		links:     links,
		perDirCap: perDirCap,
	}
}

// expand processes each flagged directory candidate: pages that score as
// genuine business sites are kept as ordinary candidates; listing pages are
// replaced by their outbound business links, capped per directory. Fetch
// failures drop the directory silently.
func (e *directoryExpander) expand(ctx context.Context, dirs []model.Candidate) (expanded, kept []model.Candidate) {
	log := zap.L()
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return expanded, kept
		}

		html, err := e.fetch(ctx, dir.Link)
		if err != nil {
			log.Debug("directory fetch failed", zap.String("url", dir.Link), zap.Error(err))
			continue
		}

		verdict := classify.Score(dir.Link, html)
		if verdict.Score >= 0 {
			// First-party after all; keep the original candidate.
			kept = append(kept, dir)
			continue
		}

		links := e.businessLinks(ctx, dir.Link, html, verdict)
		for _, link := range links {
			expanded = append(expanded, model.Candidate{
				Title:        hostutil.DomainToken(link),
				Link:         link,
				Source:       dir.Source,
				DirectoryURL: dir.Link,
			})
		}
		log.Debug("directory expanded",
			zap.String("url", dir.Link),
			zap.Int("score", verdict.Score),
			zap.Int("links", len(links)))
	}
	return expanded, kept
}

// businessLinks returns distinct external-host links from the directory,
// preferring the classifier's anchor scan and falling back to LLM
// extraction when parsing yields too few.
func (e *directoryExpander) businessLinks(ctx context.Context, pageURL, html string, verdict classify.Verdict) []string {
	links := dedupeHosts(pageURL, verdict.ExternalHosts)

	if len(links) < minAnchorLinks && e.links != nil {
		extracted, err := e.links.ExtractBusinessLinks(ctx, pageText(html), e.perDirCap)
		if err != nil {
			zap.L().Debug("llm link extraction failed", zap.String("url", pageURL), zap.Error(err))
		} else if len(extracted) > len(links) {
			links = dedupeHosts(pageURL, extracted)
		}
	}

	if e.perDirCap > 0 && len(links) > e.perDirCap {
		links = links[:e.perDirCap]
	}
	return links
}

// dedupeHosts keeps one link per normalized hostname, skipping social
// platforms and the directory's own host.
func dedupeHosts(pageURL string, raw []string) []string {
	pageHost := hostutil.NormalizeHost(pageURL)
	seen := make(map[string]bool)
	var out []string
	for _, link := range raw {
		if !strings.Contains(link, "://") {
			link = "https://" + link
		}
		host := hostutil.NormalizeHost(link)
		if host == "" || host == pageHost || seen[host] || hostutil.IsSocialHost(link) {
			continue
		}
		seen[host] = true
		out = append(out, link)
	}
	return out
}

func (e *directoryExpander) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", eris.Wrap(err, "search: create directory request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")

	resp, err := e.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "search: fetch directory")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", eris.Errorf("search: directory returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDirectoryBytes))
	if err != nil {
		return "", eris.Wrap(err, "search: read directory body")
	}
	return string(body), nil
}

// pageText extracts visible text plus hrefs for the LLM fallback prompt.
func pageText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	var sb strings.Builder
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		text := strings.TrimSpace(sel.Text())
		if href == "" {
			return
		}
		sb.WriteString(text)
		sb.WriteString(" -> ")
		sb.WriteString(href)
		sb.WriteString("\n")
	})
	return sb.String()
}
