// Package classify scores a web page as a genuine first-party business site
// versus an aggregator/listing page. Positive scores lean first-party,
// negative lean aggregator. The score is advisory: callers hard-reject only
// strongly negative pages (HardRejectThreshold) and let borderline ones
// proceed.
package classify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/hostutil"
)

// HardRejectThreshold is the score at or below which a page is dropped as a
// lead outright. Scores above it (even negative) only advise.
const HardRejectThreshold = -3

// Verdict is the classifier output.
type Verdict struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons,omitempty"`
	// ExternalHosts lists distinct outbound hostnames found on the page,
	// reused by directory expansion.
	ExternalHosts []string `json:"-"`
}

// HardReject reports whether the score demands dropping the page.
func (v Verdict) HardReject() bool { return v.Score <= HardRejectThreshold }

// aggregatorDomains are well-known listing/review platforms that are never a
// business's own site.
var aggregatorDomains = map[string]bool{
	"yelp.com":           true,
	"yellowpages.com":    true,
	"tripadvisor.com":    true,
	"foursquare.com":     true,
	"bbb.org":            true,
	"angi.com":           true,
	"thumbtack.com":      true,
	"houzz.com":          true,
	"clutch.co":          true,
	"trustpilot.com":     true,
	"glassdoor.com":      true,
	"indeed.com":         true,
	"crunchbase.com":     true,
	"capterra.com":       true,
	"g2.com":             true,
	"manta.com":          true,
	"hotfrog.com":        true,
	"cylex.net":          true,
	"opendi.com":         true,
	"businesslist.co.ke": true,
}

// listiclePathPattern matches listicle-shaped URL paths.
var listiclePathPattern = regexp.MustCompile(`(?i)(/category/|/categories/|/top-?\d*|/best[-_]|/\d+[-_]best|/directory|/listings?/)`)

// listicleTitlePattern matches listicle-shaped page titles.
var listicleTitlePattern = regexp.MustCompile(`(?i)^(top|best)\s+\d+|^\d+\s+(best|top)|\bnear\s+you\b`)

// IsAggregatorURL reports whether the URL belongs to a known aggregator
// domain or has a listicle-shaped path. Used to pre-filter candidates before
// any fetch.
func IsAggregatorURL(raw string) bool {
	host := hostutil.NormalizeHost(raw)
	if host == "" {
		return false
	}
	if aggregatorDomains[host] {
		return true
	}
	for d := range aggregatorDomains {
		if strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return listiclePathPattern.MatchString(u.Path)
}

// Classifier fetches and scores pages.
type Classifier struct {
	http *http.Client
}

// New creates a Classifier with a bounded fetch timeout.
func New() *Classifier {
	return &Classifier{
		http: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewWithHTTPClient creates a Classifier using the given HTTP client.
func NewWithHTTPClient(hc *http.Client) *Classifier {
	return &Classifier{http: hc}
}

// Classify fetches the URL and scores it. A network failure degrades to a
// neutral, first-party-leaning verdict rather than an error: an unreachable
// page is not evidence of an aggregator.
func (c *Classifier) Classify(ctx context.Context, rawURL string) Verdict {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Verdict{Score: 0, Reasons: []string{"unfetchable"}}
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; LeadstreamBot/1.0)")

	resp, err := c.http.Do(req)
	if err != nil {
		zap.L().Debug("classify: fetch failed, defaulting first-party",
			zap.String("url", rawURL), zap.Error(err))
		return Verdict{Score: 0, Reasons: []string{"fetch_failed"}}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return Verdict{Score: 0, Reasons: []string{"fetch_failed"}}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return Verdict{Score: 0, Reasons: []string{"fetch_failed"}}
	}

	return Score(rawURL, string(body))
}

// Score evaluates already-fetched HTML against the signal set.
func Score(rawURL, html string) Verdict {
	v := Verdict{}

	if u, err := url.Parse(rawURL); err == nil && listiclePathPattern.MatchString(u.Path) {
		v.Score -= 2
		v.Reasons = append(v.Reasons, "listicle_path")
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return v
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if listicleTitlePattern.MatchString(title) {
		v.Score -= 2
		v.Reasons = append(v.Reasons, "listicle_title")
	}

	types := structuredDataTypes(doc)
	if types["ItemList"] || types["CollectionPage"] {
		v.Score -= 2
		v.Reasons = append(v.Reasons, "itemlist_structured_data")
	}
	if types["LocalBusiness"] || types["Organization"] {
		v.Score += 2
		v.Reasons = append(v.Reasons, "business_structured_data")
	}

	external, same := linkHostCounts(doc, rawURL)
	v.ExternalHosts = external
	if len(external) >= 10 && len(external) > 2*same {
		v.Score -= 2
		v.Reasons = append(v.Reasons, "outbound_link_farm")
	} else if len(external) <= 3 && same >= 5 {
		v.Score++
		v.Reasons = append(v.Reasons, "mostly_internal_links")
	}

	return v
}

// structuredDataTypes collects @type values from ld+json blocks. Nested and
// array forms both count.
func structuredDataTypes(doc *goquery.Document) map[string]bool {
	types := make(map[string]bool)
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var raw any
		if err := json.Unmarshal([]byte(s.Text()), &raw); err != nil {
			return
		}
		collectTypes(raw, types)
	})
	return types
}

func collectTypes(node any, types map[string]bool) {
	switch n := node.(type) {
	case map[string]any:
		switch t := n["@type"].(type) {
		case string:
			types[t] = true
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok {
					types[s] = true
				}
			}
		}
		for _, v := range n {
			collectTypes(v, types)
		}
	case []any:
		for _, item := range n {
			collectTypes(item, types)
		}
	}
}

// linkHostCounts returns distinct external hostnames and the count of
// same-host anchors.
func linkHostCounts(doc *goquery.Document, baseURL string) (external []string, sameHost int) {
	base := hostutil.NormalizeHost(baseURL)
	seen := make(map[string]bool)

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return
		}
		if strings.HasPrefix(href, "/") || !strings.Contains(href, "://") {
			sameHost++
			return
		}
		host := hostutil.NormalizeHost(href)
		if host == "" {
			return
		}
		if host == base {
			sameHost++
			return
		}
		if !seen[host] {
			seen[host] = true
			external = append(external, host)
		}
	})
	return external, sameHost
}
