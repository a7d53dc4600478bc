// Package overpass provides a client for the OpenStreetMap Overpass API,
// used as the free structured-tag geographic index.
package overpass

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const defaultBaseURL = "https://overpass-api.de/api"

// Client performs Overpass QL queries.
type Client interface {
	// SearchBusinesses finds named POI nodes/ways matching a free-text term
	// within a named area.
	SearchBusinesses(ctx context.Context, q BusinessQuery) ([]Element, error)
}

// BusinessQuery describes a structured-tag POI search.
type BusinessQuery struct {
	// Term is matched case-insensitively against name, shop, amenity, and
	// craft tags.
	Term string
	// Area is a place name resolved via Overpass area lookup, e.g.
	// "Nairobi". Optional; empty searches globally bounded by Limit.
	Area string
	// Limit caps returned elements. Defaults to 50.
	Limit int
}

// Element is one OSM element with its tags.
type Element struct {
	Type string            `json:"type"`
	ID   int64             `json:"id"`
	Lat  float64           `json:"lat,omitempty"`
	Lon  float64           `json:"lon,omitempty"`
	Tags map[string]string `json:"tags"`
}

// Name returns the element's name tag.
func (e Element) Name() string { return e.Tags["name"] }

// Website returns the element's website or contact:website tag.
func (e Element) Website() string {
	if w := e.Tags["website"]; w != "" {
		return w
	}
	return e.Tags["contact:website"]
}

// Phone returns the element's phone or contact:phone tag.
func (e Element) Phone() string {
	if p := e.Tags["phone"]; p != "" {
		return p
	}
	return e.Tags["contact:phone"]
}

// Address assembles a display address from addr:* tags.
func (e Element) Address() string {
	parts := make([]string, 0, 4)
	for _, key := range []string{"addr:housenumber", "addr:street", "addr:city", "addr:postcode"} {
		if v := e.Tags[key]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Overpass endpoint (self-hosted instances, tests).
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an Overpass client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 25 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type overpassResponse struct {
	Elements []Element `json:"elements"`
}

func (c *httpClient) SearchBusinesses(ctx context.Context, q BusinessQuery) ([]Element, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	ql := buildQL(q.Term, q.Area, limit)

	form := url.Values{"data": {ql}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/interpreter",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, eris.Wrap(err, "overpass: create request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "overpass: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("overpass: unexpected status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "overpass: unmarshal response")
	}

	// Unnamed elements are map noise, not businesses.
	named := parsed.Elements[:0]
	for _, el := range parsed.Elements {
		if el.Name() != "" {
			named = append(named, el)
		}
	}
	return named, nil
}

// buildQL renders the Overpass QL for a term search, optionally scoped to a
// named area.
func buildQL(term, area string, limit int) string {
	var b strings.Builder
	b.WriteString("[out:json][timeout:20];")
	if area != "" {
		b.WriteString(`area["name"="` + escapeQL(area) + `"]->.a;`)
	}

	scope := ""
	if area != "" {
		scope = "(area.a)"
	}
	pattern := escapeQL(term)
	b.WriteString("(")
	for _, tag := range []string{"name", "shop", "amenity", "craft"} {
		b.WriteString(`node["` + tag + `"~"` + pattern + `",i]` + scope + `;`)
		b.WriteString(`way["` + tag + `"~"` + pattern + `",i]` + scope + `;`)
	}
	b.WriteString(");out tags center " + strconv.Itoa(limit) + ";")
	return b.String()
}

func escapeQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func truncateBody(b []byte) string {
	const max = 200
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
