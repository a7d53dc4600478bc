// Package nominatim provides a client for the OpenStreetMap Nominatim
// geocoding API, used as the free geocoded-POI provider.
package nominatim

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// Client performs Nominatim lookups.
type Client interface {
	// Search performs a free-text POI search, optionally restricted to a
	// comma-separated list of ISO country codes.
	Search(ctx context.Context, query, countryCodes string, limit int) ([]Place, error)
}

// Place is one Nominatim search result.
type Place struct {
	PlaceID     int64             `json:"place_id"`
	DisplayName string            `json:"display_name"`
	Name        string            `json:"name"`
	Category    string            `json:"category"`
	Type        string            `json:"type"`
	Lat         string            `json:"lat"`
	Lon         string            `json:"lon"`
	ExtraTags   map[string]string `json:"extratags"`
}

// Website returns the place's website extratag, when present.
func (p Place) Website() string {
	if w := p.ExtraTags["website"]; w != "" {
		return w
	}
	return p.ExtraTags["contact:website"]
}

// Phone returns the place's phone extratag, when present.
func (p Place) Phone() string {
	if v := p.ExtraTags["phone"]; v != "" {
		return v
	}
	return p.ExtraTags["contact:phone"]
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the Nominatim endpoint.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithUserAgent sets the User-Agent header. Nominatim's usage policy
// requires an identifying agent.
func WithUserAgent(ua string) Option {
	return func(c *httpClient) { c.userAgent = ua }
}

// WithRateLimit overrides the default request rate (1 req/s, Nominatim's
// public usage policy). Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Nominatim client throttled to the public usage
// policy's 1 req/s.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL:   defaultBaseURL,
		userAgent: "leadstream/1.0",
		http:      &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(1, 1),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, query, countryCodes string, limit int) ([]Place, error) {
	if limit <= 0 {
		limit = 25
	}

	params := url.Values{
		"q":         {query},
		"format":    {"jsonv2"},
		"extratags": {"1"},
		"limit":     {strconv.Itoa(limit)},
	}
	if countryCodes != "" {
		params.Set("countrycodes", countryCodes)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "nominatim: rate limit")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: create request")
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "nominatim: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("nominatim: unexpected status %d", resp.StatusCode)
	}

	var places []Place
	if err := json.Unmarshal(body, &places); err != nil {
		return nil, eris.Wrap(err, "nominatim: unmarshal response")
	}
	return places, nil
}
