// Package serper provides a client for the Serper.dev Google search API,
// the second web-search provider for digital-intent queries.
package serper

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/resilience"
)

const defaultBaseURL = "https://google.serper.dev"

// Client performs Serper searches.
type Client interface {
	Search(ctx context.Context, query, country string) ([]Result, error)
}

// Result is one organic search result.
type Result struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a Serper client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 12 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type searchRequest struct {
	Q  string `json:"q"`
	GL string `json:"gl,omitempty"`
}

type searchResponse struct {
	Organic []Result `json:"organic"`
}

func (c *httpClient) Search(ctx context.Context, query, country string) ([]Result, error) {
	if c.apiKey == "" {
		return nil, resilience.ErrAuthMissing
	}

	payload, err := json.Marshal(searchRequest{Q: query, GL: country})
	if err != nil {
		return nil, eris.Wrap(err, "serper: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "serper: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "serper: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "serper: read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.RateLimited("serper", resp)
	case resilience.RetryableStatus(resp.StatusCode):
		return nil, resilience.Transient(eris.Errorf("serper: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("serper: unexpected status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "serper: unmarshal response")
	}
	return parsed.Organic, nil
}
