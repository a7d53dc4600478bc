// Package places provides a client for the Google Places API (New), the
// paid local-business provider the cascade escalates to when free providers
// fall short.
package places

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

const defaultBaseURL = "https://places.googleapis.com/v1"

// fieldMask lists the place fields the pipeline consumes. Priced per field
// group, so keep it minimal.
const fieldMask = "places.id,places.displayName,places.websiteUri,places.formattedAddress,places.nationalPhoneNumber,nextPageToken"

// Client performs Places API operations.
type Client interface {
	// TextSearch runs a text query, following pagination until maxResults
	// places have been collected or no pages remain.
	TextSearch(ctx context.Context, query, regionCode string, maxResults int) ([]Place, error)
}

// Place represents a business returned by the API.
type Place struct {
	ID                  string      `json:"id"`
	DisplayName         DisplayName `json:"displayName"`
	WebsiteURI          string      `json:"websiteUri"`
	FormattedAddress    string      `json:"formattedAddress"`
	NationalPhoneNumber string      `json:"nationalPhoneNumber"`
}

// DisplayName holds the place's localized display name.
type DisplayName struct {
	Text string `json:"text"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
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

// NewClient creates a Places API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type textSearchRequest struct {
	TextQuery  string `json:"textQuery"`
	RegionCode string `json:"regionCode,omitempty"`
	PageSize   int    `json:"pageSize,omitempty"`
	PageToken  string `json:"pageToken,omitempty"`
}

type textSearchResponse struct {
	Places        []Place `json:"places"`
	NextPageToken string  `json:"nextPageToken"`
}

func (c *httpClient) TextSearch(ctx context.Context, query, regionCode string, maxResults int) ([]Place, error) {
	if c.apiKey == "" {
		return nil, resilience.ErrAuthMissing
	}
	if maxResults <= 0 {
		maxResults = 20
	}

	var all []Place
	pageToken := ""
	for len(all) < maxResults {
		pageSize := maxResults - len(all)
		if pageSize > 20 {
			pageSize = 20 // API page cap
		}

		page, err := c.searchPage(ctx, textSearchRequest{
			TextQuery:  query,
			RegionCode: regionCode,
			PageSize:   pageSize,
			PageToken:  pageToken,
		})
		if err != nil {
			if len(all) > 0 {
				// Keep what earlier pages returned.
				return all, nil
			}
			return nil, err
		}

		all = append(all, page.Places...)
		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}
	return all, nil
}

func (c *httpClient) searchPage(ctx context.Context, reqBody textSearchRequest) (*textSearchResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "places: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/places:searchText", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "places: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "places: send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "places: read response")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, resilience.RateLimited("places", resp)
	case resilience.RetryableStatus(resp.StatusCode):
		return nil, resilience.Transient(eris.Errorf("places: status %d", resp.StatusCode), resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, eris.Errorf("places: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var parsed textSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, eris.Wrap(err, "places: unmarshal response")
	}
	return &parsed, nil
}
