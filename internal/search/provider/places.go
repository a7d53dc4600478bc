package provider

import (
	"context"
	"strings"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/places"
)

// Places queries the paid local-business API. The cascade only escalates to
// it when the free tier falls short of max(20, 0.4 x target).
type Places struct {
	client places.Client
}

// NewPlaces creates the paid local-business provider.
func NewPlaces(client places.Client) *Places {
	return &Places{client: client}
}

func (p *Places) Name() string { return "places" }

func (p *Places) Attempt(ctx context.Context, q Query) (Batch, error) {
	batch := Batch{Provider: p.Name()}

	results, err := p.client.TextSearch(ctx, q.Primary(), regionCode(q.Country), q.Limit)
	if err != nil {
		return batch, err
	}

	for _, pl := range results {
		link := pl.WebsiteURI
		if link == "" {
			// No resolved website; a maps placeholder keeps the business
			// addressable without ever entering hostname dedupe.
			link = "https://www.google.com/maps/place/?q=place_id:" + pl.ID
		}
		batch.Candidates = append(batch.Candidates, model.Candidate{
			Title:   pl.DisplayName.Text,
			Link:    link,
			Phone:   pl.NationalPhoneNumber,
			Address: pl.FormattedAddress,
			PlaceID: pl.ID,
			Source:  p.Name(),
		})
	}
	return batch, nil
}

// regionCode upper-cases a country filter into the API's region code form.
func regionCode(country string) string {
	return strings.ToUpper(country)
}
