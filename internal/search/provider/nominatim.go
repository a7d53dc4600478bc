package provider

import (
	"context"
	"fmt"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/nominatim"
)

// Nominatim searches the geocoded-POI index.
type Nominatim struct {
	client nominatim.Client
}

// NewNominatim creates the geocoded-POI provider.
func NewNominatim(client nominatim.Client) *Nominatim {
	return &Nominatim{client: client}
}

func (p *Nominatim) Name() string { return "nominatim" }

func (p *Nominatim) Attempt(ctx context.Context, q Query) (Batch, error) {
	batch := Batch{Provider: p.Name()}

	places, err := p.client.Search(ctx, q.Primary(), q.Country, q.Limit)
	if err != nil {
		return batch, err
	}

	for _, pl := range places {
		name := pl.Name
		if name == "" {
			name = pl.DisplayName
		}
		if name == "" {
			continue
		}
		batch.Candidates = append(batch.Candidates, model.Candidate{
			Title:   name,
			Link:    pl.Website(),
			Snippet: pl.DisplayName,
			Phone:   pl.Phone(),
			Address: pl.DisplayName,
			PlaceID: fmt.Sprintf("osm:%d", pl.PlaceID),
			Source:  p.Name(),
		})
	}
	return batch, nil
}
