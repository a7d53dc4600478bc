package provider

import (
	"context"

	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/overpass"
)

// Overpass searches the OSM structured-tag index. It iterates the expanded
// terms until the limit is reached or the terms are exhausted, so narrow
// categories still fill from synonyms.
type Overpass struct {
	client overpass.Client
}

// NewOverpass creates the free-geographic provider.
func NewOverpass(client overpass.Client) *Overpass {
	return &Overpass{client: client}
}

func (p *Overpass) Name() string { return "overpass" }

func (p *Overpass) Attempt(ctx context.Context, q Query) (Batch, error) {
	batch := Batch{Provider: p.Name()}
	seen := make(map[int64]bool)

	terms := q.Terms
	if len(terms) == 0 {
		terms = []string{q.Text}
	}

	for _, term := range terms {
		if ctx.Err() != nil {
			return batch, ctx.Err()
		}
		remaining := q.Limit - len(batch.Candidates)
		if remaining <= 0 {
			break
		}

		elements, err := p.client.SearchBusinesses(ctx, overpass.BusinessQuery{
			Term:  term,
			Area:  q.Location,
			Limit: remaining,
		})
		if err != nil {
			// A later term may still succeed; give up only when nothing
			// was collected at all.
			if len(batch.Candidates) == 0 {
				return batch, err
			}
			zap.L().Debug("overpass term failed, keeping earlier results",
				zap.String("term", term), zap.Error(err))
			continue
		}

		for _, el := range elements {
			if seen[el.ID] {
				continue
			}
			seen[el.ID] = true
			batch.Candidates = append(batch.Candidates, model.Candidate{
				Title:   el.Name(),
				Link:    el.Website(),
				Phone:   el.Phone(),
				Address: el.Address(),
				Source:  p.Name(),
			})
			if len(batch.Candidates) >= q.Limit {
				break
			}
		}
	}
	return batch, nil
}
