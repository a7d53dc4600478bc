package provider

import (
	"context"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/brave"
	"github.com/fathom-labs/leadstream/pkg/searx"
	"github.com/fathom-labs/leadstream/pkg/serper"
)

// Searx queries a self-hosted SearXNG metasearch instance. Optional: left
// out of the cascade entirely when no instance URL is configured.
type Searx struct {
	client searx.Client
}

// NewSearx creates the metasearch provider.
func NewSearx(client searx.Client) *Searx {
	return &Searx{client: client}
}

func (p *Searx) Name() string { return "searx" }

func (p *Searx) Attempt(ctx context.Context, q Query) (Batch, error) {
	batch := Batch{Provider: p.Name()}

	results, err := p.client.Search(ctx, q.Primary())
	if err != nil {
		return batch, err
	}

	for _, r := range results {
		if r.Title == "" || r.URL == "" {
			continue
		}
		batch.Candidates = append(batch.Candidates, model.Candidate{
			Title:   r.Title,
			Link:    r.URL,
			Snippet: r.Content,
			Source:  p.Name(),
		})
		if len(batch.Candidates) >= q.Limit {
			break
		}
	}
	return batch, nil
}

// Brave queries the Brave web-search API.
type Brave struct {
	client brave.Client
}

// NewBrave creates the first web-search provider.
func NewBrave(client brave.Client) *Brave {
	return &Brave{client: client}
}

func (p *Brave) Name() string { return "brave" }

func (p *Brave) Attempt(ctx context.Context, q Query) (Batch, error) {
	batch := Batch{Provider: p.Name()}

	results, err := p.client.Search(ctx, q.Primary(), q.Limit)
	if err != nil {
		return batch, err
	}

	for _, r := range results {
		batch.Candidates = append(batch.Candidates, model.Candidate{
			Title:   r.Title,
			Link:    r.URL,
			Snippet: r.Description,
			Source:  p.Name(),
		})
		if len(batch.Candidates) >= q.Limit {
			break
		}
	}
	return batch, nil
}

// Serper queries the Serper web-search API.
type Serper struct {
	client serper.Client
}

// NewSerper creates the second web-search provider.
func NewSerper(client serper.Client) *Serper {
	return &Serper{client: client}
}

func (p *Serper) Name() string { return "serper" }

func (p *Serper) Attempt(ctx context.Context, q Query) (Batch, error) {
	batch := Batch{Provider: p.Name()}

	results, err := p.client.Search(ctx, q.Primary(), q.Country)
	if err != nil {
		return batch, err
	}

	for _, r := range results {
		batch.Candidates = append(batch.Candidates, model.Candidate{
			Title:   r.Title,
			Link:    r.Link,
			Snippet: r.Snippet,
			Source:  p.Name(),
		})
		if len(batch.Candidates) >= q.Limit {
			break
		}
	}
	return batch, nil
}
