package provider

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/pkg/brave"
	"github.com/fathom-labs/leadstream/pkg/nominatim"
	"github.com/fathom-labs/leadstream/pkg/overpass"
	"github.com/fathom-labs/leadstream/pkg/places"
	"github.com/fathom-labs/leadstream/pkg/searx"
	"github.com/fathom-labs/leadstream/pkg/serper"
)

type fakeOverpass struct {
	byTerm map[string][]overpass.Element
	calls  []string
	err    error
}

func (f *fakeOverpass) SearchBusinesses(_ context.Context, q overpass.BusinessQuery) ([]overpass.Element, error) {
	f.calls = append(f.calls, q.Term)
	if f.err != nil {
		return nil, f.err
	}
	return f.byTerm[q.Term], nil
}

func osmElement(id int64, name, website string) overpass.Element {
	return overpass.Element{
		Type: "node",
		ID:   id,
		Tags: map[string]string{"name": name, "website": website},
	}
}

func TestOverpassIteratesTermsUntilLimit(t *testing.T) {
	f := &fakeOverpass{byTerm: map[string][]overpass.Element{
		"coffee shops": {osmElement(1, "Java House", "https://javahouse.example")},
		"cafes": {
			osmElement(2, "Artcaffe", "https://artcaffe.example"),
			osmElement(3, "Spring Valley Coffee", "https://svcoffee.example"),
		},
		"espresso bars": {osmElement(4, "Never Reached", "")},
	}}
	p := NewOverpass(f)

	batch, err := p.Attempt(context.Background(), Query{
		Text:     "coffee shops",
		Terms:    []string{"coffee shops", "cafes", "espresso bars"},
		Location: "Nairobi",
		Limit:    3,
	})
	require.NoError(t, err)
	require.Len(t, batch.Candidates, 3)
	assert.Equal(t, "Java House", batch.Candidates[0].Title)
	assert.Equal(t, "overpass", batch.Candidates[0].Source)
	// Limit reached after the second term; the third is never queried.
	assert.Equal(t, []string{"coffee shops", "cafes"}, f.calls)
}

func TestOverpassSkipsDuplicateElements(t *testing.T) {
	shared := osmElement(7, "Twice Listed", "https://twice.example")
	f := &fakeOverpass{byTerm: map[string][]overpass.Element{
		"plumbers":    {shared},
		"plumbing co": {shared},
	}}
	p := NewOverpass(f)

	batch, err := p.Attempt(context.Background(), Query{
		Terms: []string{"plumbers", "plumbing co"},
		Limit: 10,
	})
	require.NoError(t, err)
	assert.Len(t, batch.Candidates, 1)
}

func TestOverpassErrorWithNoResultsPropagates(t *testing.T) {
	f := &fakeOverpass{err: eris.New("overpass: interpreter timeout")}
	p := NewOverpass(f)

	_, err := p.Attempt(context.Background(), Query{Terms: []string{"bakeries"}, Limit: 5})
	assert.Error(t, err)
}

type fakeNominatim struct {
	places []nominatim.Place
	query  string
}

func (f *fakeNominatim) Search(_ context.Context, query, _ string, _ int) ([]nominatim.Place, error) {
	f.query = query
	return f.places, nil
}

func TestNominatimMapsPlaces(t *testing.T) {
	f := &fakeNominatim{places: []nominatim.Place{{
		PlaceID:     991,
		Name:        "Sunrise Dental",
		DisplayName: "Sunrise Dental, Mombasa Road, Nairobi",
		ExtraTags:   map[string]string{"website": "https://sunrisedental.example", "phone": "+254 700 000001"},
	}}}
	p := NewNominatim(f)

	batch, err := p.Attempt(context.Background(), Query{Text: "dentists", Location: "Nairobi", Limit: 10})
	require.NoError(t, err)
	require.Len(t, batch.Candidates, 1)

	c := batch.Candidates[0]
	assert.Equal(t, "Sunrise Dental", c.Title)
	assert.Equal(t, "https://sunrisedental.example", c.Link)
	assert.Equal(t, "+254 700 000001", c.Phone)
	assert.Equal(t, "osm:991", c.PlaceID)
	assert.Equal(t, "dentists Nairobi", f.query)
}

type fakeSearx struct{ results []searx.Result }

func (f *fakeSearx) Search(context.Context, string) ([]searx.Result, error) {
	return f.results, nil
}

func TestSearxCapsAtLimit(t *testing.T) {
	f := &fakeSearx{results: []searx.Result{
		{Title: "A", URL: "https://a.example"},
		{Title: "B", URL: "https://b.example"},
		{Title: "", URL: "https://untitled.example"},
		{Title: "C", URL: "https://c.example"},
	}}
	p := NewSearx(f)

	batch, err := p.Attempt(context.Background(), Query{Text: "agencies", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, batch.Candidates, 2)
	assert.Equal(t, "searx", batch.Provider)
}

type fakeBrave struct{ results []brave.Result }

func (f *fakeBrave) Search(context.Context, string, int) ([]brave.Result, error) {
	return f.results, nil
}

type fakeSerper struct{ results []serper.Result }

func (f *fakeSerper) Search(context.Context, string, string) ([]serper.Result, error) {
	return f.results, nil
}

func TestWebSearchAdaptersMapFields(t *testing.T) {
	bb, err := NewBrave(&fakeBrave{results: []brave.Result{
		{Title: "Acme CRM", URL: "https://acmecrm.example", Description: "CRM for SMBs"},
	}}).Attempt(context.Background(), Query{Text: "crm vendors", Limit: 5})
	require.NoError(t, err)
	require.Len(t, bb.Candidates, 1)
	assert.Equal(t, model.Candidate{
		Title: "Acme CRM", Link: "https://acmecrm.example", Snippet: "CRM for SMBs", Source: "brave",
	}, bb.Candidates[0])

	sb, err := NewSerper(&fakeSerper{results: []serper.Result{
		{Title: "Zen Payroll", Link: "https://zenpayroll.example", Snippet: "payroll software"},
	}}).Attempt(context.Background(), Query{Text: "payroll software", Limit: 5})
	require.NoError(t, err)
	require.Len(t, sb.Candidates, 1)
	assert.Equal(t, "serper", sb.Candidates[0].Source)
}

type fakePlaces struct {
	results []places.Place
	region  string
}

func (f *fakePlaces) TextSearch(_ context.Context, _, regionCode string, _ int) ([]places.Place, error) {
	f.region = regionCode
	return f.results, nil
}

func TestPlacesSynthesizesPlaceholderLinks(t *testing.T) {
	f := &fakePlaces{results: []places.Place{
		{ID: "pid-1", DisplayName: places.DisplayName{Text: "Mama Oliech"}, FormattedAddress: "Marcus Garvey Rd, Nairobi"},
		{ID: "pid-2", DisplayName: places.DisplayName{Text: "Talisman"}, WebsiteURI: "https://talisman.example"},
	}}
	p := NewPlaces(f)

	batch, err := p.Attempt(context.Background(), Query{Text: "restaurants", Country: "ke", Limit: 10})
	require.NoError(t, err)
	require.Len(t, batch.Candidates, 2)

	// Without a website the candidate gets a maps placeholder, which dedupe
	// treats as intrinsically unique.
	assert.True(t, batch.Candidates[0].IsPlaceholderLink())
	assert.False(t, batch.Candidates[1].IsPlaceholderLink())
	assert.Equal(t, "KE", f.region)
}

type stubProvider struct {
	name  string
	batch Batch
	err   error
	calls int
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Attempt(ctx context.Context, _ Query) (Batch, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return Batch{Provider: s.name}, err
	}
	return s.batch, s.err
}

func TestLimitedWaitsOnLimiter(t *testing.T) {
	inner := &stubProvider{name: "stub", batch: Batch{Provider: "stub"}}
	limiter := rate.NewLimiter(rate.Every(time.Hour), 1)
	p := Limit(inner, limiter, time.Second)

	// First call consumes the burst token.
	_, err := p.Attempt(context.Background(), Query{})
	require.NoError(t, err)

	// Second call would wait an hour; a canceled context surfaces instead.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Attempt(ctx, Query{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
