package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/model"
)

const businessHTML = `<html><head>
<meta property="og:site_name" content="Acme Plumbing">
<title>Acme Plumbing | Nairobi</title>
<script type="application/ld+json">
{"@type": "LocalBusiness", "name": "Acme Plumbing",
 "founder": {"@type": "Person", "name": "Jane Wanjiku", "jobTitle": "Founder"},
 "address": {"@type": "PostalAddress", "streetAddress": "12 Kimathi St", "addressLocality": "Nairobi"}}
</script>
</head><body>
<a href="mailto:info@acmeplumbing.example">info@acmeplumbing.example</a>
<a href="tel:+254700123456">+254 700 123456</a>
<a href="/services">Services</a><a href="/contact">Contact</a>
</body></html>`

func testEngine(t *testing.T, handler http.Handler) (*Engine, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewFetcherWithTimeout(5 * time.Second)
	f.client = srv.Client()
	return NewEngine(f, nil), srv
}

func TestExtractFullBusinessPage(t *testing.T) {
	e, srv := testEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(businessHTML))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	ext, err := e.Extract(context.Background(), model.Candidate{
		Title: "Acme Plumbing Ltd",
		Link:  srv.URL + "/",
	}, "plumbers", "")
	require.NoError(t, err)

	assert.Equal(t, "Acme Plumbing", ext.CompanyName)
	assert.False(t, ext.Minimal)
	assert.Equal(t, []string{"info@acmeplumbing.example"}, ext.Emails)
	require.NotEmpty(t, ext.Phones)
	assert.Equal(t, "+254700123456", ext.Phones[0])
	assert.Equal(t, "12 Kimathi St, Nairobi", ext.Address)
	require.NotEmpty(t, ext.DecisionMakers)
	assert.Equal(t, "Jane Wanjiku", ext.DecisionMakers[0].Name)
}

func TestExtractDegradesToMinimalOnFetchFailure(t *testing.T) {
	e, srv := testEngine(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	ext, err := e.Extract(context.Background(), model.Candidate{
		Title:   "City Pipes Ltd",
		Link:    srv.URL + "/",
		Phone:   "+254711000222",
		Address: "Industrial Area, Nairobi",
	}, "plumbers", "")
	require.NoError(t, err)

	assert.True(t, ext.Minimal)
	assert.Equal(t, "City Pipes Ltd", ext.CompanyName)
	assert.Equal(t, []string{"+254711000222"}, ext.Phones)
	assert.Equal(t, "Industrial Area, Nairobi", ext.Address)
}

func TestExtractRejectsDirectoryPage(t *testing.T) {
	page := `<html><head><title>Top 10 Plumbers Near You</title>
	<script type="application/ld+json">{"@type": "ItemList"}</script></head><body>` +
		manyExternalAnchors(15) + `</body></html>`
	e, srv := testEngine(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page))
	}))

	_, err := e.Extract(context.Background(), model.Candidate{
		Title: "Top 10 Plumbers",
		Link:  srv.URL + "/top-10",
	}, "plumbers", "")
	require.Error(t, err)
	assert.True(t, IsRejection(err))
}

func manyExternalAnchors(n int) string {
	var s string
	for i := 0; i < n; i++ {
		s += `<a href="https://biz` + string(rune('a'+i)) + `.example/">x</a>`
	}
	return s
}

func TestExtractRejectsSocialOnlyWebsite(t *testing.T) {
	e := NewEngine(nil, nil)
	_, err := e.Extract(context.Background(), model.Candidate{
		Title: "Somebody's Bakery",
		Link:  "https://www.facebook.com/somebodysbakery",
	}, "bakeries", "")
	require.Error(t, err)
	assert.True(t, IsRejection(err))
}

type vetoRelevance struct{ confidence float64 }

func (v vetoRelevance) IsRelevant(context.Context, model.Candidate, string, string) (collab.Relevance, error) {
	return collab.Relevance{Relevant: false, Confidence: v.confidence, Reason: "wrong industry"}, nil
}

func TestExtractRelevanceGate(t *testing.T) {
	// Confident veto drops the candidate before any fetch.
	e := NewEngine(NewFetcherWithTimeout(time.Second), vetoRelevance{confidence: 0.9})
	_, err := e.Extract(context.Background(), model.Candidate{
		Title: "Smith & Partners LLP",
		Link:  "https://smithpartners.invalid",
	}, "plumbers", "")
	require.Error(t, err)
	assert.True(t, IsRejection(err))

	// A low-confidence veto proceeds (and then degrades to minimal since
	// the host does not resolve).
	e = NewEngine(NewFetcherWithTimeout(time.Second), vetoRelevance{confidence: 0.3})
	ext, err := e.Extract(context.Background(), model.Candidate{
		Title: "Smith & Partners LLP",
		Link:  "https://smithpartners.invalid",
	}, "plumbers", "")
	require.NoError(t, err)
	assert.True(t, ext.Minimal)
}

func TestExtractProviderOnlyCandidate(t *testing.T) {
	e := NewEngine(nil, nil)
	ext, err := e.Extract(context.Background(), model.Candidate{
		Title:   "Mama Oliech Restaurant",
		Link:    "https://www.google.com/maps/place/?q=place_id:abc",
		Phone:   "+254722333444",
		Address: "Marcus Garvey Rd",
	}, "restaurants", "")
	require.NoError(t, err)

	assert.True(t, ext.Minimal)
	assert.Equal(t, "Mama Oliech Restaurant", ext.CompanyName)
	assert.Equal(t, []string{"+254722333444"}, ext.Phones)
}

func TestExtractTeamPageCrawl(t *testing.T) {
	home := `<html><head><title>Acme Agency</title></head><body>
	<a href="/about">About</a>
	</body></html>`
	team := `<html><body>
	<h3>Grace Njeri</h3><p>CEO</p>
	<h3>Tom Kamau</h3><p>CTO and co-founder</p>
	</body></html>`

	e, srv := testEngine(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(home))
		case "/about", "/team":
			_, _ = w.Write([]byte(team))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ext, err := e.Extract(context.Background(), model.Candidate{
		Title: "Acme Agency",
		Link:  srv.URL + "/",
	}, "marketing agencies", "")
	require.NoError(t, err)

	names := make([]string, 0, len(ext.DecisionMakers))
	for _, p := range ext.DecisionMakers {
		names = append(names, p.Name)
	}
	assert.Contains(t, names, "Grace Njeri")
	assert.Contains(t, names, "Tom Kamau")
	for _, p := range ext.DecisionMakers {
		assert.Equal(t, "team_page", p.Source)
	}
}
