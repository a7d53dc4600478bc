package searx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "coffee shops nairobi", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		_, _ = w.Write([]byte(`{"results":[
			{"title":"Java House","url":"https://javahouseafrica.com","content":"Coffee chain","engine":"duckduckgo"},
			{"title":"Artcaffe","url":"https://artcaffe.co.ke","content":"Cafe and bakery","engine":"brave"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	results, err := c.Search(context.Background(), "coffee shops nairobi")

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Java House", results[0].Title)
	assert.Equal(t, "https://artcaffe.co.ke", results[1].URL)
}

func TestSearch_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithHTTPClient(srv.Client()))
	_, err := c.Search(context.Background(), "coffee")
	require.Error(t, err)
}
