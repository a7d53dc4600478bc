package places

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathom-labs/leadstream/internal/resilience"
)

func TestTextSearch_FollowsPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "secret", r.Header.Get("X-Goog-Api-Key"))
		assert.NotEmpty(t, r.Header.Get("X-Goog-FieldMask"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "coffee shops", req["textQuery"])
		assert.Equal(t, "KE", req["regionCode"])

		if calls == 1 {
			_, _ = w.Write([]byte(`{"places":[
				{"id":"p1","displayName":{"text":"Java House"},"websiteUri":"https://javahouseafrica.com","formattedAddress":"Koinange St, Nairobi","nationalPhoneNumber":"0700 000000"}
			],"nextPageToken":"tok-2"}`))
			return
		}
		assert.Equal(t, "tok-2", req["pageToken"])
		_, _ = w.Write([]byte(`{"places":[
			{"id":"p2","displayName":{"text":"Artcaffe"},"websiteUri":"https://artcaffe.co.ke"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	got, err := c.TextSearch(context.Background(), "coffee shops", "KE", 40)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, calls)
	assert.Equal(t, "Java House", got[0].DisplayName.Text)
	assert.Equal(t, "https://artcaffe.co.ke", got[1].WebsiteURI)
}

func TestTextSearch_StopsAtMaxResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.InDelta(t, 5, req["pageSize"], 0.1)
		_, _ = w.Write([]byte(`{"places":[
			{"id":"p1","displayName":{"text":"A"}},{"id":"p2","displayName":{"text":"B"}},
			{"id":"p3","displayName":{"text":"C"}},{"id":"p4","displayName":{"text":"D"}},
			{"id":"p5","displayName":{"text":"E"}}
		],"nextPageToken":"more"}`))
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	got, err := c.TextSearch(context.Background(), "coffee", "", 5)

	require.NoError(t, err)
	assert.Len(t, got, 5)
}

func TestTextSearch_NoAPIKey(t *testing.T) {
	c := NewClient("")
	_, err := c.TextSearch(context.Background(), "coffee", "", 10)
	assert.ErrorIs(t, err, resilience.ErrAuthMissing)
}

func TestTextSearch_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("secret", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	_, err := c.TextSearch(context.Background(), "coffee", "", 10)
	require.Error(t, err)
	assert.True(t, resilience.IsRateLimited(err))
}
