package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/scheduler"
	"github.com/fathom-labs/leadstream/internal/store"
)

// noopRunner satisfies scheduler.Runner without doing pipeline work.
type noopRunner struct{}

func (noopRunner) Run(context.Context, string) error { return nil }
func (noopRunner) PauseBackfills()                   {}
func (noopRunner) ResumeBackfills()                  {}

type testAPI struct {
	store  store.Store
	sched  *scheduler.Scheduler
	server *httptest.Server
}

func newTestAPI(t *testing.T, credits int) *testAPI {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	sched := scheduler.New(st, noopRunner{}, scheduler.WithCooldown(0))
	api := newAPIServer(st, sched, collab.NewStaticLedger(credits))

	ts := httptest.NewServer(api.routes())
	t.Cleanup(ts.Close)

	return &testAPI{store: st, sched: sched, server: ts}
}

func (a *testAPI) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(a.server.URL+path, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	return resp
}

func (a *testAPI) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(a.server.URL + path)
	require.NoError(t, err)
	return resp
}

func (a *testAPI) del(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodDelete, a.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealth(t *testing.T) {
	a := newTestAPI(t, 100)

	resp := a.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateSearch(t *testing.T) {
	a := newTestAPI(t, 100)

	resp := a.post(t, "/api/searches", map[string]any{
		"tenant_id":     "tenant-a",
		"query":         "coffee roasters",
		"country":       "de",
		"location":      "Berlin",
		"result_target": 100,
	})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody[createSearchResponse](t, resp)
	require.NotEmpty(t, body.ID)
	assert.Equal(t, 1, body.Job.Tenant)

	a.sched.Wait()

	job, err := a.store.GetSearchJob(context.Background(), body.ID)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", job.TenantID)
	assert.Equal(t, "coffee roasters", job.Query)
	assert.Equal(t, 100, job.ResultTarget)
}

func TestCreateSearchDefaults(t *testing.T) {
	a := newTestAPI(t, 100)

	resp := a.post(t, "/api/searches", map[string]any{"query": "florists"})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody[createSearchResponse](t, resp)
	a.sched.Wait()

	job, err := a.store.GetSearchJob(context.Background(), body.ID)
	require.NoError(t, err)
	assert.Equal(t, "anonymous", job.TenantID)
	assert.Equal(t, 50, job.ResultTarget)
}

func TestCreateSearchInvalidBody(t *testing.T) {
	a := newTestAPI(t, 100)

	resp, err := http.Post(a.server.URL+"/api/searches", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSearchValidation(t *testing.T) {
	a := newTestAPI(t, 100)

	// Missing query
	resp := a.post(t, "/api/searches", map[string]any{"tenant_id": "t"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Result target outside the allowed tiers
	resp = a.post(t, "/api/searches", map[string]any{"query": "florists", "result_target": 75})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Country must be a two-letter code
	resp = a.post(t, "/api/searches", map[string]any{"query": "florists", "country": "germany"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSearchNotFound(t *testing.T) {
	a := newTestAPI(t, 100)

	resp := a.get(t, "/api/searches/nope")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetSearch(t *testing.T) {
	a := newTestAPI(t, 100)

	job := &model.SearchJob{TenantID: "t1", Query: "bakeries", ResultTarget: 50, Status: model.JobStatusPending}
	require.NoError(t, a.store.CreateSearchJob(context.Background(), job))

	resp := a.get(t, "/api/searches/"+job.ID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeBody[model.SearchJob](t, resp)
	assert.Equal(t, "bakeries", got.Query)
}

func TestDeleteSearch(t *testing.T) {
	a := newTestAPI(t, 100)

	job := &model.SearchJob{TenantID: "t1", Query: "bakeries", ResultTarget: 50, Status: model.JobStatusPending}
	require.NoError(t, a.store.CreateSearchJob(context.Background(), job))

	resp := a.del(t, "/api/searches/"+job.ID)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = a.get(t, "/api/searches/" + job.ID)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = a.del(t, "/api/searches/"+job.ID)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListSearchesFiltersByTenant(t *testing.T) {
	a := newTestAPI(t, 100)

	for _, tenant := range []string{"t1", "t1", "t2"} {
		job := &model.SearchJob{TenantID: tenant, Query: "bakeries", ResultTarget: 50, Status: model.JobStatusPending}
		require.NoError(t, a.store.CreateSearchJob(context.Background(), job))
	}

	resp := a.get(t, "/api/searches?tenant_id=t1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string][]model.SearchJob](t, resp)
	assert.Len(t, body["searches"], 2)
}

func seedLeads(t *testing.T, st store.Store, jobID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		q := 0.9 - float64(i)*0.1
		lead := &model.Lead{
			SearchJobID:      jobID,
			CompanyName:      fmt.Sprintf("Company %d", i),
			Website:          fmt.Sprintf("https://company%d.example", i),
			WebsiteNorm:      fmt.Sprintf("company%d.example", i),
			Emails:           []string{fmt.Sprintf("info@company%d.example", i)},
			PhoneNumbers:     []string{"+49 30 1234567"},
			ExtractionStatus: model.ExtractionComplete,
			EnrichmentStatus: model.EnrichmentComplete,
			QualityScore:     &q,
		}
		require.NoError(t, st.InsertLead(context.Background(), lead))
	}
}

func TestListLeads(t *testing.T) {
	a := newTestAPI(t, 100)

	job := &model.SearchJob{TenantID: "t1", Query: "bakeries", ResultTarget: 50, Status: model.JobStatusPending}
	require.NoError(t, a.store.CreateSearchJob(context.Background(), job))
	seedLeads(t, a.store, job.ID, 3)

	resp := a.get(t, "/api/searches/"+job.ID+"/leads")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[listLeadsResponse](t, resp)
	assert.Len(t, body.Leads, 3)
	assert.Equal(t, 3, body.Counts.Total)
	assert.False(t, body.Preview)
	// Best quality first
	assert.Equal(t, "Company 0", body.Leads[0].CompanyName)

	// min_quality filters out the weakest lead
	resp = a.get(t, "/api/searches/"+job.ID+"/leads?min_quality=0.75")
	body = decodeBody[listLeadsResponse](t, resp)
	assert.Len(t, body.Leads, 2)
}

func TestListLeadsPreviewWhenNoCredits(t *testing.T) {
	a := newTestAPI(t, 0)

	job := &model.SearchJob{TenantID: "t1", Query: "bakeries", ResultTarget: 50, Status: model.JobStatusPending}
	require.NoError(t, a.store.CreateSearchJob(context.Background(), job))
	seedLeads(t, a.store, job.ID, previewLeadCap+3)

	resp := a.get(t, "/api/searches/"+job.ID+"/leads")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[listLeadsResponse](t, resp)
	assert.True(t, body.Preview)
	assert.Len(t, body.Leads, previewLeadCap)
	for _, lead := range body.Leads {
		assert.Empty(t, lead.Emails)
		assert.Empty(t, lead.PhoneNumbers)
	}
	// Counts still reflect the full set
	assert.Equal(t, previewLeadCap+3, body.Counts.Total)
}

func TestListLeadsJobNotFound(t *testing.T) {
	a := newTestAPI(t, 100)

	resp := a.get(t, "/api/searches/nope/leads")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueueStats(t *testing.T) {
	a := newTestAPI(t, 100)

	resp := a.get(t, "/api/queue")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[scheduler.Stats](t, resp)
	assert.Equal(t, 0, body.QueuedJobs)
}
