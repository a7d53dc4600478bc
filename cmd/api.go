package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/scheduler"
	"github.com/fathom-labs/leadstream/internal/store"
)

// previewLeadCap limits how many leads a zero-balance tenant sees.
const previewLeadCap = 5

// apiServer exposes the discovery REST API.
type apiServer struct {
	store    store.Store
	sched    *scheduler.Scheduler
	ledger   collab.CreditLedger
	validate *validator.Validate
}

func newAPIServer(st store.Store, sched *scheduler.Scheduler, ledger collab.CreditLedger) *apiServer {
	return &apiServer{
		store:    st,
		sched:    sched,
		ledger:   ledger,
		validate: validator.New(),
	}
}

// routes builds the request router.
func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	}))
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/searches", s.handleCreateSearch)
		r.Get("/searches", s.handleListSearches)
		r.Get("/searches/{id}", s.handleGetSearch)
		r.Delete("/searches/{id}", s.handleDeleteSearch)
		r.Get("/searches/{id}/leads", s.handleListLeads)
		r.Get("/queue", s.handleQueue)
	})

	return r
}

func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "store unreachable")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createSearchRequest struct {
	TenantID     string `json:"tenant_id"`
	Query        string `json:"query" validate:"required,min=2,max=200"`
	Country      string `json:"country" validate:"omitempty,len=2"`
	Location     string `json:"location" validate:"max=200"`
	Industry     string `json:"industry" validate:"max=100"`
	ResultTarget int    `json:"result_target" validate:"omitempty,oneof=50 100 200"`
	Priority     int    `json:"priority" validate:"gte=0,lte=100"`
}

type createSearchResponse struct {
	Job scheduler.Position `json:"queue"`
	ID  string             `json:"id"`
}

func (s *apiServer) handleCreateSearch(w http.ResponseWriter, r *http.Request) {
	var req createSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tenant := req.TenantID
	if tenant == "" {
		tenant = "anonymous"
	}
	target := req.ResultTarget
	if target == 0 {
		target = model.ValidResultTargets[0]
	}

	job := &model.SearchJob{
		TenantID:     tenant,
		Query:        req.Query,
		Country:      req.Country,
		Location:     req.Location,
		Industry:     req.Industry,
		ResultTarget: target,
		Priority:     req.Priority,
		Status:       model.JobStatusPending,
	}
	if err := s.store.CreateSearchJob(r.Context(), job); err != nil {
		zap.L().Error("create search job", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "could not create search")
		return
	}

	pos := s.sched.Enqueue(r.Context(), job.ID)

	s.jsonResponse(w, http.StatusAccepted, createSearchResponse{ID: job.ID, Job: pos})
}

func (s *apiServer) handleListSearches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.JobFilter{
		TenantID: q.Get("tenant_id"),
		Status:   model.JobStatus(q.Get("status")),
		Limit:    intParam(q.Get("limit"), 50),
		Offset:   intParam(q.Get("offset"), 0),
	}

	jobs, err := s.store.ListSearchJobs(r.Context(), filter)
	if err != nil {
		zap.L().Error("list search jobs", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "could not list searches")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"searches": jobs})
}

func (s *apiServer) handleGetSearch(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetSearchJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "search not found")
			return
		}
		zap.L().Error("get search job", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "could not load search")
		return
	}
	s.jsonResponse(w, http.StatusOK, job)
}

func (s *apiServer) handleDeleteSearch(w http.ResponseWriter, r *http.Request) {
	err := s.store.DeleteSearchJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "search not found")
			return
		}
		zap.L().Error("delete search job", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "could not delete search")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type listLeadsResponse struct {
	Leads   []model.Lead     `json:"leads"`
	Counts  store.LeadCounts `json:"counts"`
	Preview bool             `json:"preview,omitempty"`
}

func (s *apiServer) handleListLeads(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.GetSearchJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if eris.Is(err, store.ErrNotFound) {
			s.errorResponse(w, http.StatusNotFound, "search not found")
			return
		}
		zap.L().Error("get search job", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "could not load search")
		return
	}

	q := r.URL.Query()
	filter := store.LeadFilter{
		SearchJobID: job.ID,
		Industry:    q.Get("industry"),
		Country:     q.Get("country"),
		Limit:       intParam(q.Get("limit"), 100),
		Offset:      intParam(q.Get("offset"), 0),
	}
	if raw := q.Get("min_quality"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinQuality = &v
		}
	}

	// Tenants with no remaining credits get a redacted preview instead of
	// an error: enough to judge quality, not enough to export.
	preview := false
	if bal, err := s.ledger.Balance(r.Context(), job.TenantID); err == nil && bal <= 0 {
		preview = true
		if filter.Limit > previewLeadCap {
			filter.Limit = previewLeadCap
		}
		filter.Offset = 0
	}

	leads, err := s.store.ListLeads(r.Context(), filter)
	if err != nil {
		zap.L().Error("list leads", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "could not list leads")
		return
	}
	if preview {
		for i := range leads {
			leads[i].Emails = nil
			leads[i].PhoneNumbers = nil
			leads[i].DecisionMakers = nil
		}
	}

	counts, err := s.store.CountLeads(r.Context(), job.ID)
	if err != nil {
		zap.L().Error("count leads", zap.Error(err))
		s.errorResponse(w, http.StatusInternalServerError, "could not count leads")
		return
	}

	s.jsonResponse(w, http.StatusOK, listLeadsResponse{Leads: leads, Counts: counts, Preview: preview})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, s.sched.Stats())
}

func (s *apiServer) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func (s *apiServer) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
