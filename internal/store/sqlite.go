package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/fathom-labs/leadstream/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode plus foreign key enforcement (needed for cascade deletes).
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Pragmas are per-connection; keep a single connection so they hold.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_jobs (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL DEFAULT '',
	query           TEXT NOT NULL,
	country         TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	industry        TEXT NOT NULL DEFAULT '',
	result_target   INTEGER NOT NULL,
	priority        INTEGER NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	error           TEXT NOT NULL DEFAULT '',
	total_results   INTEGER NOT NULL DEFAULT 0,
	extracted_count INTEGER NOT NULL DEFAULT 0,
	enriched_count  INTEGER NOT NULL DEFAULT 0,
	telemetry       TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_search_jobs_tenant ON search_jobs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_search_jobs_status ON search_jobs(status);

CREATE TABLE IF NOT EXISTS leads (
	id                   TEXT PRIMARY KEY,
	search_job_id        TEXT NOT NULL REFERENCES search_jobs(id) ON DELETE CASCADE,
	company_name         TEXT NOT NULL,
	website              TEXT NOT NULL DEFAULT '',
	website_norm         TEXT NOT NULL DEFAULT '',
	emails               TEXT,
	phone_numbers        TEXT,
	address              TEXT NOT NULL DEFAULT '',
	decision_makers      TEXT,
	is_duplicate         INTEGER NOT NULL DEFAULT 0,
	duplicate_of_lead_id TEXT NOT NULL DEFAULT '',
	extraction_status    TEXT NOT NULL DEFAULT 'pending',
	enrichment_status    TEXT NOT NULL DEFAULT 'pending',
	quality_score        REAL,
	verification_score   REAL,
	signal_strength      REAL,
	industry             TEXT NOT NULL DEFAULT '',
	company_size         TEXT NOT NULL DEFAULT '',
	email_pattern        TEXT NOT NULL DEFAULT '',
	created_at           DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_job ON leads(search_job_id);

CREATE UNIQUE INDEX IF NOT EXISTS uq_leads_job_website
	ON leads(search_job_id, website_norm)
	WHERE NOT is_duplicate AND website_norm <> '';

CREATE TABLE IF NOT EXISTS expansion_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	terms      TEXT NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expansion_cache_expires ON expansion_cache(expires_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSearchJob(ctx context.Context, job *model.SearchJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_jobs (id, tenant_id, query, country, location, industry, result_target, priority, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.TenantID, job.Query, job.Country, job.Location, job.Industry,
		job.ResultTarget, job.Priority, string(job.Status), now, now,
	)
	return eris.Wrap(err, "sqlite: insert search job")
}

func (s *SQLiteStore) GetSearchJob(ctx context.Context, jobID string) (*model.SearchJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, query, country, location, industry, result_target, priority, status, error, total_results, extracted_count, enriched_count, telemetry, created_at, updated_at, completed_at FROM search_jobs WHERE id = ?`,
		jobID,
	)
	job, err := scanJobSQL(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: search job %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get search job %s", jobID)
	}
	return job, nil
}

func (s *SQLiteStore) ListSearchJobs(ctx context.Context, filter JobFilter) ([]model.SearchJob, error) {
	query := `SELECT id, tenant_id, query, country, location, industry, result_target, priority, status, error, total_results, extracted_count, enriched_count, telemetry, created_at, updated_at, completed_at FROM search_jobs WHERE true`
	args := []any{}

	if filter.TenantID != "" {
		query += ` AND tenant_id = ?`
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list search jobs")
	}
	defer rows.Close()

	var jobs []model.SearchJob
	for rows.Next() {
		job, err := scanJobSQL(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan search job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list search jobs")
}

func (s *SQLiteStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	now := time.Now().UTC()
	var completed any
	if status == model.JobStatusCompleted {
		completed = now
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE search_jobs SET status = ?, updated_at = ?, completed_at = COALESCE(?, completed_at) WHERE id = ?`,
		string(status), now, completed, jobID,
	)
	return eris.Wrapf(err, "sqlite: update job status %s", jobID)
}

func (s *SQLiteStore) MarkJobFailed(ctx context.Context, jobID string, message string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE search_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.JobStatusFailed), message, time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "sqlite: mark job failed %s", jobID)
}

func (s *SQLiteStore) UpdateJobCounters(ctx context.Context, jobID string, totalResults, extracted, enriched int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE search_jobs SET total_results = ?, extracted_count = ?, enriched_count = ?, updated_at = ? WHERE id = ?`,
		totalResults, extracted, enriched, time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "sqlite: update job counters %s", jobID)
}

func (s *SQLiteStore) SaveTelemetry(ctx context.Context, jobID string, tel model.ProviderTelemetry) error {
	telJSON, err := json.Marshal(tel)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal telemetry")
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE search_jobs SET telemetry = ?, updated_at = ? WHERE id = ?`,
		string(telJSON), time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "sqlite: save telemetry %s", jobID)
}

func (s *SQLiteStore) DeleteSearchJob(ctx context.Context, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM search_jobs WHERE id = ?`, jobID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete search job %s", jobID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: search job %s", jobID)
	}
	return nil
}

func (s *SQLiteStore) InsertLead(ctx context.Context, lead *model.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now
	if lead.ExtractionStatus == "" {
		lead.ExtractionStatus = model.ExtractionComplete
	}
	if lead.EnrichmentStatus == "" {
		lead.EnrichmentStatus = model.EnrichmentPending
	}

	emails, phones, makers, err := marshalLeadJSON(lead)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO leads (id, search_job_id, company_name, website, website_norm, emails, phone_numbers, address, decision_makers, is_duplicate, duplicate_of_lead_id, extraction_status, enrichment_status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.SearchJobID, lead.CompanyName, lead.Website, lead.WebsiteNorm,
		nullableText(emails), nullableText(phones), lead.Address, nullableText(makers),
		lead.IsDuplicate, lead.DuplicateOfLeadID,
		string(lead.ExtractionStatus), string(lead.EnrichmentStatus), now, now,
	)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "UNIQUE constraint") {
			return eris.Wrapf(ErrDuplicateWebsite, "sqlite: insert lead %s", lead.WebsiteNorm)
		}
		if strings.Contains(msg, "FOREIGN KEY constraint") {
			// Parent job was deleted while the pipeline was running.
			return nil
		}
		return eris.Wrap(err, "sqlite: insert lead")
	}
	return nil
}

func (s *SQLiteStore) MarkLeadDuplicate(ctx context.Context, leadID, duplicateOfLeadID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET is_duplicate = 1, duplicate_of_lead_id = ?, updated_at = ? WHERE id = ?`,
		duplicateOfLeadID, time.Now().UTC(), leadID,
	)
	return eris.Wrapf(err, "sqlite: mark lead duplicate %s", leadID)
}

func (s *SQLiteStore) UpdateLeadEnrichment(ctx context.Context, lead *model.Lead) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE leads SET enrichment_status = ?, quality_score = ?, verification_score = ?, signal_strength = ?, industry = ?, company_size = ?, email_pattern = ?, updated_at = ? WHERE id = ?`,
		string(lead.EnrichmentStatus), lead.QualityScore, lead.VerificationScore,
		lead.SignalStrength, lead.Industry, lead.CompanySize, lead.EmailPattern,
		time.Now().UTC(), lead.ID,
	)
	return eris.Wrapf(err, "sqlite: update lead enrichment %s", lead.ID)
}

func (s *SQLiteStore) ActiveLeads(ctx context.Context, searchJobID string) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE search_job_id = ? AND NOT is_duplicate ORDER BY created_at ASC`,
		searchJobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active leads")
	}
	defer rows.Close()
	return collectLeadsSQL(rows)
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + prefixedLeadColumns("l") + ` FROM leads l JOIN search_jobs j ON j.id = l.search_job_id WHERE l.search_job_id = ? AND NOT l.is_duplicate`
	args := []any{filter.SearchJobID}

	if filter.MinQuality != nil {
		query += ` AND l.quality_score >= ?`
		args = append(args, *filter.MinQuality)
	}
	if filter.Industry != "" {
		query += ` AND l.industry = ?`
		args = append(args, filter.Industry)
	}
	if filter.Country != "" {
		query += ` AND j.country = ?`
		args = append(args, filter.Country)
	}

	query += ` ORDER BY l.quality_score DESC NULLS LAST, l.verification_score DESC NULLS LAST, l.signal_strength DESC NULLS LAST, l.created_at ASC LIMIT ? OFFSET ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()
	return collectLeadsSQL(rows)
}

func (s *SQLiteStore) CountLeads(ctx context.Context, searchJobID string) (LeadCounts, error) {
	var c LeadCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*),
			SUM(CASE WHEN extraction_status = 'extracted' AND NOT is_duplicate THEN 1 ELSE 0 END),
			SUM(CASE WHEN enrichment_status = 'enriched' AND NOT is_duplicate THEN 1 ELSE 0 END),
			SUM(CASE WHEN is_duplicate THEN 1 ELSE 0 END)
		FROM leads WHERE search_job_id = ?`,
		searchJobID,
	).Scan(&c.Total, &nullInt{&c.Extracted}, &nullInt{&c.Enriched}, &nullInt{&c.Duplicates})
	return c, eris.Wrap(err, "sqlite: count leads")
}

func (s *SQLiteStore) GetCachedExpansion(ctx context.Context, key string) ([]string, error) {
	var termsJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT terms FROM expansion_cache WHERE cache_key = ? AND expires_at > ? ORDER BY cached_at DESC LIMIT 1`,
		key, time.Now().UTC(),
	).Scan(&termsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cached expansion")
	}
	var terms []string
	if err := json.Unmarshal([]byte(termsJSON), &terms); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal expansion terms")
	}
	return terms, nil
}

func (s *SQLiteStore) SetCachedExpansion(ctx context.Context, key string, terms []string, ttl time.Duration) error {
	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal expansion terms")
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO expansion_cache (id, cache_key, terms, cached_at, expires_at) VALUES (?, ?, ?, ?, ?) ON CONFLICT (cache_key) DO UPDATE SET terms = excluded.terms, cached_at = excluded.cached_at, expires_at = excluded.expires_at`,
		uuid.New().String(), key, string(termsJSON), now, now.Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set cached expansion")
}

func (s *SQLiteStore) DeleteExpiredExpansions(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM expansion_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired expansions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

func scanJobSQL(scan func(dest ...any) error) (*model.SearchJob, error) {
	var job model.SearchJob
	var status string
	var telJSON sql.NullString
	var completedAt sql.NullTime

	err := scan(&job.ID, &job.TenantID, &job.Query, &job.Country, &job.Location,
		&job.Industry, &job.ResultTarget, &job.Priority, &status, &job.Error,
		&job.TotalResults, &job.ExtractedCount, &job.EnrichedCount, &telJSON,
		&job.CreatedAt, &job.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if telJSON.Valid && telJSON.String != "" {
		if err := json.Unmarshal([]byte(telJSON.String), &job.Telemetry); err != nil {
			return nil, eris.Wrap(err, "unmarshal telemetry")
		}
	}
	return &job, nil
}

func collectLeadsSQL(rows *sql.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var extraction, enrichment string
		var emails, phones, makers sql.NullString

		err := rows.Scan(&l.ID, &l.SearchJobID, &l.CompanyName, &l.Website, &l.WebsiteNorm,
			&emails, &phones, &l.Address, &makers, &l.IsDuplicate, &l.DuplicateOfLeadID,
			&extraction, &enrichment, &l.QualityScore, &l.VerificationScore,
			&l.SignalStrength, &l.Industry, &l.CompanySize, &l.EmailPattern,
			&l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		l.ExtractionStatus = model.ExtractionStatus(extraction)
		l.EnrichmentStatus = model.EnrichmentStatus(enrichment)
		if err := unmarshalLeadJSON(&l, []byte(emails.String), []byte(phones.String), []byte(makers.String)); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: iterate leads")
}

// nullableText converts empty JSON to a SQL NULL.
func nullableText(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// nullInt scans a SUM() result, which is NULL over zero rows.
type nullInt struct{ dst *int }

func (n *nullInt) Scan(src any) error {
	if src == nil {
		*n.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*n.dst = int(v)
	case float64:
		*n.dst = int(v)
	default:
		return eris.Errorf("sqlite: unexpected count type %T", src)
	}
	return nil
}
