package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/fathom-labs/leadstream/internal/db"
	"github.com/fathom-labs/leadstream/internal/model"
)

// PostgresStore implements Store backed by a pgx connection pool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig adjusts connection pool sizing.
type PoolConfig struct {
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// preparedStatements are prepared on every new connection so the hot-path
// queries skip the parse step.
var preparedStatements = map[string]string{
	"get_job":        `SELECT id, tenant_id, query, country, location, industry, result_target, priority, status, error, total_results, extracted_count, enriched_count, telemetry, created_at, updated_at, completed_at FROM search_jobs WHERE id = $1`,
	"update_status":  `UPDATE search_jobs SET status = $1, updated_at = $2, completed_at = CASE WHEN $1 = 'completed' THEN $2 ELSE completed_at END WHERE id = $3`,
	"update_counts":  `UPDATE search_jobs SET total_results = $1, extracted_count = $2, enriched_count = $3, updated_at = $4 WHERE id = $5`,
	"insert_lead":    `INSERT INTO leads (id, search_job_id, company_name, website, website_norm, emails, phone_numbers, address, decision_makers, is_duplicate, duplicate_of_lead_id, extraction_status, enrichment_status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
	"active_leads":   `SELECT ` + leadColumns + ` FROM leads WHERE search_job_id = $1 AND NOT is_duplicate ORDER BY created_at ASC`,
	"count_leads":    `SELECT count(*), count(*) FILTER (WHERE extraction_status = 'extracted' AND NOT is_duplicate), count(*) FILTER (WHERE enrichment_status = 'enriched' AND NOT is_duplicate), count(*) FILTER (WHERE is_duplicate) FROM leads WHERE search_job_id = $1`,
	"get_expansion":  `SELECT terms FROM expansion_cache WHERE cache_key = $1 AND expires_at > now() ORDER BY cached_at DESC LIMIT 1`,
	"set_expansion":  `INSERT INTO expansion_cache (id, cache_key, terms, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (cache_key) DO UPDATE SET terms = EXCLUDED.terms, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
	"purge_expansions": `DELETE FROM expansion_cache WHERE expires_at <= now()`,
}

const leadColumns = `id, search_job_id, company_name, website, website_norm, emails, phone_numbers, address, decision_makers, is_duplicate, duplicate_of_lead_id, extraction_status, enrichment_status, quality_score, verification_score, signal_strength, industry, company_size, email_pattern, created_at, updated_at`

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
		if poolCfg.MaxConnLifetime > 0 {
			pgxCfg.MaxConnLifetime = poolCfg.MaxConnLifetime
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
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
	telemetry       JSONB,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_search_jobs_tenant ON search_jobs(tenant_id);
CREATE INDEX IF NOT EXISTS idx_search_jobs_status ON search_jobs(status);

CREATE TABLE IF NOT EXISTS leads (
	id                   TEXT PRIMARY KEY,
	search_job_id        TEXT NOT NULL REFERENCES search_jobs(id) ON DELETE CASCADE,
	company_name         TEXT NOT NULL,
	website              TEXT NOT NULL DEFAULT '',
	website_norm         TEXT NOT NULL DEFAULT '',
	emails               JSONB,
	phone_numbers        JSONB,
	address              TEXT NOT NULL DEFAULT '',
	decision_makers      JSONB,
	is_duplicate         BOOLEAN NOT NULL DEFAULT false,
	duplicate_of_lead_id TEXT NOT NULL DEFAULT '',
	extraction_status    TEXT NOT NULL DEFAULT 'pending',
	enrichment_status    TEXT NOT NULL DEFAULT 'pending',
	quality_score        DOUBLE PRECISION,
	verification_score   DOUBLE PRECISION,
	signal_strength      DOUBLE PRECISION,
	industry             TEXT NOT NULL DEFAULT '',
	company_size         TEXT NOT NULL DEFAULT '',
	email_pattern        TEXT NOT NULL DEFAULT '',
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_job ON leads(search_job_id);

-- One active lead per hostname per job. Placeholder-link leads carry an
-- empty website_norm and are exempt.
CREATE UNIQUE INDEX IF NOT EXISTS uq_leads_job_website
	ON leads(search_job_id, website_norm)
	WHERE NOT is_duplicate AND website_norm <> '';

CREATE TABLE IF NOT EXISTS expansion_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL UNIQUE,
	terms      JSONB NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_expansion_cache_expires ON expansion_cache(expires_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Pool exposes the underlying pool for callers that need raw access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) CreateSearchJob(ctx context.Context, job *model.SearchJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO search_jobs (id, tenant_id, query, country, location, industry, result_target, priority, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		job.ID, job.TenantID, job.Query, job.Country, job.Location, job.Industry,
		job.ResultTarget, job.Priority, string(job.Status), now, now,
	)
	return eris.Wrap(err, "postgres: insert search job")
}

func (s *PostgresStore) GetSearchJob(ctx context.Context, jobID string) (*model.SearchJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tenant_id, query, country, location, industry, result_target, priority, status, error, total_results, extracted_count, enriched_count, telemetry, created_at, updated_at, completed_at FROM search_jobs WHERE id = $1`,
		jobID,
	)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: search job %s", jobID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get search job %s", jobID)
	}
	return job, nil
}

func (s *PostgresStore) ListSearchJobs(ctx context.Context, filter JobFilter) ([]model.SearchJob, error) {
	query := `SELECT id, tenant_id, query, country, location, industry, result_target, priority, status, error, total_results, extracted_count, enriched_count, telemetry, created_at, updated_at, completed_at FROM search_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.TenantID != "" {
		query += fmt.Sprintf(` AND tenant_id = $%d`, argIdx)
		args = append(args, filter.TenantID)
		argIdx++
	}
	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list search jobs")
	}
	defer rows.Close()

	var jobs []model.SearchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan search job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list search jobs")
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, jobID string, status model.JobStatus) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE search_jobs SET status = $1, updated_at = $2, completed_at = CASE WHEN $1 = 'completed' THEN $2 ELSE completed_at END WHERE id = $3`,
		string(status), time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "postgres: update job status %s", jobID)
}

func (s *PostgresStore) MarkJobFailed(ctx context.Context, jobID string, message string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE search_jobs SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		string(model.JobStatusFailed), message, time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "postgres: mark job failed %s", jobID)
}

func (s *PostgresStore) UpdateJobCounters(ctx context.Context, jobID string, totalResults, extracted, enriched int) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE search_jobs SET total_results = $1, extracted_count = $2, enriched_count = $3, updated_at = $4 WHERE id = $5`,
		totalResults, extracted, enriched, time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "postgres: update job counters %s", jobID)
}

func (s *PostgresStore) SaveTelemetry(ctx context.Context, jobID string, tel model.ProviderTelemetry) error {
	telJSON, err := json.Marshal(tel)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal telemetry")
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE search_jobs SET telemetry = $1, updated_at = $2 WHERE id = $3`,
		telJSON, time.Now().UTC(), jobID,
	)
	return eris.Wrapf(err, "postgres: save telemetry %s", jobID)
}

func (s *PostgresStore) DeleteSearchJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM search_jobs WHERE id = $1`, jobID)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete search job %s", jobID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: search job %s", jobID)
	}
	return nil
}

func (s *PostgresStore) InsertLead(ctx context.Context, lead *model.Lead) error {
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

	_, err = s.pool.Exec(ctx,
		`INSERT INTO leads (id, search_job_id, company_name, website, website_norm, emails, phone_numbers, address, decision_makers, is_duplicate, duplicate_of_lead_id, extraction_status, enrichment_status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		lead.ID, lead.SearchJobID, lead.CompanyName, lead.Website, lead.WebsiteNorm,
		emails, phones, lead.Address, makers,
		lead.IsDuplicate, lead.DuplicateOfLeadID,
		string(lead.ExtractionStatus), string(lead.EnrichmentStatus), now, now,
	)
	if isPgCode(err, "23505") {
		return eris.Wrapf(ErrDuplicateWebsite, "postgres: insert lead %s", lead.WebsiteNorm)
	}
	if isPgCode(err, "23503") {
		// Parent job was deleted while the pipeline was running.
		return nil
	}
	return eris.Wrap(err, "postgres: insert lead")
}

func (s *PostgresStore) MarkLeadDuplicate(ctx context.Context, leadID, duplicateOfLeadID string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET is_duplicate = true, duplicate_of_lead_id = $1, updated_at = $2 WHERE id = $3`,
		duplicateOfLeadID, time.Now().UTC(), leadID,
	)
	return eris.Wrapf(err, "postgres: mark lead duplicate %s", leadID)
}

func (s *PostgresStore) UpdateLeadEnrichment(ctx context.Context, lead *model.Lead) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET enrichment_status = $1, quality_score = $2, verification_score = $3, signal_strength = $4, industry = $5, company_size = $6, email_pattern = $7, updated_at = $8 WHERE id = $9`,
		string(lead.EnrichmentStatus), lead.QualityScore, lead.VerificationScore,
		lead.SignalStrength, lead.Industry, lead.CompanySize, lead.EmailPattern,
		time.Now().UTC(), lead.ID,
	)
	return eris.Wrapf(err, "postgres: update lead enrichment %s", lead.ID)
}

func (s *PostgresStore) ActiveLeads(ctx context.Context, searchJobID string) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE search_job_id = $1 AND NOT is_duplicate ORDER BY created_at ASC`,
		searchJobID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) ([]model.Lead, error) {
	query := `SELECT ` + prefixedLeadColumns("l") + ` FROM leads l JOIN search_jobs j ON j.id = l.search_job_id WHERE l.search_job_id = $1 AND NOT l.is_duplicate`
	args := []any{filter.SearchJobID}
	argIdx := 2

	if filter.MinQuality != nil {
		query += fmt.Sprintf(` AND l.quality_score >= $%d`, argIdx)
		args = append(args, *filter.MinQuality)
		argIdx++
	}
	if filter.Industry != "" {
		query += fmt.Sprintf(` AND l.industry = $%d`, argIdx)
		args = append(args, filter.Industry)
		argIdx++
	}
	if filter.Country != "" {
		query += fmt.Sprintf(` AND j.country = $%d`, argIdx)
		args = append(args, filter.Country)
		argIdx++
	}

	query += ` ORDER BY l.quality_score DESC NULLS LAST, l.verification_score DESC NULLS LAST, l.signal_strength DESC NULLS LAST, l.created_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *PostgresStore) CountLeads(ctx context.Context, searchJobID string) (LeadCounts, error) {
	var c LeadCounts
	err := s.pool.QueryRow(ctx,
		`SELECT count(*), count(*) FILTER (WHERE extraction_status = 'extracted' AND NOT is_duplicate), count(*) FILTER (WHERE enrichment_status = 'enriched' AND NOT is_duplicate), count(*) FILTER (WHERE is_duplicate) FROM leads WHERE search_job_id = $1`,
		searchJobID,
	).Scan(&c.Total, &c.Extracted, &c.Enriched, &c.Duplicates)
	return c, eris.Wrap(err, "postgres: count leads")
}

func (s *PostgresStore) GetCachedExpansion(ctx context.Context, key string) ([]string, error) {
	var termsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT terms FROM expansion_cache WHERE cache_key = $1 AND expires_at > now() ORDER BY cached_at DESC LIMIT 1`,
		key,
	).Scan(&termsJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cached expansion")
	}
	var terms []string
	if err := json.Unmarshal(termsJSON, &terms); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal expansion terms")
	}
	return terms, nil
}

func (s *PostgresStore) SetCachedExpansion(ctx context.Context, key string, terms []string, ttl time.Duration) error {
	termsJSON, err := json.Marshal(terms)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal expansion terms")
	}
	now := time.Now().UTC()
	_, err = s.pool.Exec(ctx,
		`INSERT INTO expansion_cache (id, cache_key, terms, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (cache_key) DO UPDATE SET terms = EXCLUDED.terms, cached_at = EXCLUDED.cached_at, expires_at = EXCLUDED.expires_at`,
		uuid.New().String(), key, termsJSON, now, now.Add(ttl),
	)
	return eris.Wrap(err, "postgres: set cached expansion")
}

func (s *PostgresStore) DeleteExpiredExpansions(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expansion_cache WHERE expires_at <= now()`)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired expansions")
	}
	return int(tag.RowsAffected()), nil
}

// scanJob reads one search_jobs row. Works for both QueryRow and Query
// iteration since pgx.Row and pgx.Rows share Scan.
func scanJob(row pgx.Row) (*model.SearchJob, error) {
	var job model.SearchJob
	var status string
	var telJSON []byte

	err := row.Scan(&job.ID, &job.TenantID, &job.Query, &job.Country, &job.Location,
		&job.Industry, &job.ResultTarget, &job.Priority, &status, &job.Error,
		&job.TotalResults, &job.ExtractedCount, &job.EnrichedCount, &telJSON,
		&job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	job.Status = model.JobStatus(status)
	if len(telJSON) > 0 {
		if err := json.Unmarshal(telJSON, &job.Telemetry); err != nil {
			return nil, eris.Wrap(err, "unmarshal telemetry")
		}
	}
	return &job, nil
}

func collectLeads(rows pgx.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var extraction, enrichment string
		var emails, phones, makers []byte

		err := rows.Scan(&l.ID, &l.SearchJobID, &l.CompanyName, &l.Website, &l.WebsiteNorm,
			&emails, &phones, &l.Address, &makers, &l.IsDuplicate, &l.DuplicateOfLeadID,
			&extraction, &enrichment, &l.QualityScore, &l.VerificationScore,
			&l.SignalStrength, &l.Industry, &l.CompanySize, &l.EmailPattern,
			&l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		l.ExtractionStatus = model.ExtractionStatus(extraction)
		l.EnrichmentStatus = model.EnrichmentStatus(enrichment)
		if err := unmarshalLeadJSON(&l, emails, phones, makers); err != nil {
			return nil, err
		}
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: iterate leads")
}

func marshalLeadJSON(lead *model.Lead) (emails, phones, makers []byte, err error) {
	if len(lead.Emails) > 0 {
		if emails, err = json.Marshal(lead.Emails); err != nil {
			return nil, nil, nil, eris.Wrap(err, "store: marshal emails")
		}
	}
	if len(lead.PhoneNumbers) > 0 {
		if phones, err = json.Marshal(lead.PhoneNumbers); err != nil {
			return nil, nil, nil, eris.Wrap(err, "store: marshal phone numbers")
		}
	}
	if len(lead.DecisionMakers) > 0 {
		if makers, err = json.Marshal(lead.DecisionMakers); err != nil {
			return nil, nil, nil, eris.Wrap(err, "store: marshal decision makers")
		}
	}
	return emails, phones, makers, nil
}

func unmarshalLeadJSON(l *model.Lead, emails, phones, makers []byte) error {
	if len(emails) > 0 {
		if err := json.Unmarshal(emails, &l.Emails); err != nil {
			return eris.Wrap(err, "store: unmarshal emails")
		}
	}
	if len(phones) > 0 {
		if err := json.Unmarshal(phones, &l.PhoneNumbers); err != nil {
			return eris.Wrap(err, "store: unmarshal phone numbers")
		}
	}
	if len(makers) > 0 {
		if err := json.Unmarshal(makers, &l.DecisionMakers); err != nil {
			return eris.Wrap(err, "store: unmarshal decision makers")
		}
	}
	return nil
}

func prefixedLeadColumns(alias string) string {
	cols := strings.Split(leadColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
