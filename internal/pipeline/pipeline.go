// Package pipeline runs the progressive extraction pipeline: a bounded
// synchronous foreground batch followed by a pausable, resumable background
// fill, with per-hostname locking and duplicate suppression.
package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/dedupe"
	"github.com/fathom-labs/leadstream/internal/extract"
	"github.com/fathom-labs/leadstream/internal/hostutil"
	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/search"
	"github.com/fathom-labs/leadstream/internal/store"
)

const (
	// initialBatchSize caps the synchronous foreground batch.
	initialBatchSize = 30
	// foregroundWorkers caps concurrent extractions in the foreground pool.
	foregroundWorkers = 4
	// foregroundDeadline is the wall-clock budget for the foreground batch;
	// unconsumed items roll into the background fill.
	foregroundDeadline = 25 * time.Second
	// enrichCreditsPerLead is charged against the tenant per enriched lead.
	enrichCreditsPerLead = 1
)

// Searcher runs the provider cascade. Satisfied by *search.Orchestrator.
type Searcher interface {
	Search(ctx context.Context, req search.Request) (*search.Result, error)
}

// Extractor extracts contact data for one candidate. Satisfied by
// *extract.Engine.
type Extractor interface {
	Extract(ctx context.Context, candidate model.Candidate, query, industry string) (*extract.Extraction, error)
}

// Pipeline coordinates search, extraction, dedupe, persistence, and
// enrichment for one job at a time.
type Pipeline struct {
	store    store.Store
	searcher Searcher
	engine   Extractor
	enricher collab.FailOpenEnricher
	ledger   collab.CreditLedger
	detector *dedupe.Detector
	locks    *hostLocks
	pause    *pauseController

	batchSize int
	workers   int
	deadline  time.Duration

	bg sync.WaitGroup
}

// Option adjusts pipeline tuning.
type Option func(*Pipeline)

// WithInitialBatchSize overrides the foreground batch size.
func WithInitialBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithWorkerLimit overrides the foreground pool size.
func WithWorkerLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithForegroundDeadline overrides the foreground wall-clock budget.
func WithForegroundDeadline(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.deadline = d
		}
	}
}

// New creates a Pipeline. The enricher and ledger are optional; a nil
// enricher yields default enrichment and a nil ledger never blocks it.
func New(st store.Store, searcher Searcher, engine Extractor, enricher collab.Enricher, ledger collab.CreditLedger, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:     st,
		searcher:  searcher,
		engine:    engine,
		enricher:  collab.FailOpenEnricher{Inner: enricher},
		ledger:    ledger,
		detector:  dedupe.NewDetector(st),
		locks:     newHostLocks(),
		pause:     newPauseController(),
		batchSize: initialBatchSize,
		workers:   foregroundWorkers,
		deadline:  foregroundDeadline,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PauseBackfills suspends all background fills until ResumeBackfills or the
// failsafe. Called by the scheduler before a foreground job starts.
func (p *Pipeline) PauseBackfills() { p.pause.Pause() }

// ResumeBackfills releases paused background fills.
func (p *Pipeline) ResumeBackfills() { p.pause.Resume() }

// ResumeStaleBackfills resumes fills paused longer than maxAge. Janitor
// hook backing up the in-process failsafe timer.
func (p *Pipeline) ResumeStaleBackfills(maxAge time.Duration) bool {
	return p.pause.ResumeIfStale(maxAge)
}

// Wait blocks until every background fill has finished.
func (p *Pipeline) Wait() { p.bg.Wait() }

// Run executes the foreground phase of one job and, when candidates
// remain, hands the rest to a detached background fill. Any error or panic
// marks the job failed with partial progress kept.
func (p *Pipeline) Run(ctx context.Context, jobID string) (err error) {
	log := zap.L().With(zap.String("job_id", jobID))
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("pipeline: panic: %v", r)
		}
		if err != nil {
			log.Error("pipeline: job failed", zap.Error(err))
			if markErr := p.store.MarkJobFailed(ctx, jobID, err.Error()); markErr != nil {
				log.Warn("pipeline: failed to persist failure", zap.Error(markErr))
			}
		}
	}()

	job, err := p.store.GetSearchJob(ctx, jobID)
	if err != nil {
		return eris.Wrap(err, "pipeline: load job")
	}
	log.Info("pipeline: starting job",
		zap.String("query", job.Query),
		zap.Int("result_target", job.ResultTarget))

	p.setStatus(ctx, job, model.JobStatusSearching)
	res, err := p.searcher.Search(ctx, search.Request{
		Query:        job.Query,
		Country:      job.Country,
		Location:     job.Location,
		Industry:     job.Industry,
		ResultTarget: job.ResultTarget,
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: search")
	}
	job.TotalResults = len(res.Candidates)
	if telErr := p.store.SaveTelemetry(ctx, job.ID, res.Telemetry); telErr != nil {
		log.Warn("pipeline: failed to save telemetry", zap.Error(telErr))
	}
	p.syncCounters(ctx, job)

	p.setStatus(ctx, job, model.JobStatusExtracting)
	batch := res.Candidates
	var remainder []model.Candidate
	if len(batch) > p.batchSize {
		batch, remainder = batch[:p.batchSize], batch[p.batchSize:]
	}
	leftover := p.runForeground(ctx, job, batch)
	remainder = append(leftover, remainder...)

	p.setStatus(ctx, job, model.JobStatusEnriching)
	p.enrichPending(ctx, job)
	p.syncCounters(ctx, job)

	if len(remainder) == 0 {
		p.setStatus(ctx, job, model.JobStatusCompleted)
		log.Info("pipeline: job completed in foreground",
			zap.Int("extracted", job.ExtractedCount))
		return nil
	}

	p.setStatus(ctx, job, model.JobStatusProcessingBackfill)
	log.Info("pipeline: continuing in background",
		zap.Int("remaining", len(remainder)))
	p.bg.Add(1)
	go p.runBackfill(context.WithoutCancel(ctx), job, remainder)
	return nil
}

// runForeground drains the batch with a bounded worker pool until the
// wall-clock deadline. In-flight items finish on their own timeouts;
// unclaimed items are returned for the background fill.
func (p *Pipeline) runForeground(ctx context.Context, job *model.SearchJob, batch []model.Candidate) []model.Candidate {
	if len(batch) == 0 {
		return nil
	}
	deadline := time.Now().Add(p.deadline)
	var next atomic.Int64

	g := new(errgroup.Group)
	for w := 0; w < p.workers; w++ {
		g.Go(func() error {
			for time.Now().Before(deadline) && ctx.Err() == nil {
				i := int(next.Add(1)) - 1
				if i >= len(batch) {
					return nil
				}
				p.processCandidate(ctx, job, batch[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	consumed := int(next.Load())
	if consumed > len(batch) {
		consumed = len(batch)
	}
	return batch[consumed:]
}

// runBackfill processes the remainder one item at a time. It stops at the
// result target, blocks while the scheduler has fills paused, and persists
// counters after every item so progress stays observable.
func (p *Pipeline) runBackfill(ctx context.Context, job *model.SearchJob, remainder []model.Candidate) {
	defer p.bg.Done()
	log := zap.L().With(zap.String("job_id", job.ID))

	for _, cand := range remainder {
		counts, err := p.store.CountLeads(ctx, job.ID)
		if err != nil {
			log.Warn("pipeline: count leads", zap.Error(err))
		} else if counts.Extracted >= job.ResultTarget {
			log.Info("pipeline: result target reached",
				zap.Int("extracted", counts.Extracted))
			break
		}

		if !p.pause.wait(ctx) {
			log.Info("pipeline: background fill cancelled")
			return
		}

		p.processCandidate(ctx, job, cand)
		p.enrichPending(ctx, job)
		p.syncCounters(ctx, job)
	}

	p.setStatus(ctx, job, model.JobStatusCompleted)
	log.Info("pipeline: background fill completed",
		zap.Int("extracted", job.ExtractedCount))
}

// processCandidate extracts one candidate, runs duplicate detection, and
// persists the lead. Rejections drop the candidate silently; a duplicate-key
// write race triggers one re-detection pass before persisting the flagged
// record.
func (p *Pipeline) processCandidate(ctx context.Context, job *model.SearchJob, cand model.Candidate) {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("link", cand.Link))

	host := ""
	if !cand.IsPlaceholderLink() {
		host = hostutil.NormalizeHost(cand.Link)
	}
	release := p.locks.acquire(ctx, host)
	defer release()

	ext, err := p.engine.Extract(ctx, cand, job.Query, job.Industry)
	if err != nil {
		if extract.IsRejection(err) {
			log.Debug("pipeline: candidate rejected", zap.Error(err))
		} else {
			log.Warn("pipeline: extraction failed", zap.Error(err))
		}
		return
	}

	subject := dedupe.Subject{
		CompanyName:     ext.CompanyName,
		Website:         ext.Website,
		PlaceholderLink: cand.IsPlaceholderLink(),
	}
	det, err := p.detector.Detect(ctx, subject, job.ID)
	if err != nil {
		log.Warn("pipeline: duplicate detection failed, keeping candidate", zap.Error(err))
	}

	lead := buildLead(job, ext, subject)
	if det.IsDuplicate {
		lead.IsDuplicate = true
		lead.DuplicateOfLeadID = det.DuplicateOfLeadID
	}

	if insErr := p.store.InsertLead(ctx, lead); insErr != nil {
		if !eris.Is(insErr, store.ErrDuplicateWebsite) {
			log.Warn("pipeline: persist lead", zap.Error(insErr))
			return
		}
		// Another worker won the unique index; re-detect to find the
		// surviving lead and persist this one flagged.
		lead.IsDuplicate = true
		if det2, derr := p.detector.Detect(ctx, subject, job.ID); derr == nil && det2.IsDuplicate {
			lead.DuplicateOfLeadID = det2.DuplicateOfLeadID
		}
		if insErr := p.store.InsertLead(ctx, lead); insErr != nil {
			log.Warn("pipeline: persist raced duplicate", zap.Error(insErr))
		}
	}
}

func buildLead(job *model.SearchJob, ext *extract.Extraction, subject dedupe.Subject) *model.Lead {
	websiteNorm := ""
	if !subject.PlaceholderLink {
		websiteNorm = hostutil.NormalizeHost(ext.Website)
	}
	return &model.Lead{
		SearchJobID:      job.ID,
		CompanyName:      ext.CompanyName,
		Website:          ext.Website,
		WebsiteNorm:      websiteNorm,
		Emails:           ext.Emails,
		PhoneNumbers:     ext.Phones,
		Address:          ext.Address,
		DecisionMakers:   ext.DecisionMakers,
		ExtractionStatus: model.ExtractionComplete,
		EnrichmentStatus: model.EnrichmentPending,
	}
}

// enrichPending enriches every pending non-duplicate lead of the job,
// charging the tenant per lead. A declined reservation marks the lead
// skipped, never failed.
func (p *Pipeline) enrichPending(ctx context.Context, job *model.SearchJob) {
	log := zap.L().With(zap.String("job_id", job.ID))
	leads, err := p.store.ActiveLeads(ctx, job.ID)
	if err != nil {
		log.Warn("pipeline: list leads for enrichment", zap.Error(err))
		return
	}
	for _, lead := range leads {
		if lead.EnrichmentStatus != model.EnrichmentPending {
			continue
		}
		p.enrichLead(ctx, job, lead)
	}
}

func (p *Pipeline) enrichLead(ctx context.Context, job *model.SearchJob, lead model.Lead) {
	log := zap.L().With(zap.String("job_id", job.ID), zap.String("lead_id", lead.ID))

	reserved := false
	if p.ledger != nil {
		ok, err := p.ledger.Reserve(ctx, job.TenantID, enrichCreditsPerLead)
		switch {
		case err != nil:
			// Ledger unavailable; enrich anyway rather than losing data.
			log.Warn("pipeline: credit reserve failed, enriching anyway", zap.Error(err))
		case !ok:
			lead.EnrichmentStatus = model.EnrichmentSkipped
			if updErr := p.store.UpdateLeadEnrichment(ctx, &lead); updErr != nil {
				log.Warn("pipeline: mark enrichment skipped", zap.Error(updErr))
			}
			return
		default:
			reserved = true
		}
	}

	enr, _ := p.enricher.Enrich(ctx, lead)
	lead.Industry = enr.Industry
	lead.CompanySize = enr.CompanySize
	lead.EmailPattern = enr.EmailPattern
	lead.QualityScore = enr.QualityScore
	lead.VerificationScore = enr.VerificationScore
	lead.SignalStrength = enr.SignalStrength
	lead.EnrichmentStatus = model.EnrichmentComplete

	if err := p.store.UpdateLeadEnrichment(ctx, &lead); err != nil {
		log.Warn("pipeline: persist enrichment", zap.Error(err))
		if reserved {
			if refErr := p.ledger.Refund(ctx, job.TenantID, enrichCreditsPerLead, "enrichment persist failed"); refErr != nil {
				log.Warn("pipeline: credit refund failed", zap.Error(refErr))
			}
		}
	}
}

// syncCounters re-derives progress counters from persisted rows so external
// observers never see over-counts.
func (p *Pipeline) syncCounters(ctx context.Context, job *model.SearchJob) {
	counts, err := p.store.CountLeads(ctx, job.ID)
	if err != nil {
		zap.L().Warn("pipeline: count leads", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	job.ExtractedCount = counts.Extracted
	job.EnrichedCount = counts.Enriched
	if err := p.store.UpdateJobCounters(ctx, job.ID, job.TotalResults, counts.Extracted, counts.Enriched); err != nil {
		zap.L().Warn("pipeline: update counters", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// setStatus advances the job status, respecting the monotonic pipeline
// order. Updates against a deleted job are no-ops at the store layer.
func (p *Pipeline) setStatus(ctx context.Context, job *model.SearchJob, status model.JobStatus) {
	if !model.CanTransition(job.Status, status) {
		return
	}
	if err := p.store.UpdateJobStatus(ctx, job.ID, status); err != nil {
		zap.L().Warn("pipeline: update status",
			zap.String("job_id", job.ID),
			zap.String("status", string(status)),
			zap.Error(err))
		return
	}
	job.Status = status
}
