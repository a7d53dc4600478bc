// Package search implements the multi-provider discovery cascade: query
// expansion, a concurrent free tier, paid escalation, a last-resort scrape
// fallback, and merge/dedupe of everything providers return.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/model"
	"github.com/fathom-labs/leadstream/internal/resilience"
	"github.com/fathom-labs/leadstream/internal/search/provider"
)

const (
	defaultCallTimeout  = 12 * time.Second
	defaultDirectoryCap = 10

	// escalationFloor is the minimum free-tier yield below which the paid
	// provider is always tried, independent of the result target.
	escalationFloor = 20

	// escalationFraction of the result target also triggers escalation.
	escalationFraction = 0.4
)

// Config assembles an Orchestrator. Geo and POI are required; everything
// else degrades gracefully when absent.
type Config struct {
	// Geo is the free structured-tag geographic provider. Also used for
	// the simplified-query retry when the cascade ends empty.
	Geo provider.Provider
	// Metasearch is the optional self-hosted metasearch provider.
	Metasearch provider.Provider
	// POI is the free geocoded-POI provider.
	POI provider.Provider
	// WebSearch providers are promoted into the free tier for
	// digital-intent queries.
	WebSearch []provider.Provider
	// Paid is the paid local-business provider, tried when the free tier
	// falls short.
	Paid provider.Provider
	// LastResort is the scrape-based web search.
	LastResort provider.Provider

	Intent   collab.IntentClassifier
	Expander collab.TermExpander
	Links    collab.LinkExtractor

	// CallTimeout bounds each provider attempt except LastResort, whose
	// rate-limit backoff schedule outruns any per-call budget. Default 12s.
	CallTimeout time.Duration
	// DirectoryCap limits links expanded per directory page. Default 10.
	DirectoryCap int
}

// Orchestrator runs the provider cascade for one query.
type Orchestrator struct {
	cfg      Config
	ontology *Ontology
	dirs     *directoryExpander
}

// New creates an Orchestrator, loading the embedded concept ontology.
func New(cfg Config) (*Orchestrator, error) {
	ontology, err := LoadOntology()
	if err != nil {
		return nil, err
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.DirectoryCap <= 0 {
		cfg.DirectoryCap = defaultDirectoryCap
	}
	return &Orchestrator{
		cfg:      cfg,
		ontology: ontology,
		dirs:     newDirectoryExpander(cfg.Links, cfg.DirectoryCap),
	}, nil
}

// Request is one search to run.
type Request struct {
	Query        string
	Country      string
	Location     string
	Industry     string
	ResultTarget int
}

// Result is the cascade's output: deduplicated, directory-expanded
// candidates plus per-provider telemetry.
type Result struct {
	Candidates []model.Candidate
	Telemetry  model.ProviderTelemetry
	// Digital reports the classified query intent, for downstream
	// relevance filtering.
	Digital bool
}

// Search runs the full cascade. It never fails outright on provider
// errors; an empty result with a shortfall reason is the worst case.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Result, error) {
	log := zap.L().With(zap.String("query", req.Query))
	start := time.Now()

	res := &Result{}
	var notes []string

	digital, _ := collab.FailOpenIntent{Inner: o.cfg.Intent}.ClassifyDigitalIntent(ctx, req.Query)
	res.Digital = digital

	terms := expandQuery(ctx, o.ontology, o.cfg.Expander, req.Query, req.Country)
	q := provider.Query{
		Text:     req.Query,
		Terms:    terms,
		Country:  req.Country,
		Location: req.Location,
		Limit:    req.ResultTarget,
	}

	// Free tier runs concurrently; web-search APIs join it for digital
	// intent only.
	tier := make([]provider.Provider, 0, 3+len(o.cfg.WebSearch))
	if o.cfg.Geo != nil {
		tier = append(tier, o.cfg.Geo)
	}
	if o.cfg.Metasearch != nil {
		tier = append(tier, o.cfg.Metasearch)
	}
	if o.cfg.POI != nil {
		tier = append(tier, o.cfg.POI)
	}
	if digital {
		tier = append(tier, o.cfg.WebSearch...)
	}

	batches := o.runTier(ctx, tier, q, &res.Telemetry, &notes)

	freeTotal := candidateCount(batches)
	need := escalationThreshold(req.ResultTarget)
	if freeTotal < need {
		log.Info("free tier short, escalating",
			zap.Int("free_total", freeTotal), zap.Int("threshold", need))

		paidBatch, paidOK := o.attemptOne(ctx, o.cfg.Paid, q, o.cfg.CallTimeout, &res.Telemetry, &notes)
		if paidOK {
			batches = append(batches, paidBatch)
		} else if o.cfg.Paid == nil {
			notes = append(notes, "paid provider unconfigured")
		}
		if !paidOK || candidateCount(batches) < need {
			// The scrape fallback retries rate limits on a 30s/60s/120s
			// schedule; no per-call timeout, only the parent context.
			if b, ok := o.attemptOne(ctx, o.cfg.LastResort, q, 0, &res.Telemetry, &notes); ok {
				batches = append(batches, b)
			}
		}
	}

	// Zero results anywhere: one simplified retry against the geographic
	// provider.
	if candidateCount(batches) == 0 && o.cfg.Geo != nil {
		if simplified := simplifyQuery(req.Query); simplified != "" && simplified != req.Query {
			log.Info("retrying with simplified query", zap.String("simplified", simplified))
			sq := q
			sq.Text = simplified
			sq.Terms = []string{simplified}
			if b, ok := o.attemptOne(ctx, o.cfg.Geo, sq, o.cfg.CallTimeout, &res.Telemetry, &notes); ok {
				batches = append(batches, b)
			}
		}
	}

	merged, directories := mergeBatches(batches, req.Location)
	if len(directories) > 0 {
		expanded, kept := o.dirs.expand(ctx, directories)
		merged = appendUnique(merged, kept, req.Location)
		merged = appendUnique(merged, expanded, req.Location)
	}

	if len(merged) > req.ResultTarget && req.ResultTarget > 0 {
		merged = merged[:req.ResultTarget]
	}
	res.Candidates = merged

	if len(merged) < req.ResultTarget {
		notes = append([]string{
			fmt.Sprintf("found %d of %d requested", len(merged), req.ResultTarget),
		}, notes...)
		res.Telemetry.ShortfallReason = strings.Join(notes, "; ")
	}

	log.Info("search cascade complete",
		zap.Int("candidates", len(merged)),
		zap.Int("target", req.ResultTarget),
		zap.Bool("digital", digital),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// runTier attempts all providers concurrently, recording telemetry and
// collecting non-empty batches. Provider failures never cancel siblings.
func (o *Orchestrator) runTier(ctx context.Context, providers []provider.Provider, q provider.Query, tele *model.ProviderTelemetry, notes *[]string) []provider.Batch {
	var mu sync.Mutex
	var batches []provider.Batch

	var g errgroup.Group
	for _, p := range providers {
		g.Go(func() error {
			batch, err := o.attempt(ctx, p, q, o.cfg.CallTimeout)

			mu.Lock()
			defer mu.Unlock()
			tele.Record(p.Name(), len(batch.Candidates), batch.elapsed, err)
			if err != nil {
				*notes = append(*notes, providerNote(p.Name(), err))
			}
			if len(batch.Candidates) > 0 {
				batches = append(batches, batch.Batch)
			}
			return nil
		})
	}
	_ = g.Wait()
	return batches
}

// attemptOne runs a single optional provider, recording telemetry. The
// second return is false when the provider is absent or failed.
func (o *Orchestrator) attemptOne(ctx context.Context, p provider.Provider, q provider.Query, timeout time.Duration, tele *model.ProviderTelemetry, notes *[]string) (provider.Batch, bool) {
	if p == nil {
		return provider.Batch{}, false
	}
	batch, err := o.attempt(ctx, p, q, timeout)
	tele.Record(p.Name(), len(batch.Candidates), batch.elapsed, err)
	if err != nil {
		*notes = append(*notes, providerNote(p.Name(), err))
		return batch.Batch, false
	}
	return batch.Batch, true
}

type timedBatch struct {
	provider.Batch
	elapsed time.Duration
}

// attempt runs one provider under the given per-call timeout. A timeout of
// zero leaves the parent context's deadline in force; the last resort needs
// that headroom for its rate-limit backoff schedule.
func (o *Orchestrator) attempt(ctx context.Context, p provider.Provider, q provider.Query, timeout time.Duration) (timedBatch, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	batch, err := p.Attempt(ctx, q)
	elapsed := time.Since(start)
	if err != nil {
		zap.L().Warn("provider attempt failed",
			zap.String("provider", p.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
	}
	return timedBatch{Batch: batch, elapsed: elapsed}, err
}

// appendUnique merges extra candidates into merged, skipping identity keys
// already present.
func appendUnique(merged, extra []model.Candidate, location string) []model.Candidate {
	seen := make(map[string]bool, len(merged))
	for _, c := range merged {
		seen[identityKey(c, location)] = true
	}
	for _, c := range extra {
		key := identityKey(c, location)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged = append(merged, c)
	}
	return merged
}

func candidateCount(batches []provider.Batch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Candidates)
	}
	return n
}

// escalationThreshold is the free-tier yield below which the cascade
// escalates to paid providers: max(20, 0.4 x target).
func escalationThreshold(target int) int {
	frac := int(escalationFraction * float64(target))
	if frac < escalationFloor {
		return escalationFloor
	}
	return frac
}

// providerNote renders a provider failure for the shortfall reason.
func providerNote(name string, err error) string {
	switch {
	case errors.Is(err, resilience.ErrAuthMissing):
		return name + " skipped: credentials missing"
	case resilience.IsRateLimited(err):
		return name + " rate limited"
	case errors.Is(err, context.DeadlineExceeded):
		return name + " timed out"
	default:
		return name + " failed"
	}
}
