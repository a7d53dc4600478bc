package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fathom-labs/leadstream/internal/collab"
	"github.com/fathom-labs/leadstream/internal/extract"
	"github.com/fathom-labs/leadstream/internal/pipeline"
	"github.com/fathom-labs/leadstream/internal/scheduler"
	"github.com/fathom-labs/leadstream/internal/search"
	"github.com/fathom-labs/leadstream/internal/search/provider"
	"github.com/fathom-labs/leadstream/internal/store"
	anthropicpkg "github.com/fathom-labs/leadstream/pkg/anthropic"
	"github.com/fathom-labs/leadstream/pkg/brave"
	"github.com/fathom-labs/leadstream/pkg/nominatim"
	"github.com/fathom-labs/leadstream/pkg/overpass"
	"github.com/fathom-labs/leadstream/pkg/places"
	"github.com/fathom-labs/leadstream/pkg/searx"
	"github.com/fathom-labs/leadstream/pkg/serper"
)

// discoveryEnv holds the initialized store, pipeline and scheduler shared by
// the serve and search commands.
type discoveryEnv struct {
	Store     store.Store
	Pipeline  *pipeline.Pipeline
	Scheduler *scheduler.Scheduler
	Ledger    collab.CreditLedger
}

// Close drains background fills and releases the store. Callers should
// defer env.Close().
func (de *discoveryEnv) Close() {
	if de.Scheduler != nil {
		de.Scheduler.Wait()
	}
	if de.Pipeline != nil {
		de.Pipeline.Wait()
	}
	if de.Store != nil {
		_ = de.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLite(cfg.Store.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// expansionCacheTTL bounds how long LLM term expansions persist in the
// store-backed cache before the janitor purges them.
const expansionCacheTTL = 24 * time.Hour

// buildSearchConfig assembles the provider cascade from cfg. Geo is the
// structured-tag index that iterates expanded terms; POI is the geocoded
// place search.
func buildSearchConfig(cache collab.ExpansionCache, classifier *collab.LLMClassifier) search.Config {
	searchCfg := search.Config{
		Geo: provider.NewOverpass(overpass.NewClient(overpass.WithBaseURL(cfg.Overpass.BaseURL))),
		POI: provider.NewNominatim(nominatim.NewClient(
			nominatim.WithBaseURL(cfg.Nominatim.BaseURL),
			nominatim.WithUserAgent(cfg.Nominatim.UserAgent),
		)),
		LastResort:   provider.Limit(provider.NewScrape(), rate.NewLimiter(rate.Limit(0.5), 1), 0),
		CallTimeout:  time.Duration(cfg.Search.CallTimeoutSecs) * time.Second,
		DirectoryCap: cfg.Search.DirectoryCap,
	}
	if classifier != nil {
		searchCfg.Intent = classifier
		searchCfg.Expander = collab.NewCachedExpander(cache, classifier, expansionCacheTTL)
		searchCfg.Links = classifier
	}
	if cfg.Searx.BaseURL != "" {
		searchCfg.Metasearch = provider.NewSearx(searx.NewClient(cfg.Searx.BaseURL))
	}
	if cfg.Brave.Key != "" {
		searchCfg.WebSearch = append(searchCfg.WebSearch, provider.NewBrave(brave.NewClient(cfg.Brave.Key)))
	}
	if cfg.Serper.Key != "" {
		searchCfg.WebSearch = append(searchCfg.WebSearch, provider.NewSerper(serper.NewClient(cfg.Serper.Key)))
	}
	if cfg.Places.Key != "" {
		searchCfg.Paid = provider.NewPlaces(places.NewClient(cfg.Places.Key))
	} else {
		zap.L().Debug("LEADSTREAM_PLACES_KEY not set, paid escalation disabled")
	}
	return searchCfg
}

// initEnv sets up the store, all provider clients, the search cascade, the
// extraction engine and the scheduler.
func initEnv(ctx context.Context, mode string) (*discoveryEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	// AI collaborators. Without an API key the cascade still runs: every
	// collaborator fails open.
	var classifier *collab.LLMClassifier
	var enricher collab.Enricher
	if cfg.Anthropic.Key != "" {
		ai := anthropicpkg.NewClient(cfg.Anthropic.Key)
		classifier = collab.NewLLMClassifier(ai, cfg.Anthropic.ClassifierModel)
		enricher = collab.NewLLMEnricher(ai, cfg.Anthropic.EnrichModel)
	} else {
		zap.L().Warn("LEADSTREAM_ANTHROPIC_KEY not set, intent/relevance/enrichment disabled")
	}

	orchestrator, err := search.New(buildSearchConfig(st, classifier))
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "build search cascade")
	}

	fetcher := extract.NewFetcherWithTimeout(time.Duration(cfg.Extract.FetchTimeoutSecs) * time.Second)
	var relevance collab.RelevanceChecker
	if classifier != nil {
		relevance = classifier
	}
	engine := extract.NewEngine(fetcher, relevance)

	ledger := collab.NewStaticLedger(cfg.Credits.InitialBalance)

	p := pipeline.New(st, orchestrator, engine, enricher, ledger,
		pipeline.WithInitialBatchSize(cfg.Pipeline.InitialBatchSize),
		pipeline.WithWorkerLimit(cfg.Pipeline.WorkerLimit),
		pipeline.WithForegroundDeadline(time.Duration(cfg.Pipeline.ForegroundDeadlineSecs)*time.Second),
	)

	sched := scheduler.New(st, p,
		scheduler.WithCooldown(time.Duration(cfg.Scheduler.CooldownSecs)*time.Second),
	)

	return &discoveryEnv{
		Store:     st,
		Pipeline:  p,
		Scheduler: sched,
		Ledger:    ledger,
	}, nil
}
