package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/covisearch/aggregator/internal/aggregate"
	"github.com/covisearch/aggregator/internal/geo"
	"github.com/covisearch/aggregator/internal/normalize"
	"github.com/covisearch/aggregator/internal/phone"
	"github.com/covisearch/aggregator/internal/scrape"
	"github.com/covisearch/aggregator/internal/store"
	"github.com/covisearch/aggregator/internal/timeparse"
	"github.com/covisearch/aggregator/internal/websource"
)

// aggregatorEnv holds the store, catalog and aggregator needed by the
// aggregate, resync and serve commands.
type aggregatorEnv struct {
	Store      store.Store
	Geo        *geo.Lookup
	Catalog    *websource.Catalog
	Aggregator *aggregate.Aggregator
}

// Close releases resources held by the environment.
func (e *aggregatorEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// loadCatalog reads the city table and the source catalog.
func loadCatalog() (*geo.Lookup, *websource.Catalog, error) {
	lookup, err := geo.LoadFile(cfg.Sources.CitiesPath)
	if err != nil {
		return nil, nil, err
	}
	ds, err := websource.LoadFile(cfg.Sources.Path)
	if err != nil {
		return nil, nil, eris.Wrap(err, "load sources")
	}
	zap.L().Debug("sources loaded", zap.String("path", cfg.Sources.Path), zap.Int("count", len(ds)))
	return lookup, websource.NewCatalog(ds, lookup), nil
}

// newFetcher builds the HTTP fetcher from the fetch config, behind per-source
// circuit breakers.
func newFetcher() scrape.Fetcher {
	limiters := make(map[string]*rate.Limiter, len(cfg.Fetch.HostLimits))
	for _, hl := range cfg.Fetch.HostLimits {
		limiters[hl.Host] = rate.NewLimiter(rate.Limit(hl.Rate), max(hl.Burst, 1))
	}
	hf := scrape.NewHTTPFetcher(scrape.HTTPOptions{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries:   cfg.Fetch.MaxRetries,
		BackoffBase:  time.Duration(cfg.Fetch.BackoffMillis) * time.Millisecond,
		HostRate:     rate.Limit(cfg.Fetch.HostRate),
		HostBurst:    cfg.Fetch.HostBurst,
		RateLimiters: limiters,
	})
	return scrape.NewBreakerFetcher(hf, scrape.BreakerOptions{
		FailureThreshold: cfg.Fetch.BreakerThreshold,
		ResetTimeout:     time.Duration(cfg.Fetch.BreakerResetSecs) * time.Second,
	})
}

// initAggregator sets up the store, catalog and fetcher and builds the
// Aggregator. Callers should defer env.Close().
func initAggregator(ctx context.Context, mode string) (*aggregatorEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	lookup, catalog, err := loadCatalog()
	if err != nil {
		return nil, err
	}

	times, err := timeparse.NewInZone(cfg.Sources.TimeZone)
	if err != nil {
		return nil, eris.Wrap(err, "init time parser")
	}
	mapper := normalize.NewMapper(phone.NewUniformizer(cfg.Sources.PhoneRegion, lookup), times, nil)

	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	agg := aggregate.New(newFetcher(), st, catalog, mapper, lookup, aggregate.Options{
		MinResults:       cfg.Aggregate.MinResults,
		MaxRecords:       cfg.Aggregate.MaxRecords,
		FetchConcurrency: cfg.Aggregate.FetchConcurrency,
	})
	return &aggregatorEnv{Store: st, Geo: lookup, Catalog: catalog, Aggregator: agg}, nil
}
