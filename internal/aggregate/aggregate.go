// Package aggregate runs one aggregation pass for a search filter: resolve
// sources, fetch, map, merge, rank and persist.
package aggregate

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/covisearch/aggregator/internal/merge"
	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/normalize"
	"github.com/covisearch/aggregator/internal/resource"
	"github.com/covisearch/aggregator/internal/scrape"
	"github.com/covisearch/aggregator/internal/store"
	"github.com/covisearch/aggregator/internal/websource"
)

// Defaults for Options.
const (
	DefaultMinResults       = 20
	DefaultMaxRecords       = 300
	DefaultFetchConcurrency = 8
)

// ErrNoSources is returned when no source applies to a filter.
var ErrNoSources = eris.New("aggregate: no matching web source")

// Synonyms lists nearby cities searched when a city is thin on data.
type Synonyms interface {
	SynonymCities(city string) []string
}

// Options tunes an Aggregator. Zero values take the defaults.
type Options struct {
	MinResults       int `yaml:"min_results" mapstructure:"min_results"`
	MaxRecords       int `yaml:"max_records" mapstructure:"max_records"`
	FetchConcurrency int `yaml:"fetch_concurrency" mapstructure:"fetch_concurrency"`
}

func (o Options) withDefaults() Options {
	if o.MinResults <= 0 {
		o.MinResults = DefaultMinResults
	}
	if o.MaxRecords <= 0 {
		o.MaxRecords = DefaultMaxRecords
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = DefaultFetchConcurrency
	}
	return o
}

// Aggregator collects and persists the resources for one filter at a time.
type Aggregator struct {
	fetcher  scrape.Fetcher
	store    store.Store
	catalog  *websource.Catalog
	mapper   *normalize.Mapper
	synonyms Synonyms
	opts     Options
}

// New creates an Aggregator. synonyms may be nil.
func New(f scrape.Fetcher, st store.Store, catalog *websource.Catalog, mapper *normalize.Mapper, synonyms Synonyms, opts Options) *Aggregator {
	return &Aggregator{
		fetcher:  f,
		store:    st,
		catalog:  catalog,
		mapper:   mapper,
		synonyms: synonyms,
		opts:     opts.withDefaults(),
	}
}

// Run aggregates filter and stores the ranked result under its canonical key.
func (a *Aggregator) Run(ctx context.Context, filter model.SearchFilter) (*model.FilteredResources, error) {
	key := filter.String()
	log := zap.L().With(zap.String("run_id", uuid.NewString()), zap.String("filter", key))
	start := time.Now()
	log.Info("aggregate: starting")

	records, err := a.Collect(ctx, filter)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "aggregate: collect")
	}

	stage(log, "collect", start, zap.Int("records", len(records)))

	rankStart := time.Now()
	ranked := a.Rank(filter.ResourceType, records)
	stage(log, "rank", rankStart, zap.Int("ranked", len(ranked)))

	res := &model.FilteredResources{SearchFilter: key, Data: model.Documents(ranked)}

	writeStart := time.Now()
	if err := a.store.SetResourcesForFilter(ctx, res); err != nil {
		return nil, eris.Wrap(err, "aggregate: persist")
	}
	stage(log, "persist", writeStart)

	log.Info("aggregate: complete",
		zap.Int("records", len(res.Data)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return res, nil
}

// Collect fetches and maps every source for filter. When the primary city
// yields fewer than MinResults records, synonym cities are searched in order
// until enough are found.
func (a *Aggregator) Collect(ctx context.Context, filter model.SearchFilter) ([]*model.Record, error) {
	descriptors := a.catalog.ForFilter(filter)
	primary := websource.ResolveAll(descriptors, filter, a.catalog.States())
	if len(primary) == 0 {
		return nil, eris.Wrapf(ErrNoSources, "filter %s", filter.String())
	}

	records := a.collectCity(ctx, primary)
	if len(records) >= a.opts.MinResults || a.synonyms == nil {
		return records, nil
	}

	for _, city := range a.synonyms.SynonymCities(filter.City) {
		if ctx.Err() != nil {
			break
		}
		sf := filter.WithCity(city)
		insts := websource.ResolveAll(descriptors, sf, a.catalog.States())
		more := a.collectCity(ctx, insts)
		zap.L().Debug("aggregate: synonym city searched",
			zap.String("filter", filter.String()),
			zap.String("synonym", city),
			zap.Int("records", len(more)),
		)
		records = append(records, more...)
		if len(records) >= a.opts.MinResults {
			break
		}
	}
	return records, nil
}

// Rank merges duplicates, orders the result for display and truncates it to
// MaxRecords.
func (a *Aggregator) Rank(rt model.ResourceType, records []*model.Record) []*model.Record {
	b := resource.For(rt)
	merged := merge.Duplicates(records, b.MergeExtra)
	slices.SortStableFunc(merged, b.Comparator())
	if len(merged) > a.opts.MaxRecords {
		merged = merged[:a.opts.MaxRecords]
	}
	return merged
}

func (a *Aggregator) collectCity(ctx context.Context, insts []*websource.Instance) []*model.Record {
	insts = uniqueRequests(insts)
	if len(insts) == 0 {
		return nil
	}
	var records []*model.Record
	for _, res := range scrape.FetchAll(ctx, a.fetcher, insts, a.opts.FetchConcurrency) {
		if res.Err != nil {
			continue
		}
		records = append(records, a.mapper.MapRows(res.Rows, res.Instance)...)
	}
	return records
}

// uniqueRequests drops instances that would issue the same request twice.
func uniqueRequests(insts []*websource.Instance) []*websource.Instance {
	seen := make(map[string]bool, len(insts))
	out := insts[:0:0]
	for _, inst := range insts {
		k := inst.URL + "\x00" + inst.RequestBody
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, inst)
	}
	return out
}

func stage(log *zap.Logger, name string, start time.Time, fields ...zap.Field) {
	fields = append(fields, zap.String("stage", name), zap.Duration("elapsed", time.Since(start)))
	log.Debug("aggregate: stage complete", fields...)
}
