// Package scrape fetches the raw data tables of resolved web sources.
package scrape

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/covisearch/aggregator/internal/websource"
)

// Fetcher retrieves the raw rows of one resolved source.
type Fetcher interface {
	Fetch(ctx context.Context, inst *websource.Instance) ([]map[string]string, error)
}

// Result holds the rows fetched for one instance. Err is set when the source
// failed; its Rows are then empty.
type Result struct {
	Instance *websource.Instance
	Rows     []map[string]string
	Err      error
	Elapsed  time.Duration
}

// FetchAll fetches every instance in parallel, at most limit at a time.
// Results keep the order of instances. A failing source is logged and never
// fails the batch.
func FetchAll(ctx context.Context, f Fetcher, instances []*websource.Instance, limit int) []Result {
	if limit <= 0 {
		limit = len(instances)
	}
	results := make([]Result, len(instances))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))

	for i, inst := range instances {
		g.Go(func() error {
			start := time.Now()
			rows, err := f.Fetch(gCtx, inst)
			results[i] = Result{Instance: inst, Rows: rows, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				results[i].Rows = nil
				zap.L().Warn("scrape: source failed",
					zap.String("source", inst.Name()),
					zap.String("url", inst.URL),
					zap.Error(err),
				)
				return nil
			}
			zap.L().Debug("scrape: source fetched",
				zap.String("source", inst.Name()),
				zap.Int("rows", len(rows)),
				zap.Duration("elapsed", results[i].Elapsed),
			)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
