// Package resync re-aggregates the filters users still query.
package resync

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/store"
)

// DefaultIdleThresholdDays is how long a filter may go unqueried and still
// be refreshed.
const DefaultIdleThresholdDays = 2

// Runner aggregates one filter.
type Runner interface {
	Run(ctx context.Context, filter model.SearchFilter) (*model.FilteredResources, error)
}

// StatsLister lists the recorded filter stats.
type StatsLister interface {
	ListFilterStats(ctx context.Context) ([]store.FilterStats, error)
}

// Policy decides which filters are worth refreshing.
type Policy struct {
	IdleThresholdDays int
	// Now defaults to time.Now.
	Now func() time.Time
}

// ShouldResync reports whether fs was queried recently enough. Idle time is
// counted in whole days; a filter idle for more than IdleThresholdDays is
// left to go stale.
func (p Policy) ShouldResync(fs store.FilterStats) bool {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	idleDays := int(now().UTC().Sub(fs.LastQueryUTC) / (24 * time.Hour))
	return idleDays <= p.IdleThresholdDays
}

// Summary counts the outcome of one pass.
type Summary struct {
	Considered int
	Skipped    int
	Invalid    int
	Succeeded  int
	Failed     int
}

// Job runs resync passes.
type Job struct {
	stats       StatsLister
	runner      Runner
	policy      Policy
	concurrency int
}

// NewJob creates a Job that aggregates at most concurrency filters at once.
func NewJob(stats StatsLister, runner Runner, policy Policy, concurrency int) *Job {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Job{stats: stats, runner: runner, policy: policy, concurrency: concurrency}
}

// RunOnce aggregates every eligible filter. A failing filter is logged and
// counted; only listing the stats or cancellation fails the pass.
func (j *Job) RunOnce(ctx context.Context) (Summary, error) {
	start := time.Now()
	all, err := j.stats.ListFilterStats(ctx)
	if err != nil {
		return Summary{}, eris.Wrap(err, "resync: list filter stats")
	}

	var (
		mu  sync.Mutex
		sum = Summary{Considered: len(all)}
	)
	count := func(field *int) {
		mu.Lock()
		*field++
		mu.Unlock()
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)

	for _, fs := range all {
		if !j.policy.ShouldResync(fs) {
			count(&sum.Skipped)
			continue
		}
		filter, err := model.ParseSearchFilter(fs.Filter)
		if err != nil {
			zap.L().Warn("resync: invalid filter in stats", zap.String("filter", fs.Filter), zap.Error(err))
			count(&sum.Invalid)
			continue
		}
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if _, err := j.runner.Run(gCtx, filter); err != nil {
				zap.L().Error("resync: aggregation failed", zap.String("filter", fs.Filter), zap.Error(err))
				count(&sum.Failed)
				return nil
			}
			count(&sum.Succeeded)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("resync: pass complete",
		zap.Int("considered", sum.Considered),
		zap.Int("skipped", sum.Skipped),
		zap.Int("invalid", sum.Invalid),
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	if err := ctx.Err(); err != nil {
		return sum, eris.Wrap(err, "resync: pass interrupted")
	}
	return sum, nil
}
