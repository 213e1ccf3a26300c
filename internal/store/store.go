// Package store persists aggregated resources and per-filter query stats.
package store

import (
	"context"
	"time"

	"github.com/covisearch/aggregator/internal/model"
)

// FilterStats records how recently a search filter was queried.
type FilterStats struct {
	Filter       string    `json:"search_filter"`
	LastQueryUTC time.Time `json:"last_query_utc"`
	QueryCount   int64     `json:"query_count"`
}

// Store defines the persistence interface for aggregation results.
type Store interface {
	// Aggregated resources, keyed by the canonical filter string.
	SetResourcesForFilter(ctx context.Context, res *model.FilteredResources) error
	GetResourcesForFilter(ctx context.Context, filter string) (*model.FilteredResources, error)
	RemoveResourcesForFilter(ctx context.Context, filter string) error

	// Filter stats
	RecordQuery(ctx context.Context, filter string, at time.Time) error
	ListFilterStats(ctx context.Context) ([]FilterStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
