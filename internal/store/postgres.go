package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/covisearch/aggregator/internal/model"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_resources": `SELECT data FROM filtered_resources WHERE search_filter = $1`,
	"record_query": `INSERT INTO filter_stats (search_filter, last_query_utc, query_count) VALUES ($1, $2, 1)
		 ON CONFLICT (search_filter) DO UPDATE SET last_query_utc = EXCLUDED.last_query_utc, query_count = filter_stats.query_count + 1`,
}

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
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

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
CREATE TABLE IF NOT EXISTS filtered_resources (
	search_filter TEXT PRIMARY KEY,
	data          JSONB NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS filter_stats (
	search_filter  TEXT PRIMARY KEY,
	last_query_utc TIMESTAMPTZ NOT NULL,
	query_count    BIGINT NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_filter_stats_last_query ON filter_stats(last_query_utc DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SetResourcesForFilter(ctx context.Context, res *model.FilteredResources) error {
	data, err := marshalResources(res)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal resources")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO filtered_resources (search_filter, data, updated_at) VALUES ($1, $2, $3)
		 ON CONFLICT (search_filter) DO UPDATE SET data = $2, updated_at = $3`,
		res.SearchFilter, data, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: set resources for %s", res.SearchFilter)
}

func (s *PostgresStore) GetResourcesForFilter(ctx context.Context, filter string) (*model.FilteredResources, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM filtered_resources WHERE search_filter = $1`, filter,
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get resources for %s", filter)
	}
	res, err := unmarshalResources(filter, data)
	return res, eris.Wrap(err, "postgres")
}

func (s *PostgresStore) RemoveResourcesForFilter(ctx context.Context, filter string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM filtered_resources WHERE search_filter = $1`, filter,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: remove resources for %s", filter)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("filtered resources not found: %s", filter)
	}
	return nil
}

func (s *PostgresStore) RecordQuery(ctx context.Context, filter string, at time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO filter_stats (search_filter, last_query_utc, query_count) VALUES ($1, $2, 1)
		 ON CONFLICT (search_filter) DO UPDATE SET last_query_utc = EXCLUDED.last_query_utc, query_count = filter_stats.query_count + 1`,
		filter, at.UTC(),
	)
	return eris.Wrapf(err, "postgres: record query for %s", filter)
}

func (s *PostgresStore) ListFilterStats(ctx context.Context) ([]FilterStats, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT search_filter, last_query_utc, query_count FROM filter_stats ORDER BY last_query_utc DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list filter stats")
	}
	defer rows.Close()

	var out []FilterStats
	for rows.Next() {
		fs, err := scanFilterStats(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres")
		}
		out = append(out, fs)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate filter stats")
}
