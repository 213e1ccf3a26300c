package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/covisearch/aggregator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS filtered_resources (
	search_filter TEXT PRIMARY KEY,
	data          TEXT NOT NULL,
	updated_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS filter_stats (
	search_filter  TEXT PRIMARY KEY,
	last_query_utc DATETIME NOT NULL,
	query_count    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_filter_stats_last_query ON filter_stats(last_query_utc);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SetResourcesForFilter(ctx context.Context, res *model.FilteredResources) error {
	data, err := marshalResources(res)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal resources")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO filtered_resources (search_filter, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (search_filter) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		res.SearchFilter, string(data), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: set resources for %s", res.SearchFilter)
}

func (s *SQLiteStore) GetResourcesForFilter(ctx context.Context, filter string) (*model.FilteredResources, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM filtered_resources WHERE search_filter = ?`, filter,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get resources for %s", filter)
	}
	return unmarshalResources(filter, []byte(data))
}

func (s *SQLiteStore) RemoveResourcesForFilter(ctx context.Context, filter string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM filtered_resources WHERE search_filter = ?`, filter,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: remove resources for %s", filter)
	}
	return checkRowsAffected(res, "filtered resources", filter)
}

func (s *SQLiteStore) RecordQuery(ctx context.Context, filter string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO filter_stats (search_filter, last_query_utc, query_count) VALUES (?, ?, 1)
		 ON CONFLICT (search_filter) DO UPDATE SET
			last_query_utc = excluded.last_query_utc,
			query_count = filter_stats.query_count + 1`,
		filter, at.UTC(),
	)
	return eris.Wrapf(err, "sqlite: record query for %s", filter)
}

func (s *SQLiteStore) ListFilterStats(ctx context.Context) ([]FilterStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT search_filter, last_query_utc, query_count FROM filter_stats ORDER BY last_query_utc DESC`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list filter stats")
	}
	defer rows.Close() //nolint:errcheck

	var out []FilterStats
	for rows.Next() {
		fs, err := scanFilterStats(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate filter stats")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFilterStats(row scannable) (FilterStats, error) {
	var fs FilterStats
	if err := row.Scan(&fs.Filter, &fs.LastQueryUTC, &fs.QueryCount); err != nil {
		return FilterStats{}, eris.Wrap(err, "scan filter stats")
	}
	fs.LastQueryUTC = fs.LastQueryUTC.UTC()
	return fs, nil
}

func marshalResources(res *model.FilteredResources) ([]byte, error) {
	data := res.Data
	if data == nil {
		data = []model.Document{}
	}
	return json.Marshal(data)
}

func unmarshalResources(filter string, data []byte) (*model.FilteredResources, error) {
	res := &model.FilteredResources{SearchFilter: filter}
	if err := json.Unmarshal(data, &res.Data); err != nil {
		return nil, eris.Wrapf(err, "unmarshal resources for %s", filter)
	}
	return res, nil
}
