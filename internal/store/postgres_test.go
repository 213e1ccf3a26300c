package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_SetResources_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	key := "city=mumbai&resource_type=oxygen"

	mock.ExpectExec(`INSERT INTO filtered_resources .* ON CONFLICT \(search_filter\)`).
		WithArgs(key, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetResourcesForFilter(context.Background(), sampleResources(key, "a"))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResources(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	key := "city=mumbai&resource_type=oxygen"

	mock.ExpectQuery(`SELECT data FROM filtered_resources WHERE search_filter = \$1`).
		WithArgs(key).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).
			AddRow([]byte(`[{"contact_name":"Sharma Oxygen","phones":["9876543210"],"availability":true}]`)))

	got, err := s.GetResourcesForFilter(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Len(t, got.Data, 1)
	assert.Equal(t, "Sharma Oxygen", got.Data[0].ContactName)
	assert.True(t, got.Data[0].Availability)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResources_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM filtered_resources`).
		WithArgs("city=x&resource_type=oxygen").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.GetResourcesForFilter(context.Background(), "city=x&resource_type=oxygen")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetResources_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data FROM filtered_resources`).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := s.GetResourcesForFilter(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get resources")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RemoveResources(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM filtered_resources WHERE search_filter = \$1`).
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM filtered_resources`).
		WithArgs("k").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.RemoveResourcesForFilter(context.Background(), "k"))
	err := s.RemoveResourcesForFilter(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordQuery(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	at := time.Date(2021, 5, 1, 15, 30, 0, 0, time.FixedZone("IST", 19800))

	mock.ExpectExec(`INSERT INTO filter_stats .* ON CONFLICT \(search_filter\) DO UPDATE`).
		WithArgs("k", at.UTC()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.RecordQuery(context.Background(), "k", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListFilterStats(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	t1 := time.Date(2021, 5, 3, 10, 0, 0, 0, time.UTC)
	t2 := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT search_filter, last_query_utc, query_count FROM filter_stats`).
		WillReturnRows(pgxmock.NewRows([]string{"search_filter", "last_query_utc", "query_count"}).
			AddRow("a", t1, int64(4)).
			AddRow("b", t2, int64(1)))

	stats, err := s.ListFilterStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []FilterStats{
		{Filter: "a", LastQueryUTC: t1, QueryCount: 4},
		{Filter: "b", LastQueryUTC: t2, QueryCount: 1},
	}, stats)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS filtered_resources`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectPing()
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CloseWithoutPool(t *testing.T) {
	s := &PostgresStore{}
	assert.NoError(t, s.Close())

	var closed bool
	s = &PostgresStore{closeFn: func() { closed = true }}
	require.NoError(t, s.Close())
	assert.True(t, closed)
}

