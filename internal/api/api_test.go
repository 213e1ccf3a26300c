package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covisearch/aggregator/internal/model"
	"github.com/covisearch/aggregator/internal/store"
)

type memStore struct {
	mu      sync.Mutex
	data    map[string]*model.FilteredResources
	queries map[string][]time.Time
	pingErr error
	getErr  error
}

func newMemStore() *memStore {
	return &memStore{
		data:    make(map[string]*model.FilteredResources),
		queries: make(map[string][]time.Time),
	}
}

func (m *memStore) SetResourcesForFilter(_ context.Context, res *model.FilteredResources) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[res.SearchFilter] = res
	return nil
}

func (m *memStore) GetResourcesForFilter(_ context.Context, filter string) (*model.FilteredResources, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[filter], nil
}

func (m *memStore) RemoveResourcesForFilter(context.Context, string) error { return nil }

func (m *memStore) RecordQuery(_ context.Context, filter string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries[filter] = append(m.queries[filter], at)
	return nil
}

func (m *memStore) ListFilterStats(context.Context) ([]store.FilterStats, error) { return nil, nil }
func (m *memStore) Migrate(context.Context) error                                { return nil }
func (m *memStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pingErr
}
func (m *memStore) Close() error { return nil }

var fixedNow = time.Date(2021, 5, 10, 8, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, st *memStore) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(NewRouter(st, Options{Now: func() time.Time { return fixedNow }}))
	t.Cleanup(srv.Close)
	return srv
}

func seed(st *memStore, filter string, n int) {
	res := &model.FilteredResources{SearchFilter: filter}
	for i := range n {
		res.Data = append(res.Data, model.Document{ContactName: fmt.Sprintf("c%d", i), Phones: []string{}})
	}
	_ = st.SetResourcesForFilter(context.Background(), res)
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	var buf json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&buf))
	return resp, buf
}

func TestHealth(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	srv := newTestServer(t, st)

	resp, body := get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	st.mu.Lock()
	st.pingErr = errors.New("db down")
	st.mu.Unlock()
	resp, _ = get(t, srv.URL+"/health")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestResources_Pages(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	seed(st, "city=navi%20mumbai&resource_type=oxygen", 23)
	srv := newTestServer(t, st)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantFirst string
		wantLen   int
	}{
		{"default page", "city=Navi%20Mumbai&resource_type=oxygen", http.StatusOK, "c0", 10},
		{"second page", "city=navi+mumbai&resource_type=oxygen&page=2", http.StatusOK, "c10", 10},
		{"partial last page", "city=navi%20mumbai&resource_type=oxygen&page=3", http.StatusOK, "c20", 3},
		{"past the end", "city=navi%20mumbai&resource_type=oxygen&page=4", http.StatusNotFound, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+"/resources?"+tt.query)
			require.Equal(t, tt.wantCode, resp.StatusCode, string(body))
			if tt.wantCode != http.StatusOK {
				return
			}
			var page Page
			require.NoError(t, json.Unmarshal(body, &page))
			assert.Equal(t, "city=navi%20mumbai&resource_type=oxygen", page.SearchFilter)
			assert.Equal(t, 23, page.Total)
			assert.Equal(t, DefaultPageSize, page.PageSize)
			require.Len(t, page.Data, tt.wantLen)
			assert.Equal(t, tt.wantFirst, page.Data[0].ContactName)
		})
	}
}

func TestResources_EmptyDataFirstPage(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	seed(st, "city=goa&resource_type=ecmo", 0)
	srv := newTestServer(t, st)

	resp, body := get(t, srv.URL+"/resources?city=goa&resource_type=ecmo")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page Page
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Empty(t, page.Data)
	assert.NotNil(t, page.Data)
}

func TestResources_Errors(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	seed(st, "city=pune&resource_type=plasma&blood_group=o%2B", 3)
	srv := newTestServer(t, st)

	tests := []struct {
		name     string
		query    string
		wantCode int
	}{
		{"missing city", "resource_type=oxygen", http.StatusBadRequest},
		{"missing type", "city=pune", http.StatusBadRequest},
		{"unknown type", "city=pune&resource_type=unicorns", http.StatusBadRequest},
		{"bad blood group", "city=pune&resource_type=plasma&blood_group=z", http.StatusBadRequest},
		{"bad page", "city=pune&resource_type=plasma&page=zero", http.StatusBadRequest},
		{"negative page", "city=pune&resource_type=plasma&page=-1", http.StatusBadRequest},
		{"never aggregated", "city=pune&resource_type=oxygen", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, srv.URL+"/resources?"+tt.query)
			assert.Equal(t, tt.wantCode, resp.StatusCode, string(body))
			assert.Contains(t, string(body), `"error"`)
		})
	}
}

func TestResources_RecordsQuery(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	seed(st, "city=pune&resource_type=oxygen", 1)
	srv := newTestServer(t, st)

	get(t, srv.URL+"/resources?city=pune&resource_type=oxygen")
	get(t, srv.URL+"/resources?city=Pune&resource_type=oxygen&page=1")
	get(t, srv.URL+"/resources?city=delhi&resource_type=oxygen")

	st.mu.Lock()
	defer st.mu.Unlock()
	assert.Equal(t, []time.Time{fixedNow, fixedNow}, st.queries["city=pune&resource_type=oxygen"])
	assert.Len(t, st.queries["city=delhi&resource_type=oxygen"], 1)
}

func TestResources_StoreError(t *testing.T) {
	t.Parallel()

	st := newMemStore()
	st.getErr = errors.New("timeout")
	srv := newTestServer(t, st)

	resp, _ := get(t, srv.URL+"/resources?city=pune&resource_type=oxygen")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, newMemStore())

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/health", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://covisearch.example.org")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
