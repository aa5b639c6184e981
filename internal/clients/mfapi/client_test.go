package mfapi

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/navreturns/internal/clientdata"
	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/metrics"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBody = `{
  "meta": {
    "fund_house": "Sample Mutual Fund",
    "scheme_type": "Open Ended Schemes",
    "scheme_category": "Equity Scheme - Large Cap Fund",
    "scheme_code": 120503,
    "scheme_name": "Sample Bluechip Fund - Direct Plan - Growth"
  },
  "data": [
    {"date": "03-05-2024", "nav": "102.50000"},
    {"date": "02-05-2024", "nav": "N.A."},
    {"date": "31-04-2024", "nav": "100.00000"}
  ],
  "status": "SUCCESS"
}`

func setupCache(t *testing.T) *clientdata.Repository {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE nav_history (scheme_code TEXT PRIMARY KEY, data BLOB NOT NULL, expires_at INTEGER NOT NULL)`)
	require.NoError(t, err)
	return clientdata.NewRepository(db)
}

func newTestClient(baseURL string, repo *clientdata.Repository, mode string) *Client {
	return NewClient(Config{
		BaseURL:           baseURL,
		Timeout:           2 * time.Second,
		RequestsPerSecond: 1000,
		Burst:             10,
		CacheMode:         mode,
		CacheTTL:          time.Hour,
	}, repo, metrics.New(), zerolog.New(nil).Level(zerolog.Disabled))
}

func TestFetchHistory_ParsesResponse(t *testing.T) {
	var gotPath, gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	client := newTestClient(server.URL+"/mf", nil, CacheRefresh)
	history, err := client.FetchHistory(context.Background(), "120503")
	require.NoError(t, err)

	assert.Equal(t, "/mf/120503", gotPath)
	assert.NotEmpty(t, gotUA)
	assert.Equal(t, "120503", history.SchemeCode)
	assert.Equal(t, "Sample Bluechip Fund - Direct Plan - Growth", history.SchemeName)
	assert.Equal(t, "Equity Scheme - Large Cap Fund", history.Category)
	assert.Equal(t, "Sample Mutual Fund", history.FundHouse)

	require.Len(t, history.Points, 3)
	assert.True(t, history.Points[0].Valid())
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), history.Points[0].Date)
	assert.Equal(t, 102.5, history.Points[0].Value)
	assert.False(t, history.Points[1].Valid(), "non-numeric NAV")
	assert.False(t, history.Points[2].Valid(), "impossible date")

	series := domain.SeriesFromRaw(history.Points)
	assert.Equal(t, 1, series.Len())
}

func TestFetchHistory_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{"not found", http.StatusNotFound, `{}`, ErrBadStatus},
		{"empty data", http.StatusOK, `{"meta": {}, "data": []}`, ErrNoData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newTestClient(server.URL, nil, CacheRefresh).FetchHistory(context.Background(), "1")
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestFetchHistory_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": [`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL, nil, CacheRefresh).FetchHistory(context.Background(), "1")
	assert.ErrorContains(t, err, "failed to parse response")
}

func TestFetchHistory_EmptyCode(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1", nil, CacheRefresh).FetchHistory(context.Background(), "  ")
	assert.Error(t, err)
}

func TestFetchHistory_RefreshStoresAndFallsBackToStale(t *testing.T) {
	var fail atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	repo := setupCache(t)
	client := newTestClient(server.URL, repo, CacheRefresh)

	_, err := client.FetchHistory(context.Background(), "120503")
	require.NoError(t, err)

	count, err := repo.Count(clientdata.TableNAVHistory)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	fail.Store(true)
	stale, err := client.FetchHistory(context.Background(), "120503")
	require.NoError(t, err)
	assert.Equal(t, "Sample Bluechip Fund - Direct Plan - Growth", stale.SchemeName)
	assert.Equal(t, time.UTC, stale.Points[0].Date.Location())
	assert.Equal(t, time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC), stale.Points[0].Date)

	_, err = client.FetchHistory(context.Background(), "999")
	assert.ErrorIs(t, err, ErrBadStatus, "no cached copy to fall back to")
}

func TestFetchHistory_PreferModeServesFreshCache(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	repo := setupCache(t)
	client := newTestClient(server.URL, repo, CachePrefer)

	first, err := client.FetchHistory(context.Background(), "120503")
	require.NoError(t, err)
	second, err := client.FetchHistory(context.Background(), "120503")
	require.NoError(t, err)

	assert.Equal(t, int32(1), hits.Load())
	assert.Equal(t, first.SchemeName, second.SchemeName)
	assert.Len(t, second.Points, 3)
}

func TestFetchHistory_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil, CacheRefresh)
	for i := 0; i < breakerThreshold; i++ {
		_, err := client.FetchHistory(context.Background(), "1")
		require.ErrorIs(t, err, ErrBadStatus)
	}

	_, err := client.FetchHistory(context.Background(), "1")
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
	assert.Equal(t, int32(breakerThreshold), hits.Load())
	assert.Equal(t, "open", client.BreakerState())
}

func TestFetchHistory_NoDataDoesNotTripBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, nil, CacheRefresh)
	for i := 0; i < breakerThreshold+2; i++ {
		_, err := client.FetchHistory(context.Background(), "1")
		require.ErrorIs(t, err, ErrNoData)
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestFetchHistory_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(sampleBody))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL, nil, CacheRefresh).FetchHistory(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParsePoint(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		nav   string
		valid bool
	}{
		{"valid", "15-01-2024", "12.3456", true},
		{"padded", " 15-01-2024 ", " 12.3 ", true},
		{"iso date", "2024-01-15", "12.3", false},
		{"empty nav", "15-01-2024", "", false},
		{"zero nav", "15-01-2024", "0.0000", false},
		{"text nav", "15-01-2024", "N.A.", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, ParsePoint(tt.date, tt.nav).Valid())
		})
	}
}
