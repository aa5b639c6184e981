package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"

	"github.com/aristath/navreturns/internal/clients/mfapi"
	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/events"
	"github.com/aristath/navreturns/internal/metrics"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/modules/returns"
	"github.com/aristath/navreturns/internal/work/batch"
)

var testStart = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

type fakeFetcher struct {
	histories map[string]*domain.FundHistory
}

func (f *fakeFetcher) FetchHistory(_ context.Context, code string) (*domain.FundHistory, error) {
	h, ok := f.histories[code]
	if !ok {
		return nil, fmt.Errorf("scheme %s: %w", code, mfapi.ErrNoData)
	}
	return h, nil
}

func flatHistory(code string, days int) *domain.FundHistory {
	points := make([]domain.RawPoint, days)
	for i := range points {
		points[i] = domain.RawPoint{Date: testStart.AddDate(0, 0, i), Value: 100}
	}
	return &domain.FundHistory{SchemeCode: code, SchemeName: "Provider " + code, Category: "Index Fund", Points: points}
}

type testEnv struct {
	server  *Server
	results *funds.Repository
	hub     *events.Hub
}

func setupServer(t *testing.T) *testEnv {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	schema, err := os.ReadFile("../database/schemas/results_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	calc, err := returns.NewCalculator(returns.DefaultEngineConfig(), log)
	require.NoError(t, err)

	reg := metrics.New()
	fetcher := &fakeFetcher{histories: map[string]*domain.FundHistory{"100": flatHistory("100", 400)}}
	runner := batch.NewRunner(fetcher, calc, 2, reg, log)
	results := funds.NewRepository(db, log)
	hub := events.NewHub(log)

	s := New(Config{
		Log:        log,
		Port:       0,
		DevMode:    true,
		Calculator: calc,
		Runner:     runner,
		Results:    results,
		Hub:        hub,
		Metrics:    reg,
	})
	t.Cleanup(func() { s.cancel() })

	return &testEnv{server: s, results: results, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	var env struct {
		Data     json.RawMessage        `json:"data"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Contains(t, env.Metadata, "timestamp")
	require.NoError(t, json.Unmarshal(env.Data, out))
}

func storedResult(code, category string, value float64) domain.FundReturns {
	profile := domain.UndefinedProfile(domain.DefaultWindows(), domain.MethodologyPeriodic, domain.ReasonInsufficientHistory)
	profile.Windows[0].Value = &value
	profile.Windows[0].Method = domain.MethodSIPAbsolute
	profile.Windows[0].Reason = ""
	profile.Points = 30
	return domain.FundReturns{
		UpdatedAt: testStart,
		Fund: domain.Fund{
			SchemeCode: code,
			SchemeName: "Fund " + code,
			Type:       domain.ProductTypeMutualFund,
			Category:   category,
		},
		Profile: profile,
	}
}

func TestHealth(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestMetricsEndpoint(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodGet, "/metrics", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "navreturns_")
}

func TestHandleCompute(t *testing.T) {
	env := setupServer(t)

	points := make([]ComputePoint, 400)
	for i := range points {
		points[i] = ComputePoint{Date: testStart.AddDate(0, 0, i).Format(domain.DateLayout), Value: 100}
	}
	body, err := json.Marshal(ComputeRequest{Methodology: "lumpsum", Points: points})
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/returns/compute", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		Profile struct {
			Methodology string              `json:"methodology"`
			Returns     map[string]*float64 `json:"returns"`
			Points      int                 `json:"points"`
		} `json:"profile"`
		Details []domain.WindowReturn `json:"details"`
	}
	decodeData(t, rec, &resp)

	assert.Equal(t, "lumpsum", resp.Profile.Methodology)
	assert.Equal(t, 400, resp.Profile.Points)
	require.NotNil(t, resp.Profile.Returns["1M"])
	assert.InDelta(t, 0, *resp.Profile.Returns["1M"], 1e-9)
	assert.Nil(t, resp.Profile.Returns["3Y"])
	require.Len(t, resp.Details, len(domain.DefaultWindows()))
	assert.Equal(t, domain.ReasonInsufficientHistory, resp.Details[4].Reason)
}

func TestHandleComputeDropsUnparseableDates(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name string
		date string
	}{
		{name: "day first", date: "03-05-2024"},
		{name: "empty", date: ""},
		{name: "garbage", date: "yesterday"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := make([]ComputePoint, 400)
			for i := range points {
				points[i] = ComputePoint{Date: testStart.AddDate(0, 0, i).Format(domain.DateLayout), Value: 100}
			}
			points = append(points, ComputePoint{Date: tt.date, Value: 10})
			body, err := json.Marshal(ComputeRequest{Methodology: "lumpsum", Points: points})
			require.NoError(t, err)

			rec := env.do(t, http.MethodPost, "/api/returns/compute", body)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

			var resp struct {
				Profile struct {
					Points int `json:"points"`
				} `json:"profile"`
			}
			decodeData(t, rec, &resp)
			assert.Equal(t, 400, resp.Profile.Points)
		})
	}
}

func TestHandleComputeRejectsBadInput(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "malformed json", body: `{"points":`},
		{name: "unknown methodology", body: `{"methodology":"weekly","points":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/returns/compute", []byte(tt.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleFundReturns(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodGet, "/api/funds/100/returns?methodology=lumpsum", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp ProfileResponse
	decodeData(t, rec, &resp)
	require.NotNil(t, resp.Fund)
	assert.Equal(t, "Provider 100", resp.Fund.SchemeName)
	assert.Equal(t, "Index Fund", resp.Fund.Category)
	assert.Equal(t, domain.MethodologyLumpsum, resp.Profile.Methodology)
	assert.Equal(t, domain.MethodAbsolute, resp.Details[0].Method)
}

func TestHandleFundReturnsErrors(t *testing.T) {
	env := setupServer(t)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "unknown scheme", path: "/api/funds/999/returns", status: http.StatusNotFound},
		{name: "bad methodology", path: "/api/funds/100/returns?methodology=weekly", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tt.path, nil)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestFetchErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, fetchErrorStatus(fmt.Errorf("x: %w", mfapi.ErrNoData)))
	assert.Equal(t, http.StatusNotFound, fetchErrorStatus(fmt.Errorf("x: %w", batch.ErrNoValidPoints)))
	assert.Equal(t, http.StatusBadGateway, fetchErrorStatus(fmt.Errorf("%w: 500", mfapi.ErrBadStatus)))
	assert.Equal(t, http.StatusServiceUnavailable, fetchErrorStatus(context.DeadlineExceeded))
}

func TestFundEndpoints(t *testing.T) {
	env := setupServer(t)
	require.NoError(t, env.results.Upsert("run-1", []domain.FundReturns{
		storedResult("1", "Equity", 10),
		storedResult("2", "Equity", 20),
		storedResult("3", "Debt", 5),
	}))

	t.Run("list all", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/funds", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var records []funds.Record
		decodeData(t, rec, &records)
		assert.Len(t, records, 3)
	})

	t.Run("list by category", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/funds?category=Debt", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var records []funds.Record
		decodeData(t, rec, &records)
		require.Len(t, records, 1)
		assert.Equal(t, "3", records[0].SchemeCode)
	})

	t.Run("get", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/funds/2", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Fund    funds.Record          `json:"fund"`
			Details []domain.WindowReturn `json:"details"`
		}
		decodeData(t, rec, &resp)
		assert.Equal(t, "Fund 2", resp.Fund.SchemeName)
		assert.Equal(t, domain.MethodSIPAbsolute, resp.Details[0].Method)
	})

	t.Run("get missing", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/funds/404", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("summary", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/summary", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var summary []funds.CategorySummary
		decodeData(t, rec, &summary)
		require.Len(t, summary, 2)
		assert.Equal(t, "Debt", summary[0].Category)
		assert.Equal(t, "Equity", summary[1].Category)
		assert.Equal(t, 2, summary[1].Funds)
	})
}

func TestBatchLatest(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodGet, "/api/batch/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.NoError(t, env.results.RecordRun(funds.Run{
		ID:          "run-1",
		Methodology: domain.MethodologyPeriodic,
		StartedAt:   testStart,
		FinishedAt:  testStart.Add(1500 * time.Millisecond),
		Total:       3,
		Succeeded:   2,
		Failed:      1,
	}))

	rec = env.do(t, http.MethodGet, "/api/batch/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Run        funds.Run `json:"run"`
		Running    bool      `json:"running"`
		DurationMS float64   `json:"duration_ms"`
	}
	decodeData(t, rec, &resp)
	assert.Equal(t, "run-1", resp.Run.ID)
	assert.False(t, resp.Running)
	assert.InDelta(t, 1500, resp.DurationMS, 1e-9)
}

func TestBatchTriggerWithoutJob(t *testing.T) {
	env := setupServer(t)

	rec := env.do(t, http.MethodPost, "/api/batch", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSystemStatus(t *testing.T) {
	env := setupServer(t)
	require.NoError(t, env.results.Upsert("run-1", []domain.FundReturns{storedResult("1", "Equity", 10)}))

	rec := env.do(t, http.MethodGet, "/api/system/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, int64(1), resp.StoredResults)
	assert.False(t, resp.BatchRunning)
	assert.Empty(t, resp.Databases)
	assert.NotEmpty(t, resp.Uptime)
}

func TestBatchStream(t *testing.T) {
	env := setupServer(t)
	ts := httptest.NewServer(env.server.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/batch/stream"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)
	env.hub.Emit(&events.BatchStartedData{Methodology: "periodic", Total: 7})

	msgType, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, msgType)

	var event struct {
		Type string `json:"type"`
		Data struct {
			Methodology string `json:"methodology"`
			Total       int    `json:"total"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, string(events.BatchStarted), event.Type)
	assert.Equal(t, 7, event.Data.Total)
}
