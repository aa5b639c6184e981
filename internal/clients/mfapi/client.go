// Package mfapi provides NAV history fetching from the public mfapi.in service.
package mfapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/navreturns/internal/clientdata"
	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/metrics"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// DateLayout is the provider's dd-mm-yyyy date format
const DateLayout = "02-01-2006"

const (
	userAgent        = "Mozilla/5.0 (compatible; navreturns/1.0)"
	breakerThreshold = 5
)

// Cache modes
const (
	// CacheRefresh always fetches, stores, and falls back to stale cache on failure
	CacheRefresh = "refresh"
	// CachePrefer serves fresh cached histories without fetching
	CachePrefer = "prefer"
)

var (
	// ErrNoData is returned when the provider has no NAV rows for a scheme
	ErrNoData = errors.New("no NAV data")
	// ErrBadStatus is returned on a non-200 response
	ErrBadStatus = errors.New("unexpected status")
)

// Config holds client settings
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	CacheMode         string
	CacheTTL          time.Duration // 0 uses clientdata.NAVHistoryTTL
}

// Client for mfapi.in
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	breaker   *gobreaker.CircuitBreaker
	cacheRepo *clientdata.Repository
	cacheMode string
	cacheTTL  time.Duration
	metrics   *metrics.Registry
	log       zerolog.Logger
	now       func() time.Time
}

// NewClient creates a new mfapi.in client.
// cacheRepo and reg are optional; if cacheRepo is nil, caching is disabled.
func NewClient(cfg Config, cacheRepo *clientdata.Repository, reg *metrics.Registry, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 5
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.CacheMode == "" {
		cfg.CacheMode = CacheRefresh
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}

	c := &Client{
		baseURL:   cfg.BaseURL,
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		cacheRepo: cacheRepo,
		cacheMode: cfg.CacheMode,
		cacheTTL:  cfg.CacheTTL,
		metrics:   reg,
		log:       log.With().Str("client", "mfapi").Logger(),
		now:       time.Now,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "mfapi",
		Interval: 60 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerThreshold
		},
		// A scheme without data is a valid answer, not a provider failure
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoData)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.log.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state changed")
		},
	})

	return c
}

// response is the provider's JSON shape
type response struct {
	Meta struct {
		FundHouse      string `json:"fund_house"`
		SchemeType     string `json:"scheme_type"`
		SchemeCategory string `json:"scheme_category"`
		SchemeName     string `json:"scheme_name"`
	} `json:"meta"`
	Data []struct {
		Date string `json:"date"`
		NAV  string `json:"nav"`
	} `json:"data"`
	Status string `json:"status"`
}

// FetchHistory returns a scheme's NAV history, honouring the cache mode.
// In refresh mode a failed fetch falls back to cached data of any age.
func (c *Client) FetchHistory(ctx context.Context, schemeCode string) (*domain.FundHistory, error) {
	schemeCode = strings.TrimSpace(schemeCode)
	if schemeCode == "" {
		return nil, fmt.Errorf("scheme code is required")
	}

	if c.cacheMode == CachePrefer {
		if history, ok := c.fromCache(schemeCode, true); ok {
			c.metrics.ObserveCache(metrics.CacheFresh)
			c.log.Debug().Str("scheme_code", schemeCode).Msg("Cache hit")
			return history, nil
		}
		c.metrics.ObserveCache(metrics.CacheMiss)
	}

	start := c.now()
	history, err := c.fetch(ctx, schemeCode)
	if err != nil {
		if ctx.Err() == nil && !errors.Is(err, ErrNoData) {
			if stale, ok := c.fromCache(schemeCode, false); ok {
				c.metrics.ObserveFetch(metrics.OutcomeStale, time.Since(start))
				c.metrics.ObserveCache(metrics.CacheStale)
				c.log.Warn().
					Err(err).
					Str("scheme_code", schemeCode).
					Time("fetched_at", stale.FetchedAt).
					Msg("API failed, using stale cached history")
				return stale, nil
			}
		}
		c.metrics.ObserveFetch(metrics.OutcomeError, time.Since(start))
		return nil, err
	}
	c.metrics.ObserveFetch(metrics.OutcomeOK, time.Since(start))

	if c.cacheRepo != nil {
		ttl := c.cacheTTL
		if ttl <= 0 {
			ttl = clientdata.NAVHistoryTTL(history.FetchedAt)
		}
		if err := c.cacheRepo.Store(clientdata.TableNAVHistory, schemeCode, history, ttl); err != nil {
			c.log.Warn().Err(err).Str("scheme_code", schemeCode).Msg("Failed to cache NAV history")
		}
	}

	c.log.Debug().
		Str("scheme_code", schemeCode).
		Int("points", len(history.Points)).
		Msg("Fetched NAV history")

	return history, nil
}

// fetch performs one rate-limited request through the circuit breaker
func (c *Client) fetch(ctx context.Context, schemeCode string) (*domain.FundHistory, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(ctx, schemeCode)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch scheme %s: %w", schemeCode, err)
	}
	return result.(*domain.FundHistory), nil
}

func (c *Client) doRequest(ctx context.Context, schemeCode string) (*domain.FundHistory, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+schemeCode, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(body.Data) == 0 {
		return nil, ErrNoData
	}

	history := &domain.FundHistory{
		FetchedAt:  c.now().UTC(),
		SchemeCode: schemeCode,
		SchemeName: body.Meta.SchemeName,
		Category:   body.Meta.SchemeCategory,
		FundHouse:  body.Meta.FundHouse,
		SchemeType: body.Meta.SchemeType,
		Points:     make([]domain.RawPoint, 0, len(body.Data)),
	}
	for _, row := range body.Data {
		history.Points = append(history.Points, ParsePoint(row.Date, row.NAV))
	}

	return history, nil
}

// ParsePoint converts one provider row. Unparsable fields yield an invalid
// point (zero date or NaN value) that normalization discards.
func ParsePoint(date, nav string) domain.RawPoint {
	var p domain.RawPoint
	if t, err := time.Parse(DateLayout, strings.TrimSpace(date)); err == nil {
		p.Date = t
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(nav), 64)
	if err != nil {
		v = math.NaN()
	}
	p.Value = v
	return p
}

// fromCache loads a cached history, fresh-only or of any age
func (c *Client) fromCache(schemeCode string, freshOnly bool) (*domain.FundHistory, bool) {
	if c.cacheRepo == nil {
		return nil, false
	}

	var history domain.FundHistory
	var (
		found bool
		err   error
	)
	if freshOnly {
		found, err = c.cacheRepo.GetIfFresh(clientdata.TableNAVHistory, schemeCode, &history)
	} else {
		found, err = c.cacheRepo.Get(clientdata.TableNAVHistory, schemeCode, &history)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("scheme_code", schemeCode).Msg("Failed to read cached NAV history")
		return nil, false
	}
	if !found {
		return nil, false
	}

	// msgpack decodes timestamps in the local zone; calendar dates are UTC
	history.FetchedAt = history.FetchedAt.UTC()
	for i := range history.Points {
		history.Points[i].Date = history.Points[i].Date.UTC()
	}
	return &history, true
}

// BreakerState reports the circuit breaker state
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}
