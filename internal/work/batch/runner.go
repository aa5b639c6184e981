package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/metrics"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/modules/returns"
	"github.com/aristath/navreturns/internal/utils"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultLogEvery is how many processed funds pass between progress log lines
const DefaultLogEvery = 50

var (
	// ErrAlreadyRunning is returned when a run is started while another is in progress
	ErrAlreadyRunning = errors.New("batch run already in progress")
	// ErrNoValidPoints is recorded for funds whose history has no usable valuation
	ErrNoValidPoints = errors.New("no valid NAV points")
)

// Fetcher provides raw NAV histories
type Fetcher interface {
	FetchHistory(ctx context.Context, schemeCode string) (*domain.FundHistory, error)
}

// ProgressFunc is called once per processed fund, serially, with done increasing
// from 1 to total
type ProgressFunc func(done, total int, fund domain.Fund, err error)

// RunReport summarizes one batch run
type RunReport struct {
	StartedAt   time.Time            `json:"started_at"`
	FinishedAt  time.Time            `json:"finished_at"`
	ID          string               `json:"id"`
	Methodology domain.Methodology   `json:"methodology"`
	Results     []domain.FundReturns `json:"-"`
	Total       int                  `json:"total"`
	Succeeded   int                  `json:"succeeded"`
	Failed      int                  `json:"failed"`
}

// Duration returns the wall time of the run
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Record converts the report into its persisted form
func (r *RunReport) Record(outputFile string) funds.Run {
	return funds.Run{
		ID:          r.ID,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Total:       r.Total,
		Succeeded:   r.Succeeded,
		Failed:      r.Failed,
		Methodology: r.Methodology,
		OutputFile:  outputFile,
	}
}

// Runner fetches and computes return profiles for a list of funds.
// Only one run may be active at a time.
type Runner struct {
	fetcher  Fetcher
	calc     *returns.Calculator
	pool     *WorkerPool
	metrics  *metrics.Registry
	log      zerolog.Logger
	logEvery int
	running  atomic.Bool
	now      func() time.Time
}

// NewRunner creates a batch runner. reg may be nil.
func NewRunner(fetcher Fetcher, calc *returns.Calculator, workers int, reg *metrics.Registry, log zerolog.Logger) *Runner {
	return &Runner{
		fetcher:  fetcher,
		calc:     calc,
		pool:     NewWorkerPool(workers),
		metrics:  reg,
		log:      log.With().Str("component", "batch_runner").Logger(),
		logEvery: DefaultLogEvery,
		now:      time.Now,
	}
}

// Running reports whether a run is in progress
func (r *Runner) Running() bool {
	return r.running.Load()
}

// Workers returns the worker pool size
func (r *Runner) Workers() int {
	return r.pool.Size()
}

// Methodology returns the methodology of the runner's calculator
func (r *Runner) Methodology() domain.Methodology {
	return r.calc.Config().Methodology
}

// Run processes every fund. A failing fund is recorded in its result and does
// not affect the others. When ctx is cancelled the remaining funds carry the
// context error and Run returns it alongside the partial report.
func (r *Runner) Run(ctx context.Context, list []domain.Fund, progress ProgressFunc) (*RunReport, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer r.running.Store(false)

	stop := utils.OperationTimer("batch_run", r.log)
	report := &RunReport{
		ID:          uuid.NewString(),
		StartedAt:   r.now().UTC(),
		Methodology: r.Methodology(),
		Total:       len(list),
	}

	r.log.Info().
		Str("run_id", report.ID).
		Int("funds", len(list)).
		Int("workers", r.pool.Size()).
		Str("methodology", string(report.Methodology)).
		Msg("Batch run started")
	r.metrics.BatchStarted()

	var (
		mu   sync.Mutex
		done int
	)
	report.Results = r.pool.Process(ctx, list, func(ctx context.Context, fund domain.Fund) domain.FundReturns {
		res := r.processFund(ctx, fund, report.Methodology)

		mu.Lock()
		defer mu.Unlock()
		done++
		if done%r.logEvery == 0 || done == len(list) {
			r.log.Info().
				Str("run_id", report.ID).
				Int("done", done).
				Int("total", len(list)).
				Msg("Batch progress")
		}
		if progress != nil {
			progress(done, len(list), res.Fund, res.Err)
		}
		return res
	})

	for _, res := range report.Results {
		if res.Failed() {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	report.FinishedAt = r.now().UTC()
	stop()
	r.metrics.BatchFinished(report.Succeeded, report.Failed, report.Duration())

	r.log.Info().
		Str("run_id", report.ID).
		Int("total", report.Total).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Dur("duration", report.Duration()).
		Msg("Batch run finished")

	if err := ctx.Err(); err != nil {
		return report, fmt.Errorf("batch run %s interrupted: %w", report.ID, err)
	}
	return report, nil
}

// ComputeFund fetches and computes one fund outside of a batch run
func (r *Runner) ComputeFund(ctx context.Context, fund domain.Fund, methodology domain.Methodology) domain.FundReturns {
	return r.processFund(ctx, fund, methodology)
}

func (r *Runner) processFund(ctx context.Context, fund domain.Fund, methodology domain.Methodology) (res domain.FundReturns) {
	windows := r.calc.Config().Windows
	res = domain.FundReturns{Fund: fund, UpdatedAt: r.now().UTC()}

	fail := func(err error, reason string) domain.FundReturns {
		res.Err = err
		res.Profile = domain.UndefinedProfile(windows, methodology, reason)
		return res
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Str("scheme_code", fund.SchemeCode).
				Interface("panic", rec).
				Msg("Fund computation panicked")
			res = fail(fmt.Errorf("scheme %s: panic: %v", fund.SchemeCode, rec), domain.ReasonFailed)
		}
	}()

	if err := ctx.Err(); err != nil {
		return fail(err, domain.ReasonNoData)
	}

	history, err := r.fetcher.FetchHistory(ctx, fund.SchemeCode)
	if err != nil {
		r.log.Debug().Err(err).Str("scheme_code", fund.SchemeCode).Msg("Fetch failed")
		return fail(err, domain.ReasonNoData)
	}
	res.Fund = enrich(fund, history)

	profile := r.calc.ComputeWith(history.Points, methodology)
	if profile.Points == 0 {
		return fail(fmt.Errorf("scheme %s: %w", fund.SchemeCode, ErrNoValidPoints), domain.ReasonNoData)
	}
	for _, split := range profile.Splits {
		r.log.Info().
			Str("scheme_code", fund.SchemeCode).
			Time("date", split.Date).
			Float64("factor", split.Factor).
			Str("direction", string(split.Direction)).
			Msg("Corrected NAV discontinuity")
	}

	r.metrics.ObserveProfile(profile)
	res.Profile = profile
	return res
}

// enrich fills metadata the scheme list lacks from the provider's response
func enrich(fund domain.Fund, history *domain.FundHistory) domain.Fund {
	if fund.SchemeName == "" {
		fund.SchemeName = history.SchemeName
	}
	if fund.Type == "" {
		fund.Type = domain.ProductTypeFromOption(fund.Option)
	}
	fund.Category = history.Category
	fund.FundHouse = history.FundHouse
	return fund
}
