package returns

import (
	"errors"
	"fmt"
	"time"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/pkg/formulas"
	"github.com/rs/zerolog"
)

// Calculator produces per-window return profiles. It holds no mutable state
// and is safe for concurrent use.
type Calculator struct {
	cfg        EngineConfig
	normalizer *SeriesNormalizer
	simulator  *ContributionSimulator
	solver     *RateSolver
	log        zerolog.Logger
}

// NewCalculator creates a calculator for a validated configuration
func NewCalculator(cfg EngineConfig, log zerolog.Logger) (*Calculator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	cfg = cfg.Clone()

	return &Calculator{
		cfg:        cfg,
		normalizer: NewSeriesNormalizer(cfg.SplitFactors, cfg.SplitTolerance, log),
		simulator:  NewContributionSimulator(cfg.ContributionAmount, cfg.ContributionDay),
		solver:     NewRateSolver(cfg.Solver),
		log:        log.With().Str("component", "return_calculator").Logger(),
	}, nil
}

// Config returns a copy of the calculator's configuration
func (c *Calculator) Config() EngineConfig {
	return c.cfg.Clone()
}

// Normalize cleans a raw series and corrects splits
func (c *Calculator) Normalize(raw []domain.RawPoint) (domain.ValuationSeries, []domain.SplitEvent) {
	return c.normalizer.Normalize(raw)
}

// Compute normalizes a raw series and calculates its profile with the
// configured methodology
func (c *Calculator) Compute(raw []domain.RawPoint) domain.ReturnProfile {
	return c.ComputeWith(raw, c.cfg.Methodology)
}

// ComputeWith normalizes a raw series and calculates its profile
func (c *Calculator) ComputeWith(raw []domain.RawPoint, methodology domain.Methodology) domain.ReturnProfile {
	series, splits := c.Normalize(raw)
	profile := c.CalculateWith(series, methodology)
	profile.Splits = splits
	return profile
}

// Calculate computes the profile of a normalized series with the configured methodology
func (c *Calculator) Calculate(series domain.ValuationSeries) domain.ReturnProfile {
	return c.CalculateWith(series, c.cfg.Methodology)
}

// CalculateWith computes one result per configured window. The series must
// already be normalized. Windows that cannot be computed are undefined.
func (c *Calculator) CalculateWith(series domain.ValuationSeries, methodology domain.Methodology) domain.ReturnProfile {
	if methodology == "" {
		methodology = c.cfg.Methodology
	}
	if series.IsEmpty() {
		return domain.UndefinedProfile(c.cfg.Windows, methodology, domain.ReasonNoData)
	}

	profile := domain.ReturnProfile{
		FirstDate:   series.First().Date,
		LastDate:    series.Last().Date,
		Methodology: methodology,
		Points:      series.Len(),
		Windows:     make(domain.Returns, 0, len(c.cfg.Windows)),
	}
	for _, w := range c.cfg.Windows {
		profile.Windows = append(profile.Windows, c.Window(series, w, methodology))
	}
	return profile
}

// Window computes a single window's return
func (c *Calculator) Window(series domain.ValuationSeries, w domain.ReturnWindow, methodology domain.Methodology) domain.WindowReturn {
	result := domain.WindowReturn{Label: w.Label, LookbackDays: w.LookbackDays}
	if series.IsEmpty() {
		result.Reason = domain.ReasonNoData
		return result
	}

	end := series.Last()
	target := end.Date.AddDate(0, 0, -w.LookbackDays)
	if target.Before(series.First().Date) {
		result.Reason = domain.ReasonInsufficientHistory
		return result
	}

	short := w.LookbackDays <= c.cfg.ShortWindowDays
	var (
		rate   *float64
		method domain.ReturnMethod
		err    error
	)
	if methodology == domain.MethodologyLumpsum || (short && c.cfg.LumpsumShortWindows) {
		rate, method, err = c.lumpsum(series, target, short)
	} else {
		rate, method, err = c.periodic(series, target, short)
	}

	if err != nil {
		result.Reason = reasonFor(err)
		c.log.Debug().
			Str("window", w.Label).
			Err(err).
			Msg("Window undefined")
		return result
	}

	result.Method = method
	result.Value = formulas.RoundPercent(rate)
	if result.Value == nil {
		result.Reason = domain.ReasonInvalidValue
	}
	return result
}

// lumpsum measures a single investment at the anchor held to the series end
func (c *Calculator) lumpsum(series domain.ValuationSeries, target time.Time, short bool) (*float64, domain.ReturnMethod, error) {
	anchor, err := ResolveAnchor(series, target)
	if err != nil {
		return nil, domain.MethodNone, err
	}
	end := series.Last()

	if short {
		return formulas.AbsoluteReturn(anchor.Value, end.Value), domain.MethodAbsolute, nil
	}
	elapsed := float64(domain.DaysBetween(anchor.Date, end.Date))
	return formulas.CalculateCAGR(anchor.Value, end.Value, elapsed), domain.MethodCAGR, nil
}

// periodic simulates monthly contributions from target to the series end
func (c *Calculator) periodic(series domain.ValuationSeries, target time.Time, short bool) (*float64, domain.ReturnMethod, error) {
	sim, err := c.simulator.Simulate(series, target)
	if err != nil {
		return nil, domain.MethodNone, err
	}

	if short {
		return formulas.ContributionReturn(sim.TotalInvested, sim.FinalValue), domain.MethodSIPAbsolute, nil
	}
	rate, err := c.solver.Solve(sim.Cashflows)
	if err != nil {
		return nil, domain.MethodNone, err
	}
	return &rate, domain.MethodXIRR, nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, ErrEmptySeries):
		return domain.ReasonNoData
	case errors.Is(err, ErrInsufficientHistory):
		return domain.ReasonInsufficientHistory
	case errors.Is(err, ErrNoContributions):
		return domain.ReasonNoContributions
	case errors.Is(err, ErrNoConvergence), errors.Is(err, ErrDegenerateDerivative), errors.Is(err, ErrInvalidCashflows):
		return domain.ReasonNoConvergence
	default:
		return domain.ReasonInvalidValue
	}
}
