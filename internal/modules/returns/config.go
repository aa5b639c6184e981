// Package returns computes trailing-window return profiles from a fund's
// valuation series. It is pure: no I/O, no shared mutable state.
package returns

import (
	"errors"
	"fmt"

	"github.com/aristath/navreturns/internal/domain"
)

// Engine defaults
const (
	DefaultSplitTolerance     = 0.05
	DefaultContributionAmount = 10000.0
	DefaultContributionDay    = 1
	DefaultShortWindowDays    = 365

	DefaultInitialGuess  = 0.1
	DefaultMaxIterations = 100
	DefaultTolerance     = 1e-6
)

// DefaultSplitFactors are the split ratios recognized by the normalizer, ascending
var DefaultSplitFactors = []float64{2, 3, 4, 5, 10, 50, 100}

// SolverConfig configures the Newton-Raphson rate solver
type SolverConfig struct {
	InitialGuess  float64
	MaxIterations int
	Tolerance     float64
	// AcceptUnconverged returns the last iterate instead of ErrNoConvergence
	// when MaxIterations is exhausted.
	AcceptUnconverged bool
}

// EngineConfig is the immutable configuration of the return engine.
// Copy it with Clone before modifying shared slices.
type EngineConfig struct {
	Windows            []domain.ReturnWindow
	SplitFactors       []float64
	SplitTolerance     float64
	ContributionAmount float64
	ContributionDay    int
	Methodology        domain.Methodology
	// ShortWindowDays is the longest window reported as a plain (non-annualized) return
	ShortWindowDays int
	// LumpsumShortWindows makes short windows use the lumpsum ratio under the
	// periodic methodology instead of the contribution ratio.
	LumpsumShortWindows bool
	Solver              SolverConfig
}

// DefaultEngineConfig returns the standard configuration: the 1M..10Y catalog,
// 10000 contributed on the 1st of every month, periodic methodology.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Windows:            domain.DefaultWindows(),
		SplitFactors:       append([]float64(nil), DefaultSplitFactors...),
		SplitTolerance:     DefaultSplitTolerance,
		ContributionAmount: DefaultContributionAmount,
		ContributionDay:    DefaultContributionDay,
		Methodology:        domain.MethodologyPeriodic,
		ShortWindowDays:    DefaultShortWindowDays,
		Solver: SolverConfig{
			InitialGuess:  DefaultInitialGuess,
			MaxIterations: DefaultMaxIterations,
			Tolerance:     DefaultTolerance,
		},
	}
}

// Clone returns a deep copy of the configuration
func (c EngineConfig) Clone() EngineConfig {
	out := c
	out.Windows = append([]domain.ReturnWindow(nil), c.Windows...)
	out.SplitFactors = append([]float64(nil), c.SplitFactors...)
	return out
}

// Validate checks the configuration for values the engine cannot work with
func (c EngineConfig) Validate() error {
	var errs []error

	if len(c.Windows) == 0 {
		errs = append(errs, errors.New("at least one window is required"))
	}
	seen := make(map[string]bool, len(c.Windows))
	for _, w := range c.Windows {
		if w.Label == "" {
			errs = append(errs, errors.New("window label must not be empty"))
		}
		if w.LookbackDays <= 0 {
			errs = append(errs, fmt.Errorf("window %s: lookback days must be positive", w.Label))
		}
		if seen[w.Label] {
			errs = append(errs, fmt.Errorf("window %s: duplicate label", w.Label))
		}
		seen[w.Label] = true
	}

	for i, f := range c.SplitFactors {
		if f <= 1 {
			errs = append(errs, fmt.Errorf("split factor %v must be greater than 1", f))
		}
		if i > 0 && f <= c.SplitFactors[i-1] {
			errs = append(errs, errors.New("split factors must be strictly ascending"))
		}
	}
	if c.SplitTolerance < 0 || c.SplitTolerance >= 1 {
		errs = append(errs, fmt.Errorf("split tolerance %v out of range [0, 1)", c.SplitTolerance))
	}

	if c.ContributionAmount <= 0 {
		errs = append(errs, errors.New("contribution amount must be positive"))
	}
	if c.ContributionDay < 1 || c.ContributionDay > 31 {
		errs = append(errs, fmt.Errorf("contribution day %d out of range 1..31", c.ContributionDay))
	}

	switch c.Methodology {
	case domain.MethodologyLumpsum, domain.MethodologyPeriodic:
	default:
		errs = append(errs, fmt.Errorf("unknown methodology %q", c.Methodology))
	}

	if c.ShortWindowDays < 0 {
		errs = append(errs, errors.New("short window days must not be negative"))
	}
	if c.Solver.MaxIterations <= 0 {
		errs = append(errs, errors.New("solver max iterations must be positive"))
	}
	if c.Solver.Tolerance <= 0 {
		errs = append(errs, errors.New("solver tolerance must be positive"))
	}
	if c.Solver.InitialGuess <= -1 {
		errs = append(errs, errors.New("solver initial guess must be greater than -1"))
	}

	return errors.Join(errs...)
}
