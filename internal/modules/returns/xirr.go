package returns

import (
	"math"

	"github.com/aristath/navreturns/internal/domain"
)

// RateSolver finds the annualized internal rate of return (XIRR) of irregular
// cashflows with Newton-Raphson on an actual/365 day count.
type RateSolver struct {
	cfg SolverConfig
}

// NewRateSolver creates a solver
func NewRateSolver(cfg SolverConfig) *RateSolver {
	return &RateSolver{cfg: cfg}
}

// Solve returns r such that sum(amount_i / (1+r)^(days_i/365)) = 0, where days_i
// counts from the first cashflow's date. The rate is a decimal (0.12 = 12%).
//
// Cashflows must be in date order and contain at least one negative and one
// positive amount.
func (s *RateSolver) Solve(flows []domain.Cashflow) (float64, error) {
	if err := validateCashflows(flows); err != nil {
		return 0, err
	}

	base := flows[0].Date
	years := make([]float64, len(flows))
	for i, f := range flows {
		years[i] = float64(domain.DaysBetween(base, f.Date)) / 365.0
	}

	rate := s.cfg.InitialGuess
	for iter := 0; iter < s.cfg.MaxIterations; iter++ {
		npv, derivative := npvAndDerivative(flows, years, rate)
		if derivative == 0 || math.IsNaN(derivative) {
			return 0, ErrDegenerateDerivative
		}

		next := rate - npv/derivative
		if math.IsNaN(next) || math.IsInf(next, 0) {
			return 0, ErrNoConvergence
		}
		// (1+r)^t is undefined at or below r = -1; halve the distance instead
		if next <= -1 {
			next = (rate - 1) / 2
		}
		if math.Abs(next-rate) < s.cfg.Tolerance {
			return next, nil
		}
		rate = next
	}

	if s.cfg.AcceptUnconverged {
		return rate, nil
	}
	return 0, ErrNoConvergence
}

func npvAndDerivative(flows []domain.Cashflow, years []float64, rate float64) (float64, float64) {
	var npv, derivative float64
	base := 1 + rate
	for i, f := range flows {
		t := years[i]
		npv += f.Amount / math.Pow(base, t)
		derivative += -f.Amount * t / math.Pow(base, t+1)
	}
	return npv, derivative
}

func validateCashflows(flows []domain.Cashflow) error {
	if len(flows) < 2 {
		return ErrInvalidCashflows
	}
	hasNeg, hasPos := false, false
	for _, f := range flows {
		if math.IsNaN(f.Amount) || math.IsInf(f.Amount, 0) {
			return ErrInvalidCashflows
		}
		if f.Amount < 0 {
			hasNeg = true
		}
		if f.Amount > 0 {
			hasPos = true
		}
	}
	if !hasNeg || !hasPos {
		return ErrInvalidCashflows
	}
	return nil
}
