// Package formulas provides the return formulas used by the return engine.
package formulas

import "math"

// DaysPerYear is the actual/365 day count used for annualization
const DaysPerYear = 365.0

// MinElapsedDays replaces a zero elapsed period so annualization never divides by zero
const MinElapsedDays = 1e-6

// AbsoluteReturn calculates the simple return between two valuations
//
// Formula: (end - start) / start
//
// Returns:
//
//	Return as decimal (e.g., 0.05 = 5%) or nil if either valuation is not positive
func AbsoluteReturn(start, end float64) *float64 {
	if !positive(start) || !positive(end) {
		return nil
	}

	result := (end - start) / start
	return &result
}

// CalculateCAGR calculates Compound Annual Growth Rate between two valuations
// that are elapsedDays apart.
//
// Formula: CAGR = (end / start)^(365 / elapsedDays) - 1
//
// An elapsed period of zero (or less) is treated as MinElapsedDays.
//
// Returns:
//
//	CAGR as decimal (e.g., 0.11 = 11%) or nil if the result is not a finite number
func CalculateCAGR(start, end float64, elapsedDays float64) *float64 {
	if !positive(start) || !positive(end) {
		return nil
	}

	if elapsedDays <= 0 {
		elapsedDays = MinElapsedDays
	}

	cagr := math.Pow(end/start, DaysPerYear/elapsedDays) - 1
	if math.IsNaN(cagr) || math.IsInf(cagr, 0) {
		return nil
	}
	return &cagr
}

// ContributionReturn calculates the return on a set of contributions
// Formula: finalValue / invested - 1
func ContributionReturn(invested, finalValue float64) *float64 {
	if !positive(invested) || finalValue < 0 || math.IsNaN(finalValue) || math.IsInf(finalValue, 0) {
		return nil
	}

	result := finalValue/invested - 1
	return &result
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}
