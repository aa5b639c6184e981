package formulas

import (
	"math"

	"github.com/shopspring/decimal"
)

// PercentPlaces is the number of decimals kept on reported percentages
const PercentPlaces = 2

// RoundPercent converts a decimal rate to a percentage rounded to two
// decimal places, half away from zero (0.123456 -> 12.35).
// Returns nil for nil, NaN or infinite input.
func RoundPercent(rate *float64) *float64 {
	if rate == nil || math.IsNaN(*rate) || math.IsInf(*rate, 0) {
		return nil
	}

	pct, _ := decimal.NewFromFloat(*rate).
		Mul(decimal.NewFromInt(100)).
		Round(PercentPlaces).
		Float64()
	return &pct
}

// Round rounds v to the given number of decimal places, half away from zero
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	out, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return out
}
