package returns

import "errors"

var (
	// ErrEmptySeries is returned when a series has no valid points
	ErrEmptySeries = errors.New("valuation series is empty")
	// ErrInsufficientHistory is returned when a target date precedes the series or no point follows it
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrNoContributions is returned when no contribution could be executed in a window
	ErrNoContributions = errors.New("no contributions executed")
	// ErrInvalidCashflows is returned when cashflows lack a negative or a positive amount
	ErrInvalidCashflows = errors.New("cashflows need at least one negative and one positive amount")
	// ErrDegenerateDerivative is returned when the NPV derivative vanishes
	ErrDegenerateDerivative = errors.New("npv derivative is zero")
	// ErrNoConvergence is returned when the rate solver does not converge
	ErrNoConvergence = errors.New("rate solver did not converge")
)
