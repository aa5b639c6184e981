package domain

import (
	"math"
	"sort"
	"time"
)

// DateLayout is the canonical calendar date format used in storage and APIs
const DateLayout = "2006-01-02"

// RawPoint is an unvalidated (date, value) pair from an external source.
// A zero Date marks a missing or unparsable date; NaN marks a non-numeric value.
type RawPoint struct {
	Date  time.Time `json:"date" msgpack:"d"`
	Value float64   `json:"value" msgpack:"v"`
}

// Valid reports whether the point can enter a ValuationSeries
func (p RawPoint) Valid() bool {
	return !p.Date.IsZero() && !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) && p.Value > 0
}

// ValuationPoint is a per-unit valuation (NAV) on a calendar date
type ValuationPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Day truncates t to its calendar date at UTC midnight, keeping t's own
// year/month/day regardless of its location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of calendar days from a to b (negative if b is before a)
func DaysBetween(a, b time.Time) int {
	return int(math.Round(Day(b).Sub(Day(a)).Hours() / 24))
}

// ValuationSeries is an ascending, date-unique sequence of strictly positive
// valuations. The zero value is an empty series. A series never exposes its
// backing storage, so it is safe to share between goroutines.
type ValuationSeries struct {
	points []ValuationPoint
}

// NewValuationSeries builds a series from arbitrary points: invalid points are
// discarded, dates are truncated to the day, points are sorted ascending and
// only the first occurrence of a duplicated date is kept.
func NewValuationSeries(points []ValuationPoint) ValuationSeries {
	clean := make([]ValuationPoint, 0, len(points))
	for _, p := range points {
		if !(RawPoint{Date: p.Date, Value: p.Value}).Valid() {
			continue
		}
		clean = append(clean, ValuationPoint{Date: Day(p.Date), Value: p.Value})
	}

	// Stable so that "first occurrence" refers to input order
	sort.SliceStable(clean, func(i, j int) bool {
		return clean[i].Date.Before(clean[j].Date)
	})

	out := clean[:0]
	for i, p := range clean {
		if i > 0 && p.Date.Equal(out[len(out)-1].Date) {
			continue
		}
		out = append(out, p)
	}

	return ValuationSeries{points: out}
}

// SeriesFromRaw builds a series from raw points, dropping the invalid ones
func SeriesFromRaw(raw []RawPoint) ValuationSeries {
	points := make([]ValuationPoint, 0, len(raw))
	for _, r := range raw {
		if !r.Valid() {
			continue
		}
		points = append(points, ValuationPoint{Date: r.Date, Value: r.Value})
	}
	return NewValuationSeries(points)
}

// Len returns the number of points
func (s ValuationSeries) Len() int {
	return len(s.points)
}

// IsEmpty reports whether the series has no points
func (s ValuationSeries) IsEmpty() bool {
	return len(s.points) == 0
}

// At returns the i-th point in ascending date order
func (s ValuationSeries) At(i int) ValuationPoint {
	return s.points[i]
}

// First returns the earliest point. It panics on an empty series.
func (s ValuationSeries) First() ValuationPoint {
	return s.points[0]
}

// Last returns the latest point. It panics on an empty series.
func (s ValuationSeries) Last() ValuationPoint {
	return s.points[len(s.points)-1]
}

// Points returns a copy of the points in ascending date order
func (s ValuationSeries) Points() []ValuationPoint {
	out := make([]ValuationPoint, len(s.points))
	copy(out, s.points)
	return out
}

// SpanDays returns the number of days between the first and last point
func (s ValuationSeries) SpanDays() int {
	if len(s.points) == 0 {
		return 0
	}
	return DaysBetween(s.First().Date, s.Last().Date)
}

// ReturnWindow is a trailing lookback period
type ReturnWindow struct {
	Label        string `json:"label"`
	LookbackDays int    `json:"lookback_days"`
}

// DefaultWindows returns the standard 1M..10Y window catalog
func DefaultWindows() []ReturnWindow {
	return []ReturnWindow{
		{Label: "1M", LookbackDays: 30},
		{Label: "3M", LookbackDays: 90},
		{Label: "6M", LookbackDays: 180},
		{Label: "1Y", LookbackDays: 365},
		{Label: "3Y", LookbackDays: 365 * 3},
		{Label: "5Y", LookbackDays: 365 * 5},
		{Label: "7Y", LookbackDays: 365 * 7},
		{Label: "10Y", LookbackDays: 365 * 10},
	}
}

// Cashflow is a dated amount: negative for contributions, positive for redemption value
type Cashflow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// SplitDirection tells whether a discontinuity was a split or a consolidation
type SplitDirection string

const (
	// SplitForward is a unit split: the valuation dropped by the factor
	SplitForward SplitDirection = "forward"
	// SplitReverse is a consolidation: the valuation jumped by the factor
	SplitReverse SplitDirection = "reverse"
)

// SplitEvent records one corrected discontinuity
type SplitEvent struct {
	Date      time.Time      `json:"date"`
	Direction SplitDirection `json:"direction"`
	Index     int            `json:"index"`
	Factor    float64        `json:"factor"`
	Before    float64        `json:"before"`
	After     float64        `json:"after"`
}
