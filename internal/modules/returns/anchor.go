package returns

import (
	"sort"
	"time"

	"github.com/aristath/navreturns/internal/domain"
)

// Ceiling returns the first point dated on or after t (binary search).
// ok is false when every point precedes t.
func Ceiling(series domain.ValuationSeries, t time.Time) (point domain.ValuationPoint, ok bool) {
	day := domain.Day(t)
	n := series.Len()
	i := sort.Search(n, func(i int) bool {
		return !series.At(i).Date.Before(day)
	})
	if i == n {
		return domain.ValuationPoint{}, false
	}
	return series.At(i), true
}

// ResolveAnchor maps a window start date to the point the window is measured from.
// It fails with ErrInsufficientHistory when t precedes the first point or follows
// the last one.
func ResolveAnchor(series domain.ValuationSeries, t time.Time) (domain.ValuationPoint, error) {
	if series.IsEmpty() {
		return domain.ValuationPoint{}, ErrEmptySeries
	}
	if domain.Day(t).Before(series.First().Date) {
		return domain.ValuationPoint{}, ErrInsufficientHistory
	}
	point, ok := Ceiling(series, t)
	if !ok {
		return domain.ValuationPoint{}, ErrInsufficientHistory
	}
	return point, nil
}
