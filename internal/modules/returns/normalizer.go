package returns

import (
	"math"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/rs/zerolog"
)

// SeriesNormalizer cleans raw valuations and corrects split-like discontinuities
type SeriesNormalizer struct {
	factors   []float64
	tolerance float64
	log       zerolog.Logger
}

// NewSeriesNormalizer creates a normalizer testing factors in the given
// (ascending) order with a relative tolerance.
func NewSeriesNormalizer(factors []float64, tolerance float64, log zerolog.Logger) *SeriesNormalizer {
	return &SeriesNormalizer{
		factors:   append([]float64(nil), factors...),
		tolerance: tolerance,
		log:       log.With().Str("component", "series_normalizer").Logger(),
	}
}

// Normalize drops invalid points, sorts, deduplicates and corrects splits
func (n *SeriesNormalizer) Normalize(raw []domain.RawPoint) (domain.ValuationSeries, []domain.SplitEvent) {
	return n.CorrectSplits(domain.SeriesFromRaw(raw))
}

// CorrectSplits returns a new series with every split-like jump rescaled away,
// plus one event per corrected transition. The input series is not modified.
//
// For each consecutive pair, a drop by factor k (prev/curr within tolerance of k)
// scales the current and all later values by k; a jump by k divides them by k.
// Factors are tried in ascending order, the forward test first, and at most one
// correction applies per transition. Later pairs compare against corrected values.
func (n *SeriesNormalizer) CorrectSplits(series domain.ValuationSeries) (domain.ValuationSeries, []domain.SplitEvent) {
	points := series.Points()
	if len(points) < 2 || len(n.factors) == 0 {
		return series, nil
	}

	var events []domain.SplitEvent
	scale := 1.0 // pending correction for points[i:]

	for i := 1; i < len(points); i++ {
		prev := points[i-1].Value
		original := points[i].Value * scale
		curr := original

		if direction, k, ok := n.match(prev, curr); ok {
			if direction == domain.SplitForward {
				scale *= k
				curr *= k
			} else {
				scale /= k
				curr /= k
			}

			events = append(events, domain.SplitEvent{
				Date:      points[i].Date,
				Direction: direction,
				Index:     i,
				Factor:    k,
				Before:    original,
				After:     curr,
			})
			n.log.Debug().
				Str("date", points[i].Date.Format(domain.DateLayout)).
				Str("direction", string(direction)).
				Float64("factor", k).
				Float64("prev", prev).
				Float64("before", original).
				Float64("after", curr).
				Msg("Split corrected")
		}

		points[i].Value = curr
	}

	if len(events) == 0 {
		return series, nil
	}
	return domain.NewValuationSeries(points), events
}

// match finds the first factor explaining the transition prev -> curr
func (n *SeriesNormalizer) match(prev, curr float64) (domain.SplitDirection, float64, bool) {
	if prev <= 0 || curr <= 0 {
		return "", 0, false
	}
	ratio := prev / curr
	reverse := curr / prev

	for _, k := range n.factors {
		if math.Abs(ratio-k)/k < n.tolerance {
			return domain.SplitForward, k, true
		}
	}
	for _, k := range n.factors {
		if math.Abs(reverse-k)/k < n.tolerance {
			return domain.SplitReverse, k, true
		}
	}
	return "", 0, false
}
