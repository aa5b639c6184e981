package returns

import (
	"time"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/rs/zerolog"
)

var testStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dailyRaw builds n consecutive daily points starting at start
func dailyRaw(start time.Time, n int, value func(i int) float64) []domain.RawPoint {
	out := make([]domain.RawPoint, n)
	for i := range out {
		out[i] = domain.RawPoint{Date: start.AddDate(0, 0, i), Value: value(i)}
	}
	return out
}

func seriesOf(values ...float64) domain.ValuationSeries {
	return domain.SeriesFromRaw(dailyRaw(testStart, len(values), func(i int) float64 { return values[i] }))
}

func values(s domain.ValuationSeries) []float64 {
	out := make([]float64, s.Len())
	for i, p := range s.Points() {
		out[i] = p.Value
	}
	return out
}
