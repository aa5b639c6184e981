package returns

import (
	"time"

	"github.com/aristath/navreturns/internal/domain"
)

// Simulation is the outcome of a periodic contribution schedule
type Simulation struct {
	// Cashflows holds one -amount flow per executed contribution followed by
	// the terminal valuation at the series' last date.
	Cashflows     []domain.Cashflow
	Contributions int
	TotalInvested float64
	TotalUnits    float64
	FinalValue    float64
}

// ContributionSimulator builds fixed monthly contribution schedules
type ContributionSimulator struct {
	amount float64
	day    int
}

// NewContributionSimulator creates a simulator contributing amount on the given day of month
func NewContributionSimulator(amount float64, day int) *ContributionSimulator {
	return &ContributionSimulator{amount: amount, day: day}
}

// ContributionDates returns the nominal contribution dates from start's month
// through end's month: the configured day of each month, skipping months too
// short to have it and dates after end.
func (s *ContributionSimulator) ContributionDates(start, end time.Time) []time.Time {
	start, end = domain.Day(start), domain.Day(end)
	if end.Before(start) {
		return nil
	}

	var dates []time.Time
	month := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !month.After(end) {
		candidate := time.Date(month.Year(), month.Month(), s.day, 0, 0, 0, 0, time.UTC)
		// time.Date normalizes overflow (Feb 30 -> Mar 2); such months have no contribution
		if candidate.Month() == month.Month() && !candidate.After(end) {
			dates = append(dates, candidate)
		}
		month = month.AddDate(0, 1, 0)
	}
	return dates
}

// Simulate runs the schedule over [start, series end]. Each nominal date executes
// at the first valuation on or after it; dates past the series end are skipped.
// Returns ErrNoContributions when nothing executed.
func (s *ContributionSimulator) Simulate(series domain.ValuationSeries, start time.Time) (*Simulation, error) {
	if series.IsEmpty() {
		return nil, ErrEmptySeries
	}
	last := series.Last()

	sim := &Simulation{}
	for _, nominal := range s.ContributionDates(start, last.Date) {
		point, ok := Ceiling(series, nominal)
		if !ok {
			continue
		}
		sim.TotalUnits += s.amount / point.Value
		sim.Contributions++
		sim.Cashflows = append(sim.Cashflows, domain.Cashflow{Date: point.Date, Amount: -s.amount})
	}

	if sim.Contributions == 0 {
		return nil, ErrNoContributions
	}

	sim.TotalInvested = s.amount * float64(sim.Contributions)
	sim.FinalValue = sim.TotalUnits * last.Value
	sim.Cashflows = append(sim.Cashflows, domain.Cashflow{Date: last.Date, Amount: sim.FinalValue})
	return sim, nil
}
