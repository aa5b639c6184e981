package funds

import (
	"sort"

	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/pkg/formulas"
)

// WindowStats aggregates the defined values of one window across funds.
// Statistics are nil when no fund in the group has a defined value.
type WindowStats struct {
	Mean   *float64 `json:"mean"`
	Median *float64 `json:"median"`
	Min    *float64 `json:"min"`
	Max    *float64 `json:"max"`
	StdDev *float64 `json:"std_dev"`
	Label  string   `json:"label"`
	Count  int      `json:"count"`
}

// CategorySummary aggregates all funds of one category
type CategorySummary struct {
	Category string        `json:"category"`
	Windows  []WindowStats `json:"windows"`
	Funds    int           `json:"funds"`
	Failed   int           `json:"failed"`
}

// CategoryOf returns the grouping key of a fund: its scheme category, or its
// product type when the provider reported none.
func CategoryOf(f domain.Fund) string {
	if f.Category != "" {
		return f.Category
	}
	return string(f.Type)
}

// Summarize groups results by category and aggregates every window.
// Categories are sorted by name.
func Summarize(results []domain.FundReturns) []CategorySummary {
	labels := exportLabels(results)
	groups := make(map[string][]domain.FundReturns)
	for _, r := range results {
		key := CategoryOf(r.Fund)
		groups[key] = append(groups[key], r)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]CategorySummary, 0, len(names))
	for _, name := range names {
		members := groups[name]
		summary := CategorySummary{Category: name, Funds: len(members)}
		for _, m := range members {
			if m.Failed() {
				summary.Failed++
			}
		}
		for _, label := range labels {
			summary.Windows = append(summary.Windows, windowStats(label, members))
		}
		out = append(out, summary)
	}
	return out
}

func windowStats(label string, members []domain.FundReturns) WindowStats {
	var values []float64
	for _, m := range members {
		if v, ok := m.Profile.Get(label); ok && v != nil {
			values = append(values, *v)
		}
	}

	stats := WindowStats{Label: label, Count: len(values)}
	if len(values) == 0 {
		return stats
	}

	lo, hi := formulas.MinMax(values)
	stats.Mean = rounded(formulas.Mean(values))
	stats.Median = rounded(formulas.Median(values))
	stats.Min = rounded(lo)
	stats.Max = rounded(hi)
	if len(values) > 1 {
		stats.StdDev = rounded(formulas.StdDev(values))
	}
	return stats
}

func rounded(v float64) *float64 {
	r := formulas.Round(v, formulas.PercentPlaces)
	return &r
}
