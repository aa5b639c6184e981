package funds

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aristath/navreturns/internal/domain"
)

// Record is the export shape of one fund's results
type Record struct {
	SchemeCode  string              `json:"scheme_code"`
	SchemeName  string              `json:"scheme_name"`
	Type        domain.ProductType  `json:"type"`
	Plan        string              `json:"plan"`
	Option      string              `json:"option"`
	Category    string              `json:"category,omitempty"`
	Methodology domain.Methodology  `json:"methodology"`
	Returns     domain.Returns      `json:"returns"`
	Splits      []domain.SplitEvent `json:"splits,omitempty"`
	Error       string              `json:"error,omitempty"`
	UpdatedAt   string              `json:"updated_at"`
}

// NewRecord flattens a fund result for export
func NewRecord(r domain.FundReturns) Record {
	rec := Record{
		SchemeCode:  r.Fund.SchemeCode,
		SchemeName:  r.Fund.SchemeName,
		Type:        r.Fund.Type,
		Plan:        r.Fund.Plan,
		Option:      r.Fund.Option,
		Category:    r.Fund.Category,
		Methodology: r.Profile.Methodology,
		Returns:     r.Profile.Windows,
		Splits:      r.Profile.Splits,
		UpdatedAt:   r.UpdatedAt.Format(domain.DateLayout),
	}
	if rec.Returns == nil {
		rec.Returns = domain.Returns{}
	}
	if r.Err != nil {
		rec.Error = r.Err.Error()
	}
	return rec
}

// ReturnColumn is the export column name for a window label
func ReturnColumn(label string) string {
	return "return_" + strings.ToLower(label)
}

// exportLabels returns the window labels of the batch, in catalog order
func exportLabels(results []domain.FundReturns) []string {
	for _, r := range results {
		if len(r.Profile.Windows) > 0 {
			labels := make([]string, len(r.Profile.Windows))
			for i, w := range r.Profile.Windows {
				labels[i] = w.Label
			}
			return labels
		}
	}

	windows := domain.DefaultWindows()
	labels := make([]string, len(windows))
	for i, w := range windows {
		labels[i] = w.Label
	}
	return labels
}

// CSVHeader returns the export header for the given window labels
func CSVHeader(labels []string) []string {
	header := []string{"scheme_code", "scheme_name", "type", "plan", "option"}
	for _, l := range labels {
		header = append(header, ReturnColumn(l))
	}
	return append(header, "results_json", "updated_at")
}

// WriteCSV writes one row per fund. Undefined returns are empty cells.
func WriteCSV(w io.Writer, results []domain.FundReturns) error {
	labels := exportLabels(results)
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader(labels)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, r := range results {
		resultsJSON, err := json.Marshal(r.Profile.Windows)
		if err != nil {
			return fmt.Errorf("scheme %s: failed to encode results: %w", r.Fund.SchemeCode, err)
		}

		row := []string{
			r.Fund.SchemeCode,
			r.Fund.SchemeName,
			string(r.Fund.Type),
			r.Fund.Plan,
			r.Fund.Option,
		}
		for _, label := range labels {
			row = append(row, formatValue(r.Profile.Get(label)))
		}
		row = append(row, string(resultsJSON), r.UpdatedAt.Format(domain.DateLayout))

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("scheme %s: %w", r.Fund.SchemeCode, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteJSON writes the results as an indented JSON array
func WriteJSON(w io.Writer, results []domain.FundReturns) error {
	records := make([]Record, len(results))
	for i, r := range results {
		records[i] = NewRecord(r)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	return nil
}

func formatValue(v *float64, ok bool) string {
	if !ok || v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
