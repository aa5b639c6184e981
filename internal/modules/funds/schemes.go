// Package funds handles the fund universe around the return engine: the
// scheme list input, CSV/JSON exports, the results store and category summaries.
package funds

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aristath/navreturns/internal/domain"
)

// Scheme list header columns
const (
	ColSchemeCode = "schemeCode"
	ColSchemeName = "schemeName"
	ColPlan       = "Plan"
	ColOption     = "Option"
)

// ReadSchemes parses a scheme list CSV. Only schemeCode is mandatory in the
// header; rows with an empty code are skipped.
func ReadSchemes(r io.Reader) ([]domain.Fund, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("scheme list is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	if _, ok := index[ColSchemeCode]; !ok {
		return nil, fmt.Errorf("scheme list has no %s column", ColSchemeCode)
	}

	field := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var funds []domain.Fund
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		code := field(record, ColSchemeCode)
		if code == "" {
			continue
		}
		option := field(record, ColOption)
		funds = append(funds, domain.Fund{
			SchemeCode: code,
			SchemeName: field(record, ColSchemeName),
			Type:       domain.ProductTypeFromOption(option),
			Plan:       field(record, ColPlan),
			Option:     option,
		})
	}

	return funds, nil
}
