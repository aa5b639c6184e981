// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// ProductType represents the type of fund product
type ProductType string

const (
	// ProductTypeETF represents Exchange Traded Funds
	ProductTypeETF ProductType = "ETF"
	// ProductTypeMutualFund represents open-ended mutual fund schemes
	ProductTypeMutualFund ProductType = "Mutual Fund"
)

// ProductTypeFromOption derives the product type from a scheme's option label.
// Any option mentioning ETF (case-insensitive) is an ETF, everything else a mutual fund.
func ProductTypeFromOption(option string) ProductType {
	if strings.Contains(strings.ToUpper(option), "ETF") {
		return ProductTypeETF
	}
	return ProductTypeMutualFund
}

// Methodology selects how a window's return is computed
type Methodology string

const (
	// MethodologyLumpsum computes absolute return (short windows) or CAGR (long windows)
	// on a single investment made at the window start
	MethodologyLumpsum Methodology = "lumpsum"
	// MethodologyPeriodic simulates fixed monthly contributions and solves XIRR
	MethodologyPeriodic Methodology = "periodic"
)

// ParseMethodology parses a methodology name. Empty input yields the periodic default.
func ParseMethodology(s string) (Methodology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "periodic", "sip":
		return MethodologyPeriodic, nil
	case "lumpsum", "lump_sum":
		return MethodologyLumpsum, nil
	default:
		return "", fmt.Errorf("unknown methodology: %q", s)
	}
}

// Fund holds the identifying metadata of a fund. It is passed through the
// return engine untouched.
type Fund struct {
	SchemeCode string      `json:"scheme_code"`
	SchemeName string      `json:"scheme_name"`
	Type       ProductType `json:"type"`
	Plan       string      `json:"plan,omitempty"`
	Option     string      `json:"option,omitempty"`
	Category   string      `json:"category,omitempty"`
	FundHouse  string      `json:"fund_house,omitempty"`
}

// FundHistory is a fund's raw valuation history as delivered by the data provider
type FundHistory struct {
	FetchedAt  time.Time  `json:"fetched_at" msgpack:"fetched_at"`
	SchemeCode string     `json:"scheme_code" msgpack:"scheme_code"`
	SchemeName string     `json:"scheme_name" msgpack:"scheme_name"`
	Category   string     `json:"category" msgpack:"category"`
	FundHouse  string     `json:"fund_house" msgpack:"fund_house"`
	SchemeType string     `json:"scheme_type" msgpack:"scheme_type"`
	Points     []RawPoint `json:"points" msgpack:"points"`
}

// FundReturns is the computed return profile of one fund in a batch.
// Err is set when the fund could not be processed; Profile is then all-undefined.
type FundReturns struct {
	UpdatedAt time.Time     `json:"updated_at"`
	Fund      Fund          `json:"fund"`
	Profile   ReturnProfile `json:"profile"`
	Err       error         `json:"-"`
}

// Failed reports whether the fund could not be processed
func (f FundReturns) Failed() bool {
	return f.Err != nil
}
