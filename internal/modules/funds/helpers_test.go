package funds

import (
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/aristath/navreturns/internal/domain"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

var testUpdated = time.Date(2024, 5, 3, 10, 30, 0, 0, time.UTC)

func setupResultsDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	schema, err := os.ReadFile("../../database/schemas/results_schema.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)
	return db
}

func ptr(v float64) *float64 { return &v }

// sampleResult builds a result over the default windows; values map labels
// to defined returns, everything else is undefined.
func sampleResult(code, category string, values map[string]float64) domain.FundReturns {
	windows := domain.DefaultWindows()
	profile := domain.UndefinedProfile(windows, domain.MethodologyPeriodic, domain.ReasonInsufficientHistory)
	profile.FirstDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	profile.LastDate = time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	profile.Points = 1000
	for i := range profile.Windows {
		if v, ok := values[profile.Windows[i].Label]; ok {
			profile.Windows[i].Value = ptr(v)
			profile.Windows[i].Method = domain.MethodXIRR
			profile.Windows[i].Reason = ""
		}
	}

	return domain.FundReturns{
		UpdatedAt: testUpdated,
		Fund: domain.Fund{
			SchemeCode: code,
			SchemeName: "Fund " + code,
			Type:       domain.ProductTypeMutualFund,
			Plan:       "Direct",
			Option:     "Growth",
			Category:   category,
		},
		Profile: profile,
	}
}

func failedResult(code string) domain.FundReturns {
	return domain.FundReturns{
		UpdatedAt: testUpdated,
		Fund: domain.Fund{
			SchemeCode: code,
			SchemeName: "Fund " + code,
			Type:       domain.ProductTypeETF,
			Option:     "ETF",
		},
		Profile: domain.UndefinedProfile(domain.DefaultWindows(), domain.MethodologyPeriodic, domain.ReasonNoData),
		Err:     errors.New("fetch scheme " + code + ": no NAV data"),
	}
}
