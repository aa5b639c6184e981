package funds

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aristath/navreturns/internal/database"
	"github.com/aristath/navreturns/internal/domain"
	"github.com/rs/zerolog"
)

// Run is a persisted batch run record
type Run struct {
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	ID          string             `json:"id"`
	Methodology domain.Methodology `json:"methodology"`
	OutputFile  string             `json:"output_file,omitempty"`
	Total       int                `json:"total"`
	Succeeded   int                `json:"succeeded"`
	Failed      int                `json:"failed"`
}

// Duration returns how long the run took
func (r Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// storedProfile keeps per-window method and reason, which the label-keyed
// Returns encoding drops
type storedProfile struct {
	FirstDate   time.Time             `json:"first_date"`
	LastDate    time.Time             `json:"last_date"`
	Methodology domain.Methodology    `json:"methodology"`
	Windows     []domain.WindowReturn `json:"windows"`
	Splits      []domain.SplitEvent   `json:"splits,omitempty"`
	Points      int                   `json:"points"`
}

// fundReturnsColumns must match scanFundReturns
const fundReturnsColumns = `scheme_code, scheme_name, type, plan, option, category, fund_house,
methodology, profile, error, run_id, updated_at`

// Repository stores fund results and batch runs in results.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a results repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "fund_returns").Logger(),
	}
}

// Upsert stores the results of one run, replacing earlier rows per scheme
func (r *Repository) Upsert(runID string, results []domain.FundReturns) error {
	query := `
		INSERT INTO fund_returns (` + fundReturnsColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(scheme_code) DO UPDATE SET
			scheme_name = excluded.scheme_name,
			type = excluded.type,
			plan = excluded.plan,
			option = excluded.option,
			category = excluded.category,
			fund_house = excluded.fund_house,
			methodology = excluded.methodology,
			profile = excluded.profile,
			error = excluded.error,
			run_id = excluded.run_id,
			updated_at = excluded.updated_at
	`

	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		stmt, err := tx.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare upsert: %w", err)
		}
		defer stmt.Close()

		for _, res := range results {
			profile, err := encodeProfile(res.Profile)
			if err != nil {
				return fmt.Errorf("scheme %s: %w", res.Fund.SchemeCode, err)
			}
			var errText string
			if res.Err != nil {
				errText = res.Err.Error()
			}

			_, err = stmt.Exec(
				res.Fund.SchemeCode,
				res.Fund.SchemeName,
				string(res.Fund.Type),
				res.Fund.Plan,
				res.Fund.Option,
				res.Fund.Category,
				res.Fund.FundHouse,
				string(res.Profile.Methodology),
				profile,
				errText,
				runID,
				res.UpdatedAt.Unix(),
			)
			if err != nil {
				return fmt.Errorf("scheme %s: failed to upsert: %w", res.Fund.SchemeCode, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.log.Debug().Str("run_id", runID).Int("count", len(results)).Msg("Fund returns stored")
	return nil
}

// Get returns the stored result for a scheme, or nil if there is none
func (r *Repository) Get(schemeCode string) (*domain.FundReturns, error) {
	row := r.db.QueryRow("SELECT "+fundReturnsColumns+" FROM fund_returns WHERE scheme_code = ?", schemeCode)
	res, err := scanFundReturns(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fund returns: %w", err)
	}
	return &res, nil
}

// List returns stored results ordered by scheme code. An empty category lists all.
func (r *Repository) List(category string) ([]domain.FundReturns, error) {
	query := "SELECT " + fundReturnsColumns + " FROM fund_returns"
	var args []interface{}
	if category != "" {
		query += " WHERE category = ?"
		args = append(args, category)
	}
	query += " ORDER BY scheme_code"

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list fund returns: %w", err)
	}
	defer rows.Close()

	var out []domain.FundReturns
	for rows.Next() {
		res, err := scanFundReturns(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fund returns: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fund returns: %w", err)
	}
	return out, nil
}

// Count returns the number of stored results
func (r *Repository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM fund_returns").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fund returns: %w", err)
	}
	return n, nil
}

// RecordRun stores a batch run record
func (r *Repository) RecordRun(run Run) error {
	_, err := r.db.Exec(`
		INSERT OR REPLACE INTO batch_runs
		(id, started_at, finished_at, total, succeeded, failed, methodology, output_file)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.Unix(),
		run.FinishedAt.Unix(),
		run.Total,
		run.Succeeded,
		run.Failed,
		string(run.Methodology),
		run.OutputFile,
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	r.log.Info().
		Str("run_id", run.ID).
		Int("total", run.Total).
		Int("failed", run.Failed).
		Msg("Batch run recorded")
	return nil
}

// LatestRun returns the most recently started run, or nil if none was recorded
func (r *Repository) LatestRun() (*Run, error) {
	var (
		run                   Run
		startedAt, finishedAt int64
		methodology           string
	)
	err := r.db.QueryRow(`
		SELECT id, started_at, finished_at, total, succeeded, failed, methodology, output_file
		FROM batch_runs
		ORDER BY started_at DESC, finished_at DESC
		LIMIT 1
	`).Scan(&run.ID, &startedAt, &finishedAt, &run.Total, &run.Succeeded, &run.Failed, &methodology, &run.OutputFile)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run: %w", err)
	}

	run.StartedAt = time.Unix(startedAt, 0).UTC()
	run.FinishedAt = time.Unix(finishedAt, 0).UTC()
	run.Methodology = domain.Methodology(methodology)
	return &run, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFundReturns(s scanner) (domain.FundReturns, error) {
	var (
		res         domain.FundReturns
		fundType    string
		methodology string
		prof        string
		errText     string
		runID       string
		updatedAt   int64
	)
	err := s.Scan(
		&res.Fund.SchemeCode,
		&res.Fund.SchemeName,
		&fundType,
		&res.Fund.Plan,
		&res.Fund.Option,
		&res.Fund.Category,
		&res.Fund.FundHouse,
		&methodology,
		&prof,
		&errText,
		&runID,
		&updatedAt,
	)
	if err != nil {
		return res, err
	}

	res.Fund.Type = domain.ProductType(fundType)
	res.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if errText != "" {
		res.Err = errors.New(errText)
	}

	profile, err := decodeProfile(prof)
	if err != nil {
		return res, fmt.Errorf("scheme %s: %w", res.Fund.SchemeCode, err)
	}
	if profile.Methodology == "" {
		profile.Methodology = domain.Methodology(methodology)
	}
	res.Profile = profile
	return res, nil
}

func encodeProfile(p domain.ReturnProfile) (string, error) {
	data, err := json.Marshal(storedProfile{
		FirstDate:   p.FirstDate,
		LastDate:    p.LastDate,
		Methodology: p.Methodology,
		Windows:     p.Details(),
		Splits:      p.Splits,
		Points:      p.Points,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode profile: %w", err)
	}
	return string(data), nil
}

func decodeProfile(s string) (domain.ReturnProfile, error) {
	var sp storedProfile
	if err := json.Unmarshal([]byte(s), &sp); err != nil {
		return domain.ReturnProfile{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	return domain.ReturnProfile{
		FirstDate:   sp.FirstDate,
		LastDate:    sp.LastDate,
		Methodology: sp.Methodology,
		Windows:     domain.Returns(sp.Windows),
		Splits:      sp.Splits,
		Points:      sp.Points,
	}, nil
}
