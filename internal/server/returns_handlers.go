package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/navreturns/internal/clients/mfapi"
	"github.com/aristath/navreturns/internal/domain"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/modules/returns"
	"github.com/aristath/navreturns/internal/utils"
	"github.com/aristath/navreturns/internal/work/batch"
)

// maxComputeBody bounds the request body of the compute endpoint
const maxComputeBody = 8 << 20

// ComputeRequest is the body of POST /api/returns/compute
type ComputeRequest struct {
	Methodology string         `json:"methodology"`
	Points      []ComputePoint `json:"points"`
}

// ComputePoint is one dated valuation of a compute request
type ComputePoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ProfileResponse is a computed profile with its per-window details
type ProfileResponse struct {
	Fund    *domain.Fund          `json:"fund,omitempty"`
	Profile domain.ReturnProfile  `json:"profile"`
	Details []domain.WindowReturn `json:"details"`
}

// ReturnsHandlers serves on-demand return computations
type ReturnsHandlers struct {
	calc    *returns.Calculator
	runner  *batch.Runner
	results *funds.Repository
	log     zerolog.Logger
}

// NewReturnsHandlers creates the return computation handlers
func NewReturnsHandlers(calc *returns.Calculator, runner *batch.Runner, results *funds.Repository, log zerolog.Logger) *ReturnsHandlers {
	return &ReturnsHandlers{
		calc:    calc,
		runner:  runner,
		results: results,
		log:     log.With().Str("handler", "returns").Logger(),
	}
}

// HandleCompute computes a profile from the posted series without fetching
// POST /api/returns/compute
func (h *ReturnsHandlers) HandleCompute(w http.ResponseWriter, r *http.Request) {
	defer utils.OperationTimer("compute_series", h.log)()

	var req ComputeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxComputeBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	methodology, err := h.methodology(req.Methodology)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	profile := h.calc.ComputeWith(parsePoints(req.Points), methodology)
	writeData(w, http.StatusOK, ProfileResponse{Profile: profile, Details: profile.Details()}, h.log)
}

// HandleFundReturns fetches one fund's history and computes its profile
// GET /api/funds/{code}/returns?methodology=lumpsum
func (h *ReturnsHandlers) HandleFundReturns(w http.ResponseWriter, r *http.Request) {
	defer utils.OperationTimer("compute_fund", h.log)()

	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if code == "" {
		http.Error(w, "Scheme code is required", http.StatusBadRequest)
		return
	}

	methodology, err := h.methodology(r.URL.Query().Get("methodology"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fund := domain.Fund{SchemeCode: code}
	if h.results != nil {
		if stored, err := h.results.Get(code); err != nil {
			h.log.Warn().Err(err).Str("scheme_code", code).Msg("Failed to load stored fund")
		} else if stored != nil {
			fund = stored.Fund
		}
	}

	res := h.runner.ComputeFund(r.Context(), fund, methodology)
	if res.Err != nil {
		status := fetchErrorStatus(res.Err)
		h.log.Error().Err(res.Err).Str("scheme_code", code).Int("status", status).Msg("Failed to compute fund returns")
		http.Error(w, fmt.Sprintf("Failed to compute returns: %v", res.Err), status)
		return
	}

	writeData(w, http.StatusOK, ProfileResponse{
		Fund:    &res.Fund,
		Profile: res.Profile,
		Details: res.Profile.Details(),
	}, h.log)
}

// methodology parses a requested methodology; empty means the configured one
func (h *ReturnsHandlers) methodology(name string) (domain.Methodology, error) {
	if strings.TrimSpace(name) == "" {
		return h.calc.Config().Methodology, nil
	}
	return domain.ParseMethodology(name)
}

// fetchErrorStatus maps a per-fund failure to an HTTP status
func fetchErrorStatus(err error) int {
	switch {
	case errors.Is(err, mfapi.ErrNoData), errors.Is(err, batch.ErrNoValidPoints):
		return http.StatusNotFound
	case errors.Is(err, mfapi.ErrBadStatus):
		return http.StatusBadGateway
	default:
		return http.StatusServiceUnavailable
	}
}

// parsePoints keeps unparseable dates as zero-date points so normalization
// drops them like any other invalid row
func parsePoints(points []ComputePoint) []domain.RawPoint {
	raw := make([]domain.RawPoint, 0, len(points))
	for _, p := range points {
		point := domain.RawPoint{Value: p.Value}
		if date, err := time.Parse(domain.DateLayout, strings.TrimSpace(p.Date)); err == nil {
			point.Date = date
		}
		raw = append(raw, point)
	}
	return raw
}
