package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/navreturns/internal/modules/funds"
)

// FundHandlers serves stored batch results
type FundHandlers struct {
	results *funds.Repository
	log     zerolog.Logger
}

// NewFundHandlers creates the stored results handlers
func NewFundHandlers(results *funds.Repository, log zerolog.Logger) *FundHandlers {
	return &FundHandlers{
		results: results,
		log:     log.With().Str("handler", "funds").Logger(),
	}
}

// HandleList returns stored results, optionally filtered by category
// GET /api/funds?category=
func (h *FundHandlers) HandleList(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")

	list, err := h.results.List(category)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list fund returns")
		http.Error(w, "Failed to list fund returns", http.StatusInternalServerError)
		return
	}

	records := make([]funds.Record, len(list))
	for i, res := range list {
		records[i] = funds.NewRecord(res)
	}
	writeData(w, http.StatusOK, records, h.log)
}

// HandleGet returns the stored result of one scheme
// GET /api/funds/{code}
func (h *FundHandlers) HandleGet(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	res, err := h.results.Get(code)
	if err != nil {
		h.log.Error().Err(err).Str("scheme_code", code).Msg("Failed to get fund returns")
		http.Error(w, "Failed to get fund returns", http.StatusInternalServerError)
		return
	}
	if res == nil {
		http.Error(w, "Fund not found", http.StatusNotFound)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"fund":    funds.NewRecord(*res),
		"details": res.Profile.Details(),
	}, h.log)
}

// HandleSummary aggregates stored results per category
// GET /api/summary
func (h *FundHandlers) HandleSummary(w http.ResponseWriter, r *http.Request) {
	list, err := h.results.List("")
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list fund returns")
		http.Error(w, "Failed to summarize fund returns", http.StatusInternalServerError)
		return
	}

	writeData(w, http.StatusOK, funds.Summarize(list), h.log)
}
