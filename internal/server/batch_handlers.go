package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/navreturns/internal/events"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/scheduler"
	"github.com/aristath/navreturns/internal/work/batch"
)

// streamWriteTimeout bounds a single websocket write
const streamWriteTimeout = 5 * time.Second

// BatchHandlers triggers batch refreshes and streams their progress
type BatchHandlers struct {
	ctx     context.Context
	runner  *batch.Runner
	job     *scheduler.RefreshJob
	results *funds.Repository
	hub     *events.Hub
	pending atomic.Bool
	log     zerolog.Logger
}

// NewBatchHandlers creates the batch handlers. Triggered refreshes run in ctx,
// so cancelling it interrupts them.
func NewBatchHandlers(
	ctx context.Context,
	runner *batch.Runner,
	job *scheduler.RefreshJob,
	results *funds.Repository,
	hub *events.Hub,
	log zerolog.Logger,
) *BatchHandlers {
	return &BatchHandlers{
		ctx:     ctx,
		runner:  runner,
		job:     job,
		results: results,
		hub:     hub,
		log:     log.With().Str("handler", "batch").Logger(),
	}
}

// HandleTrigger starts a refresh in the background
// POST /api/batch
func (h *BatchHandlers) HandleTrigger(w http.ResponseWriter, r *http.Request) {
	if h.job == nil {
		http.Error(w, "Refresh job not configured", http.StatusServiceUnavailable)
		return
	}

	if h.runner.Running() || !h.pending.CompareAndSwap(false, true) {
		http.Error(w, "A batch run is already in progress", http.StatusConflict)
		return
	}

	go func() {
		defer h.pending.Store(false)

		if _, err := h.job.Execute(h.ctx); err != nil {
			if errors.Is(err, batch.ErrAlreadyRunning) {
				h.log.Warn().Msg("Triggered refresh skipped, batch already running")
				return
			}
			h.log.Error().Err(err).Msg("Triggered refresh failed")
		}
	}()

	h.log.Info().Msg("Refresh triggered")
	writeData(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "Refresh started",
	}, h.log)
}

// HandleLatest returns the most recent recorded batch run
// GET /api/batch/latest
func (h *BatchHandlers) HandleLatest(w http.ResponseWriter, r *http.Request) {
	run, err := h.results.LatestRun()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to get latest run")
		http.Error(w, "Failed to get latest run", http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "No batch run recorded", http.StatusNotFound)
		return
	}

	writeData(w, http.StatusOK, map[string]interface{}{
		"run":         run,
		"running":     h.runner.Running(),
		"duration_ms": float64(run.Duration().Microseconds()) / 1000,
	}, h.log)
}

// HandleStream streams batch events over a websocket until the client leaves
// GET /api/batch/stream
func (h *BatchHandlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ch, cancel := h.hub.Subscribe(events.DefaultBuffer)
	defer cancel()

	// Client messages are ignored; CloseRead cancels ctx when the peer goes away
	ctx := conn.CloseRead(r.Context())
	h.log.Debug().Int("subscribers", h.hub.Subscribers()).Msg("Batch stream opened")

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Batch stream closed by client")
			return
		case <-h.ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error().Err(err).Str("type", string(event.Type)).Msg("Failed to marshal event")
				continue
			}

			writeCtx, writeCancel := context.WithTimeout(ctx, streamWriteTimeout)
			err = conn.Write(writeCtx, websocket.MessageText, data)
			writeCancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("Batch stream write failed")
				return
			}
		}
	}
}
