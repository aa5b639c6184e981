package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/navreturns/internal/clientdata"
	"github.com/aristath/navreturns/internal/database"
	"github.com/aristath/navreturns/internal/modules/funds"
	"github.com/aristath/navreturns/internal/work/batch"
)

// DatabaseStatus is the health and size of one database
type DatabaseStatus struct {
	Name          string  `json:"name"`
	Error         string  `json:"error,omitempty"`
	SizeMB        float64 `json:"size_mb"`
	WALSizeMB     float64 `json:"wal_size_mb"`
	PageCount     int64   `json:"page_count"`
	FreelistCount int64   `json:"freelist_count"`
	Healthy       bool    `json:"healthy"`
}

// SystemStatusResponse is the body of GET /api/system/status
type SystemStatusResponse struct {
	StartedAt     time.Time        `json:"started_at"`
	Databases     []DatabaseStatus `json:"databases"`
	Uptime        string           `json:"uptime"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	CacheEntries  int64            `json:"cache_entries"`
	StoredResults int64            `json:"stored_results"`
	BatchRunning  bool             `json:"batch_running"`
}

// SystemHandlers reports process and storage status
type SystemHandlers struct {
	startedAt time.Time
	runner    *batch.Runner
	cache     *clientdata.Repository
	results   *funds.Repository
	databases []*database.DB
	log       zerolog.Logger
}

// NewSystemHandlers creates the system status handlers
func NewSystemHandlers(
	runner *batch.Runner,
	cache *clientdata.Repository,
	results *funds.Repository,
	databases []*database.DB,
	log zerolog.Logger,
) *SystemHandlers {
	return &SystemHandlers{
		startedAt: time.Now(),
		runner:    runner,
		cache:     cache,
		results:   results,
		databases: databases,
		log:       log.With().Str("handler", "system").Logger(),
	}
}

// HandleSystemStatus returns process, cache and database status
// GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	resp := SystemStatusResponse{
		StartedAt:     h.startedAt,
		Uptime:        time.Since(h.startedAt).Round(time.Second).String(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		BatchRunning:  h.runner != nil && h.runner.Running(),
		Databases:     h.databaseStatus(r.Context()),
	}

	if h.cache != nil {
		count, err := h.cache.Count(clientdata.TableNAVHistory)
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count cache entries")
		}
		resp.CacheEntries = count
	}
	if h.results != nil {
		count, err := h.results.Count()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to count stored results")
		}
		resp.StoredResults = int64(count)
	}

	writeData(w, http.StatusOK, resp, h.log)
}

func (h *SystemHandlers) databaseStatus(ctx context.Context) []DatabaseStatus {
	out := make([]DatabaseStatus, 0, len(h.databases))
	for _, db := range h.databases {
		status := DatabaseStatus{Name: db.Name(), Healthy: true}
		if err := db.HealthCheck(ctx); err != nil {
			status.Healthy = false
			status.Error = err.Error()
		}
		if stats, err := db.GetStats(); err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
		} else {
			status.SizeMB = float64(stats.SizeBytes) / 1024 / 1024
			status.WALSizeMB = float64(stats.WALSizeBytes) / 1024 / 1024
			status.PageCount = stats.PageCount
			status.FreelistCount = stats.FreelistCount
		}
		out = append(out, status)
	}
	return out
}

// getSystemStats samples CPU over 100ms and reads RAM usage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}
