package events

import (
	"sync"
	"time"

	"github.com/aristath/navreturns/internal/domain"
)

// DefaultProgressInterval is the minimum time between two progress events
const DefaultProgressInterval = 100 * time.Millisecond

// ProgressReporter turns per-fund batch callbacks into throttled progress events.
// Failed funds and the final fund always bypass the throttle.
type ProgressReporter struct {
	hub         *Hub
	mu          sync.Mutex
	lastReport  time.Time
	minInterval time.Duration
	now         func() time.Time
}

// NewProgressReporter creates a reporter emitting on hub (nil discards)
func NewProgressReporter(hub *Hub, minInterval time.Duration) *ProgressReporter {
	if minInterval < 0 {
		minInterval = 0
	}
	return &ProgressReporter{hub: hub, minInterval: minInterval, now: time.Now}
}

// Report matches the batch runner's progress callback
func (pr *ProgressReporter) Report(done, total int, fund domain.Fund, err error) {
	if pr.hub == nil {
		return
	}

	pr.mu.Lock()
	now := pr.now()
	if err == nil && done != total && now.Sub(pr.lastReport) < pr.minInterval {
		pr.mu.Unlock()
		return
	}
	pr.lastReport = now
	pr.mu.Unlock()

	data := &BatchProgressData{
		SchemeCode: fund.SchemeCode,
		SchemeName: fund.SchemeName,
		Done:       done,
		Total:      total,
	}
	if err != nil {
		data.Error = err.Error()
	}
	pr.hub.Emit(data)
}
