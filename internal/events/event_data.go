// Package events carries batch run notifications from the runner to
// streaming subscribers.
package events

import (
	"time"
)

// EventType identifies an event
type EventType string

const (
	BatchStarted  EventType = "batch_started"
	BatchProgress EventType = "batch_progress"
	BatchFinished EventType = "batch_finished"
	BatchFailed   EventType = "batch_failed"
)

// EventData is the interface that all event data types must implement
type EventData interface {
	// EventType returns the event type this data is associated with
	EventType() EventType
}

// Event is one notification as delivered to subscribers
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data"`
	Type      EventType `json:"type"`
}

// BatchStartedData contains data for BatchStarted events
type BatchStartedData struct {
	Methodology string `json:"methodology"`
	Total       int    `json:"total"`
}

// EventType returns the event type for BatchStartedData
func (d *BatchStartedData) EventType() EventType {
	return BatchStarted
}

// BatchProgressData contains data for BatchProgress events
type BatchProgressData struct {
	SchemeCode string `json:"scheme_code"`
	SchemeName string `json:"scheme_name,omitempty"`
	Error      string `json:"error,omitempty"`
	Done       int    `json:"done"`
	Total      int    `json:"total"`
}

// EventType returns the event type for BatchProgressData
func (d *BatchProgressData) EventType() EventType {
	return BatchProgress
}

// BatchFinishedData contains data for BatchFinished events
type BatchFinishedData struct {
	RunID      string  `json:"run_id"`
	Total      int     `json:"total"`
	Succeeded  int     `json:"succeeded"`
	Failed     int     `json:"failed"`
	DurationMS float64 `json:"duration_ms"`
}

// EventType returns the event type for BatchFinishedData
func (d *BatchFinishedData) EventType() EventType {
	return BatchFinished
}

// BatchFailedData contains data for BatchFailed events
type BatchFailedData struct {
	RunID string `json:"run_id,omitempty"`
	Error string `json:"error"`
}

// EventType returns the event type for BatchFailedData
func (d *BatchFailedData) EventType() EventType {
	return BatchFailed
}
