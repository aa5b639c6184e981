package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultBuffer is the per-subscriber channel capacity
const DefaultBuffer = 100

// Hub fans events out to subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	now    func() time.Time
	log    zerolog.Logger
}

// NewHub creates an event hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subs: make(map[int]chan Event),
		now:  time.Now,
		log:  log.With().Str("component", "event_hub").Logger(),
	}
}

// Subscribe registers a subscriber. The returned cancel func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of active subscribers
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Emit publishes data to every subscriber. A nil hub discards the event.
func (h *Hub) Emit(data EventData) {
	if h == nil || data == nil {
		return
	}
	event := Event{Type: data.EventType(), Timestamp: h.now().UTC(), Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		// Non-blocking send (drop if channel full)
		select {
		case ch <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}
}
