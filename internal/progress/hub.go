package progress

import (
	"sync"
	"time"
)

const defaultBuffer = 64

// Publisher accepts progress events.
type Publisher interface {
	Publish(Event)
}

// Hub fans events out to subscribers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	now    func() time.Time
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Hub{
		subs:   make(map[chan Event]struct{}),
		buffer: buffer,
		now:    time.Now,
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called to release it; the channel is closed afterwards.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish delivers e to every subscriber with room for it.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	e.Progress = Clamp(e.Progress)
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(Event) {}
