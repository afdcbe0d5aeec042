package broadcast

import (
	"sync"

	"github.com/google/uuid"

	"parkwell/pkg/logger"
)

const subscriberBuffer = 32

// Hub fans events out to subscribers. Delivery is best effort: a
// subscriber whose buffer is full misses the event rather than blocking
// the publisher, and clients are expected to refetch state on reconnect.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]chan Event
	closed      bool

	mirror Mirror
	logger *logger.Logger
}

// Mirror receives every published event in addition to the subscribers,
// used to tee events into Kafka.
type Mirror interface {
	Mirror(event Event)
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subscribers: make(map[uuid.UUID]chan Event),
		logger:      log,
	}
}

// SetMirror attaches an event mirror. Call before serving traffic.
func (h *Hub) SetMirror(mirror Mirror) {
	h.mirror = mirror
}

// Subscribe registers a new subscriber and returns its channel and an
// unsubscribe function.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	id := uuid.New()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[id] = ch
	h.mu.Unlock()

	return ch, func() { h.unsubscribe(id) }
}

func (h *Hub) unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		delete(h.subscribers, id)
		close(ch)
	}
}

// Publish delivers the event to every subscriber without blocking.
func (h *Hub) Publish(event Event) {
	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}

	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// Slow consumer; drop rather than stall the publisher.
		}
	}
	mirror := h.mirror
	h.mu.RUnlock()

	// The mirror can block on the broker; it must not hold up fan-out.
	if mirror != nil {
		mirror.Mirror(event)
	}
}

// SubscriberCount reports the current number of subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Close shuts the hub down; all subscriber channels are closed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subscribers {
		delete(h.subscribers, id)
		close(ch)
	}
}
