// Package notifier fans order changes out to websocket subscribers.
package notifier

import (
	"sync"
	"time"

	"techshop/ent"
)

// Event describes one order change. Bulk actions touch a single field, so
// Status or Delivery is left empty when the change did not set it.
type Event struct {
	OrderID  int64           `json:"order_id"`
	Status   ent.OrderStatus `json:"status,omitempty"`
	Delivery ent.Delivery    `json:"delivery,omitempty"`
	Action   string          `json:"action"`
	At       time.Time       `json:"at"`
}

// Hub delivers every published event to all current subscribers. A
// subscriber whose buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	buffer int
	closed bool
}

func New(buffer int) *Hub {
	return &Hub{
		subs:   map[chan Event]struct{}{},
		buffer: buffer,
	}
}

// Subscribe returns the event channel and a func that releases it. The
// channel is closed on release or when the hub closes.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, h.buffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		close(ch)
		return ch, func() {}
	}

	h.subs[ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(ch) })
	}
}

func (h *Hub) remove(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

func (h *Hub) Publish(events ...Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, e := range events {
		if e.At.IsZero() {
			e.At = time.Now()
		}

		for ch := range h.subs {
			select {
			case ch <- e:
			default:
			}
		}
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}

// Close releases every subscriber; later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
	}
}
