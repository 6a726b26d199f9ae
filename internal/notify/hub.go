// Package notify fans order change signals out to live subscribers such as
// the cashier dashboard stream.
package notify

import (
	"context"
	"sync"
	"time"

	"pharmacy-store/internal/util"

	"github.com/google/uuid"
)

// Notification says that something about an order changed. Receivers must
// re-read the order from the store; the payload is a hint only.
type Notification struct {
	OrderID uuid.UUID `json:"order_id"`
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
}

// Hub is a non-blocking broadcaster. A subscriber that is not keeping up
// loses intermediate signals but always keeps at least the latest pending one.
type Hub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Notification
	nextID uint64
	buffer int
}

// NewHub creates a hub whose subscriber channels hold up to buffer signals.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = 1
	}
	return &Hub{subs: make(map[uint64]chan Notification), buffer: buffer}
}

// Subscribe returns a channel of notifications that is closed when ctx ends.
func (h *Hub) Subscribe(ctx context.Context) <-chan Notification {
	ch := make(chan Notification, h.buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()
	util.NotificationSubscribers.Inc()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, id)
		close(ch)
		h.mu.Unlock()
		util.NotificationSubscribers.Dec()
	}()

	return ch
}

// Publish delivers n to every subscriber without blocking.
func (h *Hub) Publish(n Notification) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- n:
		default:
			// Full: the subscriber already has a pending signal to re-read on.
			util.NotificationsDroppedTotal.Inc()
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
