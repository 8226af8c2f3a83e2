// Package hub fans cart snapshots out to observers.
//
// Every subscriber gets a buffered channel of size one. Publish never blocks:
// if a subscriber has not consumed the previous snapshot yet, that stale
// snapshot is replaced by the new one, so a slow reader always catches up
// to the latest cart rather than replaying history.
package hub

import (
	"sync"

	"github.com/fjod/go_cart/cartkeeper/internal/domain"
)

type Hub struct {
	mu      sync.Mutex
	nextID  int
	subs    map[int]chan domain.Cart
	current domain.Cart
	closed  bool
}

func New(initial domain.Cart) *Hub {
	return &Hub{
		subs:    make(map[int]chan domain.Cart),
		current: initial.Clone(),
	}
}

// Subscribe registers an observer. The channel immediately holds the current
// snapshot. Call the returned function to unsubscribe; it closes the channel.
func (h *Hub) Subscribe() (<-chan domain.Cart, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan domain.Cart, 1)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	ch <- h.current.Clone()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Publish records cart as the current snapshot and hands it to every subscriber.
func (h *Hub) Publish(cart domain.Cart) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.current = cart.Clone()

	for _, ch := range h.subs {
		// drop the unread snapshot, if any
		select {
		case <-ch:
		default:
		}
		ch <- h.current.Clone()
	}
}

// Current returns the last published snapshot.
func (h *Hub) Current() domain.Cart {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.current.Clone()
}

// Close unsubscribes everyone; later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
