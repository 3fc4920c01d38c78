// Package bus is the in-process "wishlist changed" broadcast channel.
// Producers (add/remove actions) and consumers (counters, lists) share no
// references; they only share the bus handed to them at wiring time.
package bus

import "sync"

// Handler reacts to a wishlist-changed signal for one user.
type Handler func(userID string)

// Bus is an observer registry. Publish fans out synchronously; handlers
// that need to do network work should take it off the calling goroutine
// themselves.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func New() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for all future signals.
func (b *Bus) Subscribe(fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, fn)
}

// Publish signals that the given user's wishlist changed.
func (b *Bus) Publish(userID string) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.handlers))
	copy(handlers, b.handlers)
	b.mu.RUnlock()

	for _, fn := range handlers {
		fn(userID)
	}
}
