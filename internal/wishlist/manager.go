package wishlist

import (
	"context"
	"sync"

	"github.com/example/jewel-storefront/internal/bus"
)

// Manager owns one Store per authenticated user and reacts to wishlist
// broadcasts: when a signal arrives for a user it knows about, it refetches
// that user's store. Users the manager has never seen (not signed in on this
// instance) are ignored, matching the only-if-authenticated rule.
type Manager struct {
	mu      sync.Mutex
	api     API
	changed *bus.Bus
	stores  map[string]*Store
}

// NewManager creates the manager and subscribes it to the broadcast bus.
func NewManager(api API, changed *bus.Bus) *Manager {
	m := &Manager{
		api:     api,
		changed: changed,
		stores:  make(map[string]*Store),
	}
	changed.Subscribe(m.onChanged)
	return m
}

// StoreFor returns the user's store, creating it on first use.
func (m *Manager) StoreFor(userID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	store, ok := m.stores[userID]
	if !ok {
		store = NewStore(m.api, m.changed, userID)
		m.stores[userID] = store
	}
	return store
}

// Drop clears and forgets a user's store, e.g. on logout.
func (m *Manager) Drop(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if store, ok := m.stores[userID]; ok {
		store.Clear()
		delete(m.stores, userID)
	}
}

func (m *Manager) lookup(userID string) (*Store, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	store, ok := m.stores[userID]
	return store, ok
}

// onChanged refetches the store of a signaled user, if one exists here.
func (m *Manager) onChanged(userID string) {
	if store, ok := m.lookup(userID); ok {
		store.FetchAll(context.Background())
	}
}
