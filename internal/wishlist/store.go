package wishlist

import (
	"context"
	"log"
	"sync"

	"github.com/example/jewel-storefront/internal/bus"
	"github.com/example/jewel-storefront/internal/commerce"
)

// API is the slice of the commerce client the store depends on.
type API interface {
	ListWishlist(ctx context.Context, userID string) ([]commerce.WishlistRow, error)
	AddWishlistItem(ctx context.Context, userID string, req commerce.AddWishlistRequest) error
	DeleteWishlistItem(ctx context.Context, userID, wishlistID string) error
}

// Store is the single owner of one user's wishlist snapshot. All mutation
// goes through it; readers only ever see the normalized collection.
//
// Consistency policy: removals apply optimistically before their network
// call, and a failed mutation self-heals with a refetch. Concurrent fetches
// are last-write-wins.
type Store struct {
	mu      sync.RWMutex
	userID  string
	api     API
	changed *bus.Bus

	entries []Entry
	loading bool
	lastErr error
}

// NewStore creates an empty store for the given user.
func NewStore(api API, changed *bus.Bus, userID string) *Store {
	return &Store{api: api, changed: changed, userID: userID}
}

// FetchAll replaces the whole collection from the backend. The loading flag
// is only raised when the store is empty at fetch start, so a refresh of an
// already-populated list never flickers. On failure the collection is left
// untouched and the error is recorded; there is no automatic retry.
func (s *Store) FetchAll(ctx context.Context) error {
	s.mu.Lock()
	if len(s.entries) == 0 {
		s.loading = true
	}
	s.mu.Unlock()

	rows, err := s.api.ListWishlist(ctx, s.userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		log.Printf("[Wishlist] Error fetching wishlist for %s: %v", s.userID, err)
		s.lastErr = err
		return err
	}
	s.entries = Normalize(rows)
	s.lastErr = nil
	return nil
}

// RemoveLocally filters the entry out of the in-memory collection without
// waiting for the network, so the UI never shows a just-removed item.
// Callers pair it with a network delete; Remove does both.
func (s *Store) RemoveLocally(wishlistID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.WishlistID != wishlistID {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

// Remove applies the optimistic local removal, then issues the network
// delete. If the delete fails, a compensating refetch restores whatever the
// backend still holds. On success the change is broadcast.
func (s *Store) Remove(ctx context.Context, wishlistID string) error {
	s.RemoveLocally(wishlistID)

	if err := s.api.DeleteWishlistItem(ctx, s.userID, wishlistID); err != nil {
		log.Printf("[Wishlist] Delete of %s failed, refetching: %v", wishlistID, err)
		s.FetchAll(ctx)
		return err
	}

	s.changed.Publish(s.userID)
	return nil
}

// Add pushes a new item to the backend, refetches, and broadcasts.
func (s *Store) Add(ctx context.Context, req commerce.AddWishlistRequest) error {
	if err := s.api.AddWishlistItem(ctx, s.userID, req); err != nil {
		log.Printf("[Wishlist] Add failed for %s: %v", s.userID, err)
		return err
	}

	if err := s.FetchAll(ctx); err != nil {
		return err
	}
	s.changed.Publish(s.userID)
	return nil
}

// Entries returns a copy of the current collection, in backend order.
func (s *Store) Entries() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Contains reports whether the catalog item is wishlisted (heart toggle).
func (s *Store) Contains(itemID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.entries {
		if e.ItemID == itemID {
			return true
		}
	}
	return false
}

// Count returns the number of entries (wishlist badge).
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Loading reports whether an initial fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Err returns the last fetch error, cleared by the next successful fetch.
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Clear empties the collection, e.g. on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.lastErr = nil
	s.loading = false
}
