package session

import (
	"time"
)

// CheckoutSession is one user's progress through the checkout flow. It lives
// for the duration of the flow and is deleted when the user leaves it; the
// expiry is a backstop for abandoned sessions.
type CheckoutSession struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Current    int       `json:"current"`
	MaxVisited int       `json:"max_visited"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Store persists checkout sessions between stateless HTTP requests.
type Store interface {
	// Save inserts or replaces a session.
	Save(s *CheckoutSession) error

	// Get retrieves a session by id. Expired sessions are not returned.
	Get(id string) (*CheckoutSession, bool, error)

	// Delete removes a session.
	Delete(id string) error

	// DeleteExpired removes all sessions past their expiry.
	DeleteExpired() error
}
