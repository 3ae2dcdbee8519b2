package domain

import "time"

// CheckoutSession is one server-side wizard run. A session binds the
// authenticated user, the cart snapshot read at wizard start, and the
// evolving form state. The snapshot never changes for the lifetime of
// the session; a stale cart is only discovered at submission.
type CheckoutSession struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Step      CheckoutStep `json:"step"`
	Form      CheckoutForm `json:"form"`
	Snapshot  CartSnapshot `json:"snapshot"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Expired reports whether the session has passed its expiry deadline.
func (s CheckoutSession) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
