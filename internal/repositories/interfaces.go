package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/arkamarket/checkout/internal/domain"
)

var (
	// ErrSessionNotFound is returned when no wizard session exists for the id.
	ErrSessionNotFound = errors.New("repositories: checkout session not found")
	// ErrSnapshotNotFound is returned when the user has no stored cart snapshot.
	ErrSnapshotNotFound = errors.New("repositories: cart snapshot not found")
	// ErrUnavailable wraps transient store failures.
	ErrUnavailable = errors.New("repositories: store unavailable")
)

// SessionStore persists wizard sessions for the duration of a checkout run.
type SessionStore interface {
	Create(ctx context.Context, session domain.CheckoutSession) error
	Get(ctx context.Context, id string) (domain.CheckoutSession, error)
	Save(ctx context.Context, session domain.CheckoutSession) error
	Delete(ctx context.Context, id string) error
	PurgeExpired(ctx context.Context, now time.Time) (int, error)
}

// CartSnapshotStore holds the cart hand-off written by the cart page,
// keyed per user. The snapshot is read once at wizard start and removed
// only after a successful order.
type CartSnapshotStore interface {
	Load(ctx context.Context, userID string) (domain.CartSnapshot, error)
	Save(ctx context.Context, userID string, snapshot domain.CartSnapshot) error
	Delete(ctx context.Context, userID string) error
}
