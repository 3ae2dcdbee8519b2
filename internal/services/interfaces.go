package services

import (
	"context"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/upstream"
)

// OrderGateway creates orders on the order service.
type OrderGateway interface {
	CreateOrder(ctx context.Context, credential string, req upstream.OrderRequest, idempotencyKey string) (upstream.OrderResult, error)
}

// CartGateway performs best-effort cart compensation on the cart service.
type CartGateway interface {
	RemoveItem(ctx context.Context, credential, productID string) error
	Clear(ctx context.Context, credential string) error
}

// ProfileGateway fetches the caller's profile for form pre-fill.
type ProfileGateway interface {
	Me(ctx context.Context, credential string) (upstream.Profile, error)
}

// FormPatch carries a partial form update. Nil pointers leave the
// corresponding field untouched, which lets the wizard mutate state one
// input at a time the way the storefront does.
type FormPatch struct {
	ShippingAddress       *AddressPatch `json:"shipping_address,omitempty"`
	BillingSameAsShipping *bool         `json:"billing_same_as_shipping,omitempty"`
	BillingAddress        *AddressPatch `json:"billing_address,omitempty"`
	ShippingMethodID      *string       `json:"shipping_method_id,omitempty"`
	PaymentMethodID       *string       `json:"payment_method_id,omitempty"`
	AcceptTerms           *bool         `json:"accept_terms,omitempty"`
}

// AddressPatch is a partial address update.
type AddressPatch struct {
	FirstName  *string `json:"first_name,omitempty"`
	LastName   *string `json:"last_name,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Email      *string `json:"email,omitempty"`
	City       *string `json:"city,omitempty"`
	Street     *string `json:"address,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Note       *string `json:"note,omitempty"`
}

// SessionView is the wizard state returned to the transport layer.
type SessionView struct {
	Session domain.CheckoutSession
	Totals  domain.Totals
	Errors  map[string]string
}

// SubmissionOutcome reports a successful order submission.
type SubmissionOutcome struct {
	OrderID string
}

// CheckoutWizard drives the three-step checkout state machine.
type CheckoutWizard interface {
	StartSession(ctx context.Context, cmd StartSessionCommand) (SessionView, error)
	GetSession(ctx context.Context, sessionID, userID string) (SessionView, error)
	UpdateForm(ctx context.Context, sessionID, userID string, patch FormPatch) (SessionView, error)
	Advance(ctx context.Context, sessionID, userID string) (SessionView, error)
	Back(ctx context.Context, sessionID, userID string) (SessionView, error)
	Submit(ctx context.Context, cmd SubmitCommand) (SubmitResult, error)
}

// StartSessionCommand opens a new wizard session for the user.
type StartSessionCommand struct {
	UserID     string
	Credential string
}

// SubmitCommand triggers the order submission saga for a session.
type SubmitCommand struct {
	SessionID  string
	UserID     string
	Credential string
}

// SubmitResult is the terminal wizard outcome delivered to the caller.
type SubmitResult struct {
	OrderID        string
	Message        string
	Kind           domain.ErrorKind
	RedirectToCart bool
}

// OrderSubmitter runs the order submission saga.
type OrderSubmitter interface {
	Submit(ctx context.Context, cmd SubmitOrderCommand) (SubmissionOutcome, error)
}

// SubmitOrderCommand carries everything the saga needs; the cart
// snapshot and totals are read-only inputs captured by the wizard.
type SubmitOrderCommand struct {
	Form       domain.CheckoutForm
	Cart       domain.CartSnapshot
	Totals     domain.Totals
	Credential string
}
