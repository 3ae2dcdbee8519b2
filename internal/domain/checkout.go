package domain

import (
	"strings"
	"time"
)

// CheckoutStep identifies a stage of the checkout wizard. Steps are
// strictly ordered; forward movement is gated by validation while
// backward movement is always permitted.
type CheckoutStep string

const (
	// StepShipping collects shipping and billing information.
	StepShipping CheckoutStep = "shipping"
	// StepReview shows the order for confirmation and collects the terms acceptance.
	StepReview CheckoutStep = "review"
	// StepPayment is the final stage from which the order is submitted.
	StepPayment CheckoutStep = "payment"
)

// StepOrder returns the zero-based position of the step in the wizard,
// or -1 for an unknown step.
func StepOrder(step CheckoutStep) int {
	switch step {
	case StepShipping:
		return 0
	case StepReview:
		return 1
	case StepPayment:
		return 2
	default:
		return -1
	}
}

// CartLine is a single entry of the client-assembled cart snapshot. The
// unit price is the price observed when the line was added to the cart;
// the order service remains authoritative for actual pricing.
type CartLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"price_snapshot"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
	StoreID   string `json:"store_id,omitempty"`
}

// CartSnapshot is the read-only cart hand-off produced by the cart page.
// Subtotal and Discount are computed upstream and treated as
// authoritative input; the checkout core only derives shipping and the
// grand total from them.
type CartSnapshot struct {
	Lines        []CartLine `json:"lines"`
	Subtotal     int64      `json:"subtotal"`
	Discount     int64      `json:"discount"`
	ItemCount    int        `json:"item_count"`
	ProductCount int        `json:"product_count"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Empty reports whether the snapshot carries no purchasable lines.
func (s CartSnapshot) Empty() bool {
	return len(s.Lines) == 0
}

// ShippingOption is one named entry of the shipping policy.
type ShippingOption struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	BaseCost      int64  `json:"base_cost"`
	FreeThreshold int64  `json:"free_threshold"`
}

// ShippingPolicy is the fixed, ordered set of shipping options offered
// during checkout. Exactly one option is selected at any time.
type ShippingPolicy struct {
	Options []ShippingOption
}

// Option returns the option with the given id.
func (p ShippingPolicy) Option(id string) (ShippingOption, bool) {
	for _, opt := range p.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ShippingOption{}, false
}

// DefaultShippingMethodID returns the id of the first policy entry.
func (p ShippingPolicy) DefaultShippingMethodID() string {
	if len(p.Options) == 0 {
		return ""
	}
	return p.Options[0].ID
}

// DefaultShippingPolicy mirrors the storefront's delivery offering.
func DefaultShippingPolicy() ShippingPolicy {
	return ShippingPolicy{Options: []ShippingOption{
		{ID: "express", Name: "express courier", BaseCost: 25000, FreeThreshold: 500000},
		{ID: "regular", Name: "regular post", BaseCost: 15000, FreeThreshold: 300000},
		{ID: "free", Name: "economy delivery", BaseCost: 0, FreeThreshold: 1000000},
	}}
}

// Totals is the price breakdown derived for the current wizard state.
type Totals struct {
	Subtotal     int64 `json:"subtotal"`
	ShippingCost int64 `json:"shipping_cost"`
	Discount     int64 `json:"discount"`
	Total        int64 `json:"total"`
	ItemCount    int   `json:"item_count"`
	ProductCount int   `json:"product_count"`
	FreeShipping bool  `json:"free_shipping"`
}

// Address holds the postal contact details collected by the wizard.
// Email is optional; Note is a free-form message for the seller and is
// only meaningful on the shipping address.
type Address struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	City       string `json:"city"`
	Street     string `json:"address"`
	PostalCode string `json:"postal_code"`
	Note       string `json:"note,omitempty"`
}

// CheckoutForm is the mutable wizard state. It is created empty
// (optionally pre-filled from the user profile), mutated field by field,
// validated per step, and consumed exactly once at submission.
type CheckoutForm struct {
	ShippingAddress       Address `json:"shipping_address"`
	BillingSameAsShipping bool    `json:"billing_same_as_shipping"`
	BillingAddress        Address `json:"billing_address"`
	ShippingMethodID      string  `json:"shipping_method_id"`
	PaymentMethodID       string  `json:"payment_method_id"`
	AcceptTerms           bool    `json:"accept_terms"`
}

// SyncBilling copies the shipping address onto the billing address when
// billing-same-as-shipping is set. The note stays on shipping only.
func (f *CheckoutForm) SyncBilling() {
	if f == nil || !f.BillingSameAsShipping {
		return
	}
	f.BillingAddress = f.ShippingAddress
	f.BillingAddress.Note = ""
}

// Payment method identifiers accepted by the order service.
const (
	PaymentMethodOnline = "online"
	PaymentMethodWallet = "wallet"
	PaymentMethodCash   = "cash"
)

// ValidPaymentMethod reports whether id names a supported payment method.
func ValidPaymentMethod(id string) bool {
	switch strings.TrimSpace(id) {
	case PaymentMethodOnline, PaymentMethodWallet, PaymentMethodCash:
		return true
	default:
		return false
	}
}

// ErrorKind coarsely classifies a normalized remote failure so the
// caller can choose follow-up behaviour (e.g. redirect to the cart when
// the snapshot went stale).
type ErrorKind string

const (
	// ErrorKindGeneric covers failures with no special handling.
	ErrorKindGeneric ErrorKind = "generic"
	// ErrorKindOutOfStock marks stock/availability failures; the cached
	// cart snapshot is stale and the user should be sent back to the cart.
	ErrorKindOutOfStock ErrorKind = "out_of_stock"
	// ErrorKindAuth marks missing or rejected credentials.
	ErrorKindAuth ErrorKind = "auth"
)
