package services

import (
	"context"

	"github.com/arkamarket/checkout/internal/domain"
)

// PricingEngine derives the displayed price breakdown for a wizard
// session. Subtotal and discount come from the cart snapshot and are
// upstream-authoritative; only shipping and the grand total are
// computed here.
type PricingEngine struct {
	policy domain.ShippingPolicy
	logger func(context.Context, string, map[string]any)
}

// PricingEngineDeps wires the pricing engine dependencies.
type PricingEngineDeps struct {
	Policy domain.ShippingPolicy
	Logger func(context.Context, string, map[string]any)
}

// NewPricingEngine constructs a PricingEngine, falling back to the
// default shipping policy when none is supplied.
func NewPricingEngine(deps PricingEngineDeps) *PricingEngine {
	policy := deps.Policy
	if len(policy.Options) == 0 {
		policy = domain.DefaultShippingPolicy()
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PricingEngine{policy: policy, logger: logger}
}

// Policy exposes the active shipping policy for transport-layer listings.
func (e *PricingEngine) Policy() domain.ShippingPolicy {
	return e.policy
}

// ComputeTotals derives the breakdown for the given snapshot and
// shipping method. An unknown method prices shipping at zero rather
// than failing; the selection is re-validated at step advancement, so
// pricing itself stays total. The grand total is clamped at zero.
func (e *PricingEngine) ComputeTotals(ctx context.Context, snapshot domain.CartSnapshot, shippingMethodID string) domain.Totals {
	totals := domain.Totals{
		Subtotal:     snapshot.Subtotal,
		Discount:     snapshot.Discount,
		ItemCount:    snapshot.ItemCount,
		ProductCount: snapshot.ProductCount,
	}

	option, ok := e.policy.Option(shippingMethodID)
	if !ok {
		e.logger(ctx, "pricing.unknown_shipping_method", map[string]any{
			"shipping_method_id": shippingMethodID,
		})
	} else if snapshot.Subtotal >= option.FreeThreshold {
		totals.FreeShipping = true
	} else {
		totals.ShippingCost = option.BaseCost
	}

	total := totals.Subtotal + totals.ShippingCost - totals.Discount
	if total < 0 {
		total = 0
	}
	totals.Total = total

	return totals
}
