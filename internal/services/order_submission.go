package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/upstream"
)

var (
	// ErrSubmissionInvalidInput indicates the saga was invoked with an empty cart or missing credential.
	ErrSubmissionInvalidInput = errors.New("order submission: invalid input")
	// ErrSubmissionUnavailable indicates the saga dependencies are not wired.
	ErrSubmissionUnavailable = errors.New("order submission: unavailable")
)

// SubmissionError is a failed order creation carrying the normalized
// message and kind for the caller.
type SubmissionError struct {
	Message string
	Kind    domain.ErrorKind
}

// Error implements the error interface.
func (e *SubmissionError) Error() string {
	return "order submission failed: " + e.Message
}

// OrderSubmitterDeps wires the dependencies required by the saga.
type OrderSubmitterDeps struct {
	Orders OrderGateway
	Carts  CartGateway
	// Dispatch runs the cart cleanup. The default detaches it on a
	// goroutine with a context that survives request cancellation;
	// tests inject a synchronous dispatcher.
	Dispatch       func(ctx context.Context, fn func(ctx context.Context))
	IDGenerator    func() string
	Clock          func() time.Time
	Logger         func(ctx context.Context, event string, fields map[string]any)
	CleanupTimeout time.Duration
}

type orderSubmitter struct {
	orders         OrderGateway
	carts          CartGateway
	dispatch       func(ctx context.Context, fn func(ctx context.Context))
	idGen          func() string
	now            func() time.Time
	logger         func(ctx context.Context, event string, fields map[string]any)
	cleanupTimeout time.Duration
	notePolicy     *bluemonday.Policy
}

// NewOrderSubmitter constructs an OrderSubmitter validating required dependencies.
func NewOrderSubmitter(deps OrderSubmitterDeps) (OrderSubmitter, error) {
	if deps.Orders == nil {
		return nil, errors.New("order submitter: order gateway is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order submitter: cart gateway is required")
	}
	if deps.IDGenerator == nil {
		return nil, errors.New("order submitter: id generator is required")
	}

	dispatch := deps.Dispatch
	if dispatch == nil {
		dispatch = func(ctx context.Context, fn func(ctx context.Context)) {
			go fn(context.WithoutCancel(ctx))
		}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	timeout := deps.CleanupTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &orderSubmitter{
		orders:   deps.Orders,
		carts:    deps.Carts,
		dispatch: dispatch,
		idGen:    deps.IDGenerator,
		now: func() time.Time {
			return clock().UTC()
		},
		logger:         logger,
		cleanupTimeout: timeout,
		notePolicy:     bluemonday.StrictPolicy(),
	}, nil
}

// Submit runs the saga: create the order, then compensate the cart.
// The order is the single source of truth and is never rolled back; the
// cart cleanup is best-effort and cannot fail the result. When order
// creation itself fails, no cleanup call is issued at all so a retry
// operates on the original cart.
func (s *orderSubmitter) Submit(ctx context.Context, cmd SubmitOrderCommand) (SubmissionOutcome, error) {
	if s == nil || s.orders == nil || s.carts == nil {
		return SubmissionOutcome{}, ErrSubmissionUnavailable
	}
	if cmd.Cart.Empty() {
		return SubmissionOutcome{}, ErrSubmissionInvalidInput
	}
	if strings.TrimSpace(cmd.Credential) == "" {
		return SubmissionOutcome{}, &SubmissionError{
			Message: "authentication required",
			Kind:    domain.ErrorKindAuth,
		}
	}

	req := s.buildOrderRequest(cmd)
	idemKey := s.idGen()
	started := s.now()

	result, err := s.orders.CreateOrder(ctx, cmd.Credential, req, idemKey)
	if err != nil {
		s.logger(ctx, "order_submission.create_failed", map[string]any{
			"idempotency_key": idemKey,
			"error":           err.Error(),
		})
		var orderErr *upstream.OrderError
		if errors.As(err, &orderErr) {
			return SubmissionOutcome{}, &SubmissionError{Message: orderErr.Message, Kind: orderErr.Kind}
		}
		return SubmissionOutcome{}, &SubmissionError{
			Message: upstream.GenericErrorMessage,
			Kind:    domain.ErrorKindGeneric,
		}
	}

	s.logger(ctx, "order_submission.created", map[string]any{
		"order_id":        result.ID,
		"idempotency_key": idemKey,
		"latency":         s.now().Sub(started).String(),
	})

	// One removal per distinct product; variants share a cart entry upstream.
	productIDs := make([]string, 0, len(cmd.Cart.Lines))
	seen := make(map[string]struct{}, len(cmd.Cart.Lines))
	for _, line := range cmd.Cart.Lines {
		if _, ok := seen[line.ProductID]; ok {
			continue
		}
		seen[line.ProductID] = struct{}{}
		productIDs = append(productIDs, line.ProductID)
	}
	credential := cmd.Credential
	orderID := result.ID

	s.dispatch(ctx, func(ctx context.Context) {
		s.cleanupCart(ctx, credential, orderID, productIDs)
	})

	return SubmissionOutcome{OrderID: orderID}, nil
}

func (s *orderSubmitter) buildOrderRequest(cmd SubmitOrderCommand) upstream.OrderRequest {
	lines := make([]upstream.OrderLine, 0, len(cmd.Cart.Lines))
	for _, line := range cmd.Cart.Lines {
		lines = append(lines, upstream.OrderLine{
			ProductID:     line.ProductID,
			Quantity:      line.Quantity,
			PriceSnapshot: line.UnitPrice,
			Color:         line.Color,
			Size:          line.Size,
		})
	}

	return upstream.OrderRequest{
		CartItems:       lines,
		ShippingAddress: cmd.Form.ShippingAddress,
		PaymentMethod:   cmd.Form.PaymentMethodID,
		TotalAmount:     cmd.Totals.Total,
		Note:            strings.TrimSpace(s.notePolicy.Sanitize(cmd.Form.ShippingAddress.Note)),
	}
}

// cleanupCart removes every submitted line from the remote cart, then
// clears the cart as a safety net against lines added concurrently by
// another session. Every failure is logged and swallowed.
func (s *orderSubmitter) cleanupCart(ctx context.Context, credential, orderID string, productIDs []string) {
	ctx, cancel := context.WithTimeout(ctx, s.cleanupTimeout)
	defer cancel()

	failures := 0
	for _, productID := range productIDs {
		if err := s.carts.RemoveItem(ctx, credential, productID); err != nil {
			failures++
			s.logger(ctx, "order_submission.cleanup_item_failed", map[string]any{
				"order_id":   orderID,
				"product_id": productID,
				"error":      err.Error(),
			})
		}
	}

	if err := s.carts.Clear(ctx, credential); err != nil {
		failures++
		s.logger(ctx, "order_submission.cleanup_clear_failed", map[string]any{
			"order_id": orderID,
			"error":    err.Error(),
		})
	}

	s.logger(ctx, "order_submission.cleanup_done", map[string]any{
		"order_id": orderID,
		"items":    len(productIDs),
		"failures": failures,
	})
}
