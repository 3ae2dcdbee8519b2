package services

import (
	"context"
	"errors"
	"testing"

	"github.com/arkamarket/checkout/internal/domain"
	"github.com/arkamarket/checkout/internal/upstream"
)

type fakeOrderGateway struct {
	req     upstream.OrderRequest
	idemKey string
	calls   int
	result  upstream.OrderResult
	err     error
}

func (f *fakeOrderGateway) CreateOrder(_ context.Context, _ string, req upstream.OrderRequest, idempotencyKey string) (upstream.OrderResult, error) {
	f.calls++
	f.req = req
	f.idemKey = idempotencyKey
	if f.err != nil {
		return upstream.OrderResult{}, f.err
	}
	return f.result, nil
}

type fakeCartGateway struct {
	removed    []string
	clearCalls int
	removeErr  error
	clearErr   error
}

func (f *fakeCartGateway) RemoveItem(_ context.Context, _ string, productID string) error {
	f.removed = append(f.removed, productID)
	return f.removeErr
}

func (f *fakeCartGateway) Clear(context.Context, string) error {
	f.clearCalls++
	return f.clearErr
}

func syncDispatch(ctx context.Context, fn func(ctx context.Context)) {
	fn(ctx)
}

func submitterForTest(t *testing.T, orders *fakeOrderGateway, carts *fakeCartGateway) OrderSubmitter {
	t.Helper()
	submitter, err := NewOrderSubmitter(OrderSubmitterDeps{
		Orders:      orders,
		Carts:       carts,
		Dispatch:    syncDispatch,
		IDGenerator: func() string { return "idem-1" },
	})
	if err != nil {
		t.Fatalf("NewOrderSubmitter: %v", err)
	}
	return submitter
}

func submitCommand() SubmitOrderCommand {
	return SubmitOrderCommand{
		Form: domain.CheckoutForm{
			ShippingAddress: domain.Address{
				FirstName: "Sara", LastName: "Ahmadi", Phone: "09123456789",
				City: "Tehran", Street: "Valiasr St", PostalCode: "1234567890",
				Note: "please call <script>alert(1)</script> before delivery",
			},
			PaymentMethodID: domain.PaymentMethodOnline,
		},
		Cart: domain.CartSnapshot{
			Lines: []domain.CartLine{
				{ProductID: "p1", Quantity: 2, UnitPrice: 150000, Color: "blue"},
				{ProductID: "p2", Quantity: 1, UnitPrice: 300000, Size: "L"},
			},
			Subtotal: 600000,
		},
		Totals:     domain.Totals{Subtotal: 600000, Total: 600000},
		Credential: "tok-1",
	}
}

func TestSubmitBuildsOrderRequest(t *testing.T) {
	orders := &fakeOrderGateway{result: upstream.OrderResult{ID: "ord-9"}}
	carts := &fakeCartGateway{}
	submitter := submitterForTest(t, orders, carts)

	outcome, err := submitter.Submit(context.Background(), submitCommand())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.OrderID != "ord-9" {
		t.Errorf("order id = %q", outcome.OrderID)
	}
	if orders.idemKey != "idem-1" {
		t.Errorf("idempotency key = %q", orders.idemKey)
	}
	if len(orders.req.CartItems) != 2 {
		t.Fatalf("cart items = %d", len(orders.req.CartItems))
	}
	first := orders.req.CartItems[0]
	if first.ProductID != "p1" || first.Quantity != 2 || first.PriceSnapshot != 150000 || first.Color != "blue" {
		t.Errorf("unexpected first line %+v", first)
	}
	if orders.req.TotalAmount != 600000 {
		t.Errorf("total amount = %d", orders.req.TotalAmount)
	}
	if orders.req.Note != "please call  before delivery" {
		t.Errorf("note not sanitized: %q", orders.req.Note)
	}
}

func TestSubmitFailureIssuesNoCleanup(t *testing.T) {
	orders := &fakeOrderGateway{err: &upstream.OrderError{
		Message: "insufficient stock for product p1",
		Kind:    domain.ErrorKindOutOfStock,
		Status:  400,
	}}
	carts := &fakeCartGateway{}
	submitter := submitterForTest(t, orders, carts)

	_, err := submitter.Submit(context.Background(), submitCommand())
	if err == nil {
		t.Fatal("expected error")
	}

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %T", err)
	}
	if subErr.Kind != domain.ErrorKindOutOfStock {
		t.Errorf("kind = %q", subErr.Kind)
	}
	if subErr.Message != "insufficient stock for product p1" {
		t.Errorf("message = %q", subErr.Message)
	}

	if len(carts.removed) != 0 || carts.clearCalls != 0 {
		t.Fatalf("cleanup ran after order failure: removed=%v clear=%d", carts.removed, carts.clearCalls)
	}
}

func TestSubmitTransportFailureIsGeneric(t *testing.T) {
	orders := &fakeOrderGateway{err: errors.New("dial tcp: connection refused")}
	carts := &fakeCartGateway{}
	submitter := submitterForTest(t, orders, carts)

	_, err := submitter.Submit(context.Background(), submitCommand())

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %T", err)
	}
	if subErr.Kind != domain.ErrorKindGeneric {
		t.Errorf("kind = %q", subErr.Kind)
	}
	if len(carts.removed) != 0 || carts.clearCalls != 0 {
		t.Fatal("cleanup ran after transport failure")
	}
}

func TestSubmitSucceedsDespiteCleanupFailures(t *testing.T) {
	orders := &fakeOrderGateway{result: upstream.OrderResult{ID: "ord-1"}}
	carts := &fakeCartGateway{
		removeErr: errors.New("cart service down"),
		clearErr:  errors.New("cart service down"),
	}
	submitter := submitterForTest(t, orders, carts)

	outcome, err := submitter.Submit(context.Background(), submitCommand())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.OrderID != "ord-1" {
		t.Errorf("order id = %q", outcome.OrderID)
	}

	// Cleanup was still attempted for every line plus the safety net.
	if len(carts.removed) != 2 {
		t.Errorf("removed = %v", carts.removed)
	}
	if carts.clearCalls != 1 {
		t.Errorf("clear calls = %d", carts.clearCalls)
	}
}

func TestSubmitCleanupCoversEveryLineThenClears(t *testing.T) {
	orders := &fakeOrderGateway{result: upstream.OrderResult{ID: "ord-2"}}
	carts := &fakeCartGateway{}
	submitter := submitterForTest(t, orders, carts)

	if _, err := submitter.Submit(context.Background(), submitCommand()); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	want := []string{"p1", "p2"}
	if len(carts.removed) != len(want) {
		t.Fatalf("removed = %v", carts.removed)
	}
	for i := range want {
		if carts.removed[i] != want[i] {
			t.Errorf("removed[%d] = %q, want %q", i, carts.removed[i], want[i])
		}
	}
	if carts.clearCalls != 1 {
		t.Errorf("clear calls = %d", carts.clearCalls)
	}
}

func TestSubmitCleanupDeduplicatesProducts(t *testing.T) {
	orders := &fakeOrderGateway{result: upstream.OrderResult{ID: "ord-3"}}
	carts := &fakeCartGateway{}
	submitter := submitterForTest(t, orders, carts)

	cmd := submitCommand()
	// Two variants of p1 share one upstream cart entry.
	cmd.Cart.Lines = append(cmd.Cart.Lines, domain.CartLine{ProductID: "p1", Quantity: 1, UnitPrice: 150000, Color: "red"})
	if _, err := submitter.Submit(context.Background(), cmd); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(carts.removed) != 2 {
		t.Fatalf("removed = %v, want one call per distinct product", carts.removed)
	}
}

func TestSubmitRejectsEmptyCart(t *testing.T) {
	orders := &fakeOrderGateway{}
	carts := &fakeCartGateway{}
	submitter := submitterForTest(t, orders, carts)

	cmd := submitCommand()
	cmd.Cart = domain.CartSnapshot{}
	if _, err := submitter.Submit(context.Background(), cmd); !errors.Is(err, ErrSubmissionInvalidInput) {
		t.Fatalf("expected ErrSubmissionInvalidInput, got %v", err)
	}
	if orders.calls != 0 {
		t.Fatal("order gateway called for empty cart")
	}
}

func TestSubmitRejectsMissingCredential(t *testing.T) {
	orders := &fakeOrderGateway{}
	submitter := submitterForTest(t, orders, &fakeCartGateway{})

	cmd := submitCommand()
	cmd.Credential = ""
	_, err := submitter.Submit(context.Background(), cmd)

	var subErr *SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected *SubmissionError, got %T", err)
	}
	if subErr.Kind != domain.ErrorKindAuth {
		t.Errorf("kind = %q", subErr.Kind)
	}
	if orders.calls != 0 {
		t.Fatal("order gateway called without credential")
	}
}
