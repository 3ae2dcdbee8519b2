package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/arkamarket/checkout/internal/domain"
)

// OrderLine is one purchasable line of the order request.
type OrderLine struct {
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	PriceSnapshot int64  `json:"price_snapshot"`
	Color         string `json:"color,omitempty"`
	Size          string `json:"size,omitempty"`
}

// OrderRequest is the payload accepted by POST /orders/.
type OrderRequest struct {
	CartItems       []OrderLine    `json:"cart_items"`
	ShippingAddress domain.Address `json:"shipping_address"`
	PaymentMethod   string         `json:"payment_method"`
	TotalAmount     int64          `json:"total_amount"`
	Note            string         `json:"note,omitempty"`
}

// OrderResult is the trimmed success response of order creation.
type OrderResult struct {
	ID string `json:"id"`
}

// OrderError is a failed order creation, already normalized.
type OrderError struct {
	Message string
	Kind    domain.ErrorKind
	Status  int
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	return fmt.Sprintf("order creation failed (%d): %s", e.Status, e.Message)
}

// OrdersClient talks to the order service.
type OrdersClient struct {
	client *Client
}

// NewOrdersClient wraps the shared client.
func NewOrdersClient(client *Client) *OrdersClient {
	return &OrdersClient{client: client}
}

// CreateOrder submits the order. idempotencyKey deduplicates retries on
// the order service side; an empty key omits the header.
func (c *OrdersClient) CreateOrder(ctx context.Context, credential string, req OrderRequest, idempotencyKey string) (OrderResult, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{"Idempotency-Key": idempotencyKey}
	}

	body, err := c.client.do(ctx, http.MethodPost, "/orders/", credential, req, headers)
	if err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) {
			message, kind := Normalize(statusErr.Body)
			if statusErr.Status == http.StatusUnauthorized || statusErr.Status == http.StatusForbidden {
				kind = domain.ErrorKindAuth
			}
			return OrderResult{}, &OrderError{Message: message, Kind: kind, Status: statusErr.Status}
		}
		return OrderResult{}, err
	}

	var result struct {
		ID      json.Number `json:"id"`
		OrderID json.Number `json:"order_id"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return OrderResult{}, fmt.Errorf("upstream: decoding order response: %w", err)
	}

	id := result.ID.String()
	if id == "" {
		id = result.OrderID.String()
	}
	if id == "" {
		return OrderResult{}, errors.New("upstream: order response missing id")
	}
	return OrderResult{ID: id}, nil
}
