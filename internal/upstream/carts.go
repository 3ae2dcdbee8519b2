package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// CartsClient talks to the cart service. Both operations are idempotent
// on the upstream side; callers treat failures as best-effort.
type CartsClient struct {
	client *Client
}

// NewCartsClient wraps the shared client.
func NewCartsClient(client *Client) *CartsClient {
	return &CartsClient{client: client}
}

// RemoveItem deletes one product from the caller's cart.
func (c *CartsClient) RemoveItem(ctx context.Context, credential, productID string) error {
	path := fmt.Sprintf("/carts/me/remove-item/%s/", url.PathEscape(productID))
	_, err := c.client.do(ctx, http.MethodDelete, path, credential, nil, nil)
	return err
}

// Clear empties the caller's cart.
func (c *CartsClient) Clear(ctx context.Context, credential string) error {
	_, err := c.client.do(ctx, http.MethodPost, "/carts/me/clear/", credential, nil, nil)
	return err
}
