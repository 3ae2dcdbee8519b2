package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// Profile is the subset of the user record used to pre-fill the
// shipping form.
type Profile struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Phone      string `json:"phone_number"`
	Email      string `json:"email"`
	City       string `json:"city"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
}

// UsersClient talks to the identity/profile service.
type UsersClient struct {
	client *Client
}

// NewUsersClient wraps the shared client.
func NewUsersClient(client *Client) *UsersClient {
	return &UsersClient{client: client}
}

// Me fetches the caller's profile. Used best-effort only.
func (c *UsersClient) Me(ctx context.Context, credential string) (Profile, error) {
	body, err := c.client.do(ctx, http.MethodGet, "/users/me/", credential, nil, nil)
	if err != nil {
		return Profile{}, err
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return Profile{}, fmt.Errorf("upstream: decoding profile: %w", err)
	}
	return profile, nil
}
