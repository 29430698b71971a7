package user

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// User is the slice of the account profile checkout needs: an identity to
// stamp on orders and an email address for confirmations.
type User struct {
	ID              string `json:"userId"`
	Email           string `json:"email"`
	Name            string `json:"name"`
	ShippingAddress string `json:"shippingAddress"`
}

// Directory resolves user ids to profiles.
type Directory interface {
	Lookup(ctx context.Context, userID string) (*User, error)
}

// HTTPDirectory talks to the user service over its JSON API.
type HTTPDirectory struct {
	baseURL *url.URL
	http    *http.Client
}

func NewHTTPDirectory(baseURL string, timeout time.Duration) (*HTTPDirectory, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid user service base url %q: %w", baseURL, err)
	}
	return &HTTPDirectory{
		baseURL: u,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// Lookup returns (nil, nil) when the user does not exist.
func (d *HTTPDirectory) Lookup(ctx context.Context, userID string) (*User, error) {
	rel := &url.URL{Path: "/api/users/" + userID}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL.ResolveReference(rel).String(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user service request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var u User
		if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
			return nil, fmt.Errorf("decode user %s: %w", userID, err)
		}
		return &u, nil
	case http.StatusNotFound:
		return nil, nil
	default:
		return nil, fmt.Errorf("user service returned %d for user %s", resp.StatusCode, userID)
	}
}
