package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// LoginResponse is the body of a successful password login.
type LoginResponse struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"_id,omitempty"`
		Email string `json:"email,omitempty"`
		Role  string `json:"role"`
	} `json:"user"`
}

// RegisterResponse is the body of a successful registration. Token is set
// only when the API logs the new user in directly.
type RegisterResponse struct {
	Token string       `json:"token,omitempty"`
	User  *domain.User `json:"user,omitempty"`
}

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*LoginResponse, error) {
	if err := domain.Validate("credentials", &creds); err != nil {
		return nil, err
	}

	var out LoginResponse
	if err := c.write(ctx, http.MethodPost, "/auth/login", creds, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	if out.Token == "" {
		return nil, fmt.Errorf("login: %w: no token", ErrBadResponse)
	}
	return &out, nil
}

// Register creates an account. The API answers either with the user or with
// {token, user}.
func (c *Client) Register(ctx context.Context, user domain.User) (*RegisterResponse, error) {
	if user.Password == nil {
		return nil, fmt.Errorf("register: %w: password required", domain.ErrInvalidInput)
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := c.write(ctx, http.MethodPost, "/auth/register", user, &raw); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	var out RegisterResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, fmt.Errorf("register: %w: %v", ErrBadResponse, err)
		}
		if out.User == nil {
			var u domain.User
			if err := json.Unmarshal(raw, &u); err == nil && u.Email != "" {
				out.User = &u
			}
		}
	}
	if out.User != nil {
		out.User.Password = nil
	}
	return &out, nil
}

// OAuthURL is where a browser starts the Google sign-in flow.
func (c *Client) OAuthURL() string {
	return c.URL("/auth/google")
}
