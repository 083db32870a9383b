package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// Users lists all accounts. Admin only.
func (c *Client) Users(ctx context.Context) ([]domain.User, error) {
	var out struct {
		Data []domain.User `json:"data"`
	}
	if err := c.get(ctx, "/users/", &out); err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	for i := range out.Data {
		if err := out.Data[i].Validate(); err != nil {
			return nil, fmt.Errorf("fetch users: %w", err)
		}
	}
	return out.Data, nil
}

// User fetches one account.
func (c *Client) User(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	if err := c.get(ctx, "/users/"+url.PathEscape(id), &u); err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return &u, nil
}

// UpdateUser replaces the account with id.
func (c *Client) UpdateUser(ctx context.Context, id string, user domain.User) (*domain.User, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	user.ID = id

	var out domain.User
	if err := c.write(ctx, http.MethodPut, "/users/update/"+url.PathEscape(id), user, &out); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("update user %s: %w", id, err)
	}
	return &out, nil
}

// DeleteUser removes an account.
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	if err := c.write(ctx, http.MethodDelete, "/users/delete/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}
