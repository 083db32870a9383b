package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// Orders lists the current user's completed sales.
func (c *Client) Orders(ctx context.Context) ([]domain.Order, error) {
	var out struct {
		Orders []domain.Order `json:"orders"`
	}
	if err := c.get(ctx, "/orders", &out); err != nil {
		return nil, fmt.Errorf("fetch orders: %w", err)
	}
	for i := range out.Orders {
		if err := out.Orders[i].Validate(); err != nil {
			return nil, fmt.Errorf("fetch orders: %w", err)
		}
	}
	return out.Orders, nil
}

// CreatePreference opens a payment session for items on behalf of userID.
func (c *Client) CreatePreference(ctx context.Context, userID string, items []domain.LineItem) (*domain.Preference, error) {
	if userID == "" {
		return nil, domain.ErrNoIdentity
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	body := struct {
		UserID string               `json:"userId"`
		Items  []domain.PaymentItem `json:"items"`
	}{userID, domain.PaymentItems(items)}

	var pref domain.Preference
	if err := c.write(ctx, http.MethodPost, "/payment/create_preference", body, &pref); err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	if err := domain.Validate("preference", &pref); err != nil {
		return nil, fmt.Errorf("create preference: %w", err)
	}
	return &pref, nil
}
