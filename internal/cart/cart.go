// Package cart implements the per-user shopping cart with its per-product
// quantity ceiling.
package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/storefront/internal/domain"
)

// Cart is a read-only view of one namespace's cart.
type Cart struct {
	Items   []domain.LineItem `json:"items"`
	Warning bool              `json:"warning"`
}

// Total is the sum of price times quantity over all lines.
func (c Cart) Total() float64 {
	return domain.Total(c.Items)
}

// Units is the number of units across all lines.
func (c Cart) Units() int {
	return domain.Units(c.Items)
}

// Find returns the line for productID.
func (c Cart) Find(productID string) (domain.LineItem, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return domain.LineItem{}, false
}

// MarshalJSON includes the derived total.
func (c Cart) MarshalJSON() ([]byte, error) {
	items := c.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	return json.Marshal(struct {
		Items   []domain.LineItem `json:"items"`
		Warning bool              `json:"warning"`
		Total   float64           `json:"total"`
		Units   int               `json:"units"`
	}{items, c.Warning, c.Total(), c.Units()})
}

// number accepts a JSON number or a string holding one.
type number float64

func (n *number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		data = []byte(strings.TrimSpace(s))
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("not a number: %s", data)
	}
	*n = number(f)
	return nil
}

// storedItem is the persisted line shape. Numeric fields are coerced because
// older entries stored them as strings.
type storedItem struct {
	ProductID   string `json:"_id"`
	ProductName string `json:"productName"`
	Price       number `json:"price"`
	ImageURL    string `json:"imageUrl"`
	Quantity    number `json:"quantity"`
}

// decode parses a persisted cart, coercing and validating every line.
func decode(data []byte) ([]domain.LineItem, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var stored []storedItem
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	items := make([]domain.LineItem, 0, len(stored))
	seen := make(map[string]bool, len(stored))
	for i, s := range stored {
		qty := float64(s.Quantity)
		if qty != math.Trunc(qty) {
			return nil, fmt.Errorf("line %d: %w: fractional quantity %v", i, domain.ErrInvalidItem, qty)
		}
		item := domain.LineItem{
			ProductID:   s.ProductID,
			ProductName: s.ProductName,
			Price:       float64(s.Price),
			ImageURL:    s.ImageURL,
			Quantity:    int(qty),
		}
		if err := item.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", i, err)
		}
		if seen[item.ProductID] {
			return nil, fmt.Errorf("line %d: %w: duplicate product %s", i, domain.ErrInvalidItem, item.ProductID)
		}
		seen[item.ProductID] = true
		items = append(items, item)
	}
	return items, nil
}

func encode(items []domain.LineItem) ([]byte, error) {
	if items == nil {
		items = []domain.LineItem{}
	}
	return json.Marshal(items)
}
