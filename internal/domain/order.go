package domain

// SaleDetail is one product line of a completed sale.
type SaleDetail struct {
	ProductID string  `json:"idProduct" validate:"required"`
	Quantity  int     `json:"quantity" validate:"gte=1"`
	Price     float64 `json:"price" validate:"gte=0"`
}

// Order is a completed sale as listed by the orders endpoint.
type Order struct {
	ID          string       `json:"_id" validate:"required"`
	DateOfSale  string       `json:"dateOfSale"`
	SaleDetails []SaleDetail `json:"saleDetails" validate:"dive"`
	TotalSale   float64      `json:"totalSale" validate:"gte=0"`
}

// Validate checks the order and each sale detail.
func (o *Order) Validate() error {
	return Validate("order", o)
}

// ProductIDs returns the distinct product ids of the order in first-seen order.
func (o *Order) ProductIDs() []string {
	seen := make(map[string]bool, len(o.SaleDetails))
	var ids []string
	for _, d := range o.SaleDetails {
		if seen[d.ProductID] {
			continue
		}
		seen[d.ProductID] = true
		ids = append(ids, d.ProductID)
	}
	return ids
}

// PaymentItem is one line of a payment preference request.
type PaymentItem struct {
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	ID        string  `json:"_id"`
}

// PaymentItems converts cart lines into payment preference items.
func PaymentItems(items []LineItem) []PaymentItem {
	out := make([]PaymentItem, 0, len(items))
	for _, item := range items {
		out = append(out, PaymentItem{
			Title:     item.ProductName,
			UnitPrice: item.Price,
			Quantity:  item.Quantity,
			ID:        item.ProductID,
		})
	}
	return out
}

// Preference is the payment session handle returned by the API.
type Preference struct {
	ID     string `json:"id" validate:"required"`
	SaleID string `json:"saleId"`
}
