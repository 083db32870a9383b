package domain

// MaxQuantity is the per-product quantity ceiling of a cart.
const MaxQuantity = 5

// LineItem is one product's entry in a cart.
type LineItem struct {
	ProductID   string  `json:"_id" validate:"required"`
	ProductName string  `json:"productName" validate:"required"`
	Price       float64 `json:"price" validate:"gt=0"`
	ImageURL    string  `json:"imageUrl"`
	Quantity    int     `json:"quantity" validate:"gte=1,lte=5"`
}

// NewLineItem builds a line item for qty units of p.
func NewLineItem(p Product, qty int) LineItem {
	return LineItem{
		ProductID:   p.ID,
		ProductName: p.ProductName,
		Price:       p.Price,
		ImageURL:    p.Image(),
		Quantity:    qty,
	}
}

// Validate checks the line item shape, including the quantity bounds.
func (l *LineItem) Validate() error {
	return Validate("line item", l)
}

// Subtotal returns price times quantity.
func (l LineItem) Subtotal() float64 {
	return l.Price * float64(l.Quantity)
}

// Total sums the subtotals of items.
func Total(items []LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.Subtotal()
	}
	return total
}

// Units sums the quantities of items.
func Units(items []LineItem) int {
	var n int
	for _, item := range items {
		n += item.Quantity
	}
	return n
}
