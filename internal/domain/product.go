package domain

// Product is a catalog entry as served by the storefront API.
type Product struct {
	ID               string  `json:"_id" validate:"required"`
	ProductName      string  `json:"productName" validate:"min=3"`
	Description      string  `json:"description" validate:"min=4"`
	ShortDescription string  `json:"shortDescription" validate:"min=3"`
	Price            float64 `json:"price" validate:"gte=1"`
	IsAvailable      bool    `json:"isAvailable"`
	Stock            int     `json:"stock" validate:"gte=0,lte=50"`
	ImageURL         *string `json:"imageUrl"`
}

// Validate checks the product against the catalog schema.
func (p *Product) Validate() error {
	return Validate("product", p)
}

// Image returns the image URL or an empty string.
func (p *Product) Image() string {
	if p.ImageURL == nil {
		return ""
	}
	return *p.ImageURL
}

// StockUpdate is one entry of a stock decrement request.
type StockUpdate struct {
	ID       string `json:"id"`
	Quantity int    `json:"quantity"`
}
