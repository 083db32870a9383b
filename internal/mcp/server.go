// Package mcp exposes the storefront cart and catalog as MCP tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	mcp "github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/mcp-go/server"
	"github.com/felixgeelhaar/storefront/internal/app"
	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/cart"
	"github.com/felixgeelhaar/storefront/internal/domain"
)

// Server wraps the MCP server with storefront functionality
type Server struct {
	mcpServer *server.Server
	app       *app.App
}

// Config contains configuration for the MCP server
type Config struct {
	App     *app.App
	Version string
}

// NewServer creates a new MCP server for the storefront
func NewServer(cfg Config) *Server {
	s := &Server{app: cfg.App}

	version := cfg.Version
	if version == "" {
		version = "0.1.0"
	}

	s.mcpServer = server.New(server.Info{
		Name:    "storefront",
		Version: version,
	}, server.WithInstructions(`
Storefront gives access to a guitar shop's catalog and the logged-in user's cart.
Log in with "storefront login" before using cart tools.

Cart rules:
- A product can appear at most 5 times in the cart.
- Adding past that limit changes nothing and raises a warning; acknowledge it with storefront_cart_ack.
- Decreasing a product at quantity 1 removes it.

Checkout returns a payment URL for the user to open; the cart is cleared once payment succeeds.
`))

	s.registerTools()

	return s
}

// registerTools registers all storefront MCP tools
func (s *Server) registerTools() {
	s.mcpServer.Tool("storefront_products").
		Description("List catalog products. Unavailable products are hidden unless include_unavailable is set.").
		Handler(s.handleProducts)

	s.mcpServer.Tool("storefront_product").
		Description("Get one product by id.").
		Handler(s.handleProduct)

	s.mcpServer.Tool("storefront_cart").
		Description("Show the cart with its total and warning flag.").
		Handler(s.handleCart)

	s.mcpServer.Tool("storefront_cart_add").
		Description("Add a product to the cart. The per-product limit is 5.").
		Handler(s.handleCartAdd)

	s.mcpServer.Tool("storefront_cart_increase").
		Description("Increase a cart line by one.").
		Handler(s.handleCartIncrease)

	s.mcpServer.Tool("storefront_cart_decrease").
		Description("Decrease a cart line by one, removing it at zero.").
		Handler(s.handleCartDecrease)

	s.mcpServer.Tool("storefront_cart_remove").
		Description("Remove a product from the cart.").
		Handler(s.handleCartRemove)

	s.mcpServer.Tool("storefront_cart_clear").
		Description("Empty the cart.").
		Handler(s.handleCartClear)

	s.mcpServer.Tool("storefront_cart_ack").
		Description("Acknowledge the quantity limit warning.").
		Handler(s.handleCartAck)

	s.mcpServer.Tool("storefront_checkout").
		Description("Start checkout and return the payment URL.").
		Handler(s.handleCheckout)

	s.mcpServer.Tool("storefront_whoami").
		Description("Show the logged-in user and role.").
		Handler(s.handleWhoami)
}

// Input/Output types for tools

type ProductsInput struct {
	IncludeUnavailable bool `json:"include_unavailable,omitempty" jsonschema:"description=Also list products that cannot be bought"`
}

type ProductSummary struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Summary     string  `json:"summary"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	IsAvailable bool    `json:"is_available"`
}

type ProductsOutput struct {
	Products []ProductSummary `json:"products"`
}

type ProductInput struct {
	ProductID string `json:"product_id" jsonschema:"description=Product id"`
}

type ProductOutput struct {
	Product     ProductSummary `json:"product"`
	Description string         `json:"description"`
	ImageURL    string         `json:"image_url,omitempty"`
}

type CartAddInput struct {
	ProductID string `json:"product_id" jsonschema:"description=Product id"`
	Quantity  int    `json:"quantity,omitempty" jsonschema:"description=Units to add (default: 1)"`
}

type CartLineInput struct {
	ProductID string `json:"product_id" jsonschema:"description=Product id of the cart line"`
}

type CartInput struct{}

type CartOutput struct {
	Items   []domain.LineItem `json:"items"`
	Total   float64           `json:"total"`
	Units   int               `json:"units"`
	Warning bool              `json:"warning"`
	Message string            `json:"message,omitempty"`
}

type CheckoutOutput struct {
	PaymentURL   string  `json:"payment_url"`
	PreferenceID string  `json:"preference_id"`
	Total        float64 `json:"total"`
}

type WhoamiOutput struct {
	LoggedIn  bool   `json:"logged_in"`
	UserID    string `json:"user_id,omitempty"`
	Role      string `json:"role,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

func summarize(p domain.Product) ProductSummary {
	return ProductSummary{
		ID:          p.ID,
		Name:        p.ProductName,
		Summary:     p.ShortDescription,
		Price:       p.Price,
		Stock:       p.Stock,
		IsAvailable: p.IsAvailable,
	}
}

func cartOutput(c cart.Cart) CartOutput {
	out := CartOutput{
		Items:   c.Items,
		Total:   c.Total(),
		Units:   c.Units(),
		Warning: c.Warning,
	}
	if out.Items == nil {
		out.Items = []domain.LineItem{}
	}
	if c.Warning {
		out.Message = fmt.Sprintf("A product can be added at most %d times.", domain.MaxQuantity)
	}
	return out
}

// Tool handlers

func (s *Server) handleProducts(ctx context.Context, input ProductsInput) (ProductsOutput, error) {
	products, err := s.app.API.Products(ctx)
	if err != nil {
		return ProductsOutput{}, fmt.Errorf("list products: %w", err)
	}

	out := ProductsOutput{Products: make([]ProductSummary, 0, len(products))}
	for _, p := range products {
		if !p.IsAvailable && !input.IncludeUnavailable {
			continue
		}
		out.Products = append(out.Products, summarize(p))
	}
	return out, nil
}

func (s *Server) handleProduct(ctx context.Context, input ProductInput) (ProductOutput, error) {
	p, err := s.app.API.Product(ctx, input.ProductID)
	if err != nil {
		return ProductOutput{}, err
	}
	return ProductOutput{
		Product:     summarize(*p),
		Description: p.Description,
		ImageURL:    p.Image(),
	}, nil
}

func (s *Server) handleCart(ctx context.Context, _ CartInput) (CartOutput, error) {
	c, err := s.app.Cart(ctx)
	if err != nil {
		return CartOutput{}, loginHint(err)
	}
	return cartOutput(c), nil
}

func (s *Server) handleCartAdd(ctx context.Context, input CartAddInput) (CartOutput, error) {
	qty := input.Quantity
	if qty == 0 {
		qty = 1
	}
	c, err := s.app.AddProduct(ctx, input.ProductID, qty)
	if err != nil {
		return CartOutput{}, loginHint(err)
	}
	return cartOutput(c), nil
}

func (s *Server) handleCartIncrease(ctx context.Context, input CartLineInput) (CartOutput, error) {
	return s.mutateLine(ctx, input, s.app.Carts.Increase)
}

func (s *Server) handleCartDecrease(ctx context.Context, input CartLineInput) (CartOutput, error) {
	return s.mutateLine(ctx, input, s.app.Carts.Decrease)
}

func (s *Server) handleCartRemove(ctx context.Context, input CartLineInput) (CartOutput, error) {
	return s.mutateLine(ctx, input, s.app.Carts.Remove)
}

func (s *Server) mutateLine(ctx context.Context, input CartLineInput, op func(ctx context.Context, ns, productID string) (cart.Cart, error)) (CartOutput, error) {
	ns, err := s.app.Namespace(ctx)
	if err != nil {
		return CartOutput{}, loginHint(err)
	}
	c, err := op(ctx, ns, input.ProductID)
	if err != nil {
		return CartOutput{}, err
	}
	return cartOutput(c), nil
}

func (s *Server) handleCartClear(ctx context.Context, _ CartInput) (CartOutput, error) {
	ns, err := s.app.Namespace(ctx)
	if err != nil {
		return CartOutput{}, loginHint(err)
	}
	if err := s.app.Carts.Clear(ctx, ns); err != nil {
		return CartOutput{}, err
	}
	return cartOutput(cart.Cart{}), nil
}

func (s *Server) handleCartAck(ctx context.Context, _ CartInput) (CartOutput, error) {
	ns, err := s.app.Namespace(ctx)
	if err != nil {
		return CartOutput{}, loginHint(err)
	}
	s.app.Carts.AcknowledgeWarning(ns)

	c, err := s.app.Carts.Get(ctx, ns)
	if err != nil {
		return CartOutput{}, err
	}
	return cartOutput(c), nil
}

func (s *Server) handleCheckout(ctx context.Context, _ CartInput) (CheckoutOutput, error) {
	ns, err := s.app.Namespace(ctx)
	if err != nil {
		return CheckoutOutput{}, loginHint(err)
	}

	handoff, err := s.app.Checkout.Begin(ctx, ns)
	if err != nil {
		return CheckoutOutput{}, err
	}
	return CheckoutOutput{
		PaymentURL:   handoff.RedirectURL,
		PreferenceID: handoff.Preference.ID,
		Total:        handoff.Total,
	}, nil
}

func (s *Server) handleWhoami(ctx context.Context, _ CartInput) (WhoamiOutput, error) {
	// Drops an expired session before reporting.
	_, _ = s.app.Namespace(ctx)
	return whoami(s.app.Session.Status()), nil
}

func whoami(st auth.Status) WhoamiOutput {
	out := WhoamiOutput{
		LoggedIn: st.LoggedIn,
		UserID:   st.UserID,
		Role:     st.Role.String(),
	}
	if st.ExpiresAt != nil {
		out.ExpiresAt = st.ExpiresAt.Format("2006-01-02 15:04:05")
	}
	return out
}

// loginHint adds the CLI command that fixes a missing identity.
func loginHint(err error) error {
	if errors.Is(err, domain.ErrNoIdentity) {
		return fmt.Errorf("%w: run 'storefront login' first", err)
	}
	return err
}

// ServeStdio starts the MCP server on stdio
func (s *Server) ServeStdio(ctx context.Context) error {
	return mcp.ServeStdio(ctx, s.mcpServer)
}

// GetMCPServer returns the underlying MCP server (for testing)
func (s *Server) GetMCPServer() *server.Server {
	return s.mcpServer
}
