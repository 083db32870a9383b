// Package orders assembles the order history view: each sale joined with the
// catalog details of the products it contains.
package orders

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/sourcegraph/conc/pool"
)

const defaultWorkers = 4

// API is the subset of the remote API used for order history.
type API interface {
	Orders(ctx context.Context) ([]domain.Order, error)
	Product(ctx context.Context, id string) (*domain.Product, error)
}

// Line is a sale detail with its product's display fields.
type Line struct {
	domain.SaleDetail
	ProductName string  `json:"product_name,omitempty"`
	ImageURL    string  `json:"image_url,omitempty"`
	Subtotal    float64 `json:"subtotal"`
}

// Entry is one order in the history.
type Entry struct {
	ID         string  `json:"id"`
	DateOfSale string  `json:"date_of_sale"`
	TotalSale  float64 `json:"total_sale"`
	Lines      []Line  `json:"lines"`
}

// History is the assembled order history.
type History struct {
	Orders []Entry `json:"orders"`
	// Missing lists product ids that could not be loaded.
	Missing []string `json:"missing,omitempty"`
}

// Service builds order histories.
type Service struct {
	api     API
	workers int
}

// NewService creates a service that fetches at most workers products at once.
func NewService(api API, workers int) *Service {
	if workers <= 0 {
		workers = defaultWorkers
	}
	return &Service{api: api, workers: workers}
}

// History fetches the orders and the products they reference. Products are
// fetched concurrently; one that fails to load is reported in Missing and its
// lines render without details.
func (s *Service) History(ctx context.Context) (*History, error) {
	orders, err := s.api.Orders(ctx)
	if err != nil {
		return nil, err
	}

	ids := productIDs(orders)
	products, missing := s.fetchProducts(ctx, ids)

	h := &History{Orders: make([]Entry, 0, len(orders))}
	for _, o := range orders {
		entry := Entry{
			ID:         o.ID,
			DateOfSale: o.DateOfSale,
			TotalSale:  o.TotalSale,
			Lines:      make([]Line, 0, len(o.SaleDetails)),
		}
		for _, d := range o.SaleDetails {
			line := Line{SaleDetail: d, Subtotal: d.Price * float64(d.Quantity)}
			if p, ok := products[d.ProductID]; ok {
				line.ProductName = p.ProductName
				line.ImageURL = p.Image()
			}
			entry.Lines = append(entry.Lines, line)
		}
		h.Orders = append(h.Orders, entry)
	}

	// Keep Missing in first-seen order.
	for _, id := range ids {
		if missing[id] {
			h.Missing = append(h.Missing, id)
		}
	}
	return h, nil
}

func (s *Service) fetchProducts(ctx context.Context, ids []string) (map[string]*domain.Product, map[string]bool) {
	products := make(map[string]*domain.Product, len(ids))
	missing := make(map[string]bool)
	var mu sync.Mutex

	workerPool := pool.New().WithMaxGoroutines(s.workers)
	for _, id := range ids {
		workerPool.Go(func() {
			p, err := s.api.Product(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("order product unavailable", "product_id", id, "error", err)
				missing[id] = true
				return
			}
			products[id] = p
		})
	}
	workerPool.Wait()

	if len(missing) > 0 {
		slog.Info("order history assembled with gaps",
			"products", len(ids),
			"missing", len(missing))
	}
	return products, missing
}

func productIDs(orders []domain.Order) []string {
	seen := make(map[string]bool)
	var ids []string
	for i := range orders {
		for _, id := range orders[i].ProductIDs() {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids
}

// String renders a compact summary, used by the CLI.
func (e Entry) String() string {
	return fmt.Sprintf("%s  %s  %d lines  $%.2f", e.ID, e.DateOfSale, len(e.Lines), e.TotalSale)
}
