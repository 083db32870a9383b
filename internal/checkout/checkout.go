// Package checkout hands a cart to the payment provider and settles it when
// the provider reports success.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/felixgeelhaar/storefront/internal/cart"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/storage"
)

// DefaultCheckoutURL is the payment widget entry point.
const DefaultCheckoutURL = "https://www.mercadopago.com.ar/checkout/v1/redirect"

// API is the subset of the remote API used by checkout.
type API interface {
	CreatePreference(ctx context.Context, userID string, items []domain.LineItem) (*domain.Preference, error)
	UpdateStock(ctx context.Context, updates []domain.StockUpdate) error
}

// Snapshot is the cart as it was handed to the payment provider.
type Snapshot struct {
	UserID       string            `json:"user_id"`
	PreferenceID string            `json:"preference_id"`
	SaleID       string            `json:"sale_id"`
	Items        []domain.LineItem `json:"items"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Total is the snapshot's order value.
func (s *Snapshot) Total() float64 {
	return domain.Total(s.Items)
}

// Handoff is what the caller needs to open the payment widget.
type Handoff struct {
	Preference  domain.Preference `json:"preference"`
	RedirectURL string            `json:"redirect_url"`
	PublicKey   string            `json:"public_key,omitempty"`
	Items       []domain.LineItem `json:"items"`
	Total       float64           `json:"total"`
}

// Result describes a settled checkout.
type Result struct {
	SaleID string               `json:"sale_id,omitempty"`
	Items  []domain.StockUpdate `json:"items"`
	Total  float64              `json:"total"`
	// Noop is set when there was nothing to settle.
	Noop bool `json:"noop"`
}

// Config configures a Service.
type Config struct {
	CheckoutURL string
	PublicKey   string
}

// Service runs the checkout handoff.
type Service struct {
	api    API
	carts  *cart.Store
	kv     storage.KV
	events *domain.EventDispatcher
	cfg    Config
	now    func() time.Time

	// settle serialises Complete so a repeated success signal settles once.
	settle sync.Mutex
}

// NewService creates a checkout service. events may be nil.
func NewService(api API, carts *cart.Store, kv storage.KV, events *domain.EventDispatcher, cfg Config) *Service {
	if cfg.CheckoutURL == "" {
		cfg.CheckoutURL = DefaultCheckoutURL
	}
	return &Service{
		api:    api,
		carts:  carts,
		kv:     kv,
		events: events,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Begin creates a payment preference for the namespace's cart and records a
// snapshot for Complete.
func (s *Service) Begin(ctx context.Context, ns string) (*Handoff, error) {
	if ns == "" {
		return nil, domain.ErrNoIdentity
	}

	c, err := s.carts.Get(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	if len(c.Items) == 0 {
		return nil, domain.ErrEmptyCart
	}

	pref, err := s.api.CreatePreference(ctx, ns, c.Items)
	if err != nil {
		return nil, err
	}

	snap := Snapshot{
		UserID:       ns,
		PreferenceID: pref.ID,
		SaleID:       pref.SaleID,
		Items:        c.Items,
		CreatedAt:    s.now(),
	}
	if err := s.save(ctx, &snap); err != nil {
		return nil, err
	}

	slog.Info("checkout started",
		"user_id", ns,
		"preference_id", pref.ID,
		"sale_id", pref.SaleID,
		"total", c.Total(),
	)
	s.events.Publish(domain.NewCheckoutStartedEvent(ns, *pref, c.Total()))

	return &Handoff{
		Preference:  *pref,
		RedirectURL: s.redirectURL(pref.ID),
		PublicKey:   s.cfg.PublicKey,
		Items:       c.Items,
		Total:       c.Total(),
	}, nil
}

func (s *Service) redirectURL(prefID string) string {
	u, err := url.Parse(s.cfg.CheckoutURL)
	if err != nil {
		return s.cfg.CheckoutURL
	}
	q := u.Query()
	q.Set("pref_id", prefID)
	u.RawQuery = q.Encode()
	return u.String()
}

// Complete settles a successful payment: it decrements stock for the
// snapshot (or the live cart when no snapshot exists), clears the cart and
// drops the snapshot. With nothing to settle it is a no-op.
func (s *Service) Complete(ctx context.Context, ns string) (*Result, error) {
	if ns == "" {
		return nil, domain.ErrNoIdentity
	}

	s.settle.Lock()
	defer s.settle.Unlock()

	snap, err := s.Snapshot(ctx, ns)
	switch {
	case errors.Is(err, domain.ErrNoSnapshot):
		c, err := s.carts.Get(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("read cart: %w", err)
		}
		snap = &Snapshot{UserID: ns, Items: c.Items}
	case err != nil:
		return nil, err
	}

	if len(snap.Items) == 0 {
		slog.Info("checkout complete: nothing to settle", "user_id", ns)
		return &Result{Noop: true, Items: []domain.StockUpdate{}}, nil
	}

	updates := make([]domain.StockUpdate, 0, len(snap.Items))
	for _, item := range snap.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		updates = append(updates, domain.StockUpdate{ID: item.ProductID, Quantity: qty})
	}

	if err := s.api.UpdateStock(ctx, updates); err != nil {
		slog.Error("stock update failed, cart kept", "user_id", ns, "sale_id", snap.SaleID, "error", err)
		return nil, err
	}

	if err := s.carts.Clear(ctx, ns); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	if err := s.kv.Delete(ctx, storage.CheckoutKey(ns)); err != nil {
		return nil, fmt.Errorf("delete checkout snapshot: %w", err)
	}

	slog.Info("checkout completed", "user_id", ns, "sale_id", snap.SaleID, "total", snap.Total())
	s.events.Publish(domain.NewCheckoutCompletedEvent(ns, snap.SaleID, snap.Items))

	return &Result{SaleID: snap.SaleID, Items: updates, Total: snap.Total()}, nil
}

// Fail records a failed or pending payment. The cart and snapshot are kept
// so the user can retry.
func (s *Service) Fail(ctx context.Context, ns, status string) (*Snapshot, error) {
	if ns == "" {
		return nil, domain.ErrNoIdentity
	}
	snap, err := s.Snapshot(ctx, ns)
	if err != nil && !errors.Is(err, domain.ErrNoSnapshot) {
		return nil, err
	}

	attrs := []any{"user_id", ns, "status", status}
	if snap != nil {
		attrs = append(attrs, "sale_id", snap.SaleID)
	}
	slog.Warn("checkout not completed", attrs...)
	return snap, nil
}

// Snapshot returns the pending checkout of ns, or domain.ErrNoSnapshot.
func (s *Service) Snapshot(ctx context.Context, ns string) (*Snapshot, error) {
	data, err := s.kv.Get(ctx, storage.CheckoutKey(ns))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domain.ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("read checkout snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		slog.Warn("checkout snapshot unreadable, ignoring", "user_id", ns, "error", err)
		return nil, domain.ErrNoSnapshot
	}
	return &snap, nil
}

func (s *Service) save(ctx context.Context, snap *Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode checkout snapshot: %w", err)
	}
	if err := s.kv.Set(ctx, storage.CheckoutKey(snap.UserID), data); err != nil {
		return fmt.Errorf("persist checkout snapshot: %w", err)
	}
	return nil
}
