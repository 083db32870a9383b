package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/storage"
)

// Store holds one cart per user namespace and persists each under
// storage.CartKey. The empty namespace is the anonymous cart: it lives in
// memory only and rejects additions.
type Store struct {
	kv     storage.KV
	events *domain.EventDispatcher

	mu    sync.Mutex
	carts map[string]*state
}

type state struct {
	mu      sync.Mutex
	loaded  bool
	items   []domain.LineItem
	warning bool
}

// NewStore creates a cart store over kv. events may be nil.
func NewStore(kv storage.KV, events *domain.EventDispatcher) *Store {
	return &Store{
		kv:     kv,
		events: events,
		carts:  make(map[string]*state),
	}
}

// cart returns the state for ns with its mutex held.
func (s *Store) cart(ns string) *state {
	s.mu.Lock()
	st, ok := s.carts[ns]
	if !ok {
		st = &state{}
		s.carts[ns] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	return st
}

func (st *state) snapshot() Cart {
	return Cart{Items: slices.Clone(st.items), Warning: st.warning}
}

// Load reads the namespace's persisted cart. With no namespace the anonymous
// cart is reset and domain.ErrNoIdentity is returned. A persisted cart that
// fails validation is dropped: the cart resets to empty and the error is
// returned.
func (s *Store) Load(ctx context.Context, ns string) (Cart, error) {
	st := s.cart(ns)
	defer st.mu.Unlock()

	if ns == "" {
		st.items = nil
		st.loaded = true
		slog.Warn("cart load without identity")
		return st.snapshot(), domain.ErrNoIdentity
	}

	err := s.load(ctx, ns, st)
	return st.snapshot(), err
}

func (s *Store) load(ctx context.Context, ns string, st *state) error {
	data, err := s.kv.Get(ctx, storage.CartKey(ns))
	switch {
	case errors.Is(err, storage.ErrNotFound):
		st.items = nil
		st.loaded = true
		return nil
	case err != nil:
		return fmt.Errorf("read cart: %w", err)
	}

	items, err := decode(data)
	st.loaded = true
	if err != nil {
		st.items = nil
		slog.Warn("stored cart invalid, starting empty", "user_id", ns, "error", err)
		return err
	}
	st.items = items
	return nil
}

// ensure loads ns once before its first read or mutation. An invalid stored
// cart has already been reset and logged, so only read failures surface.
func (s *Store) ensure(ctx context.Context, ns string, st *state) error {
	if st.loaded || ns == "" {
		return nil
	}
	err := s.load(ctx, ns, st)
	if err != nil && !st.loaded {
		return err
	}
	return nil
}

// Get returns the namespace's cart, loading it on first use.
func (s *Store) Get(ctx context.Context, ns string) (Cart, error) {
	st := s.cart(ns)
	defer st.mu.Unlock()

	if ns == "" {
		return st.snapshot(), domain.ErrNoIdentity
	}
	if err := s.ensure(ctx, ns, st); err != nil {
		return Cart{}, err
	}
	return st.snapshot(), nil
}

// Add puts item into the cart. When the product already has a line the
// quantities are summed. A result above domain.MaxQuantity leaves the cart
// unchanged and raises the warning; this is not an error.
func (s *Store) Add(ctx context.Context, ns string, item domain.LineItem) (Cart, error) {
	st := s.cart(ns)
	defer st.mu.Unlock()

	if ns == "" {
		return st.snapshot(), domain.ErrNoIdentity
	}
	if item.Quantity < 1 {
		return st.snapshot(), fmt.Errorf("%w: quantity %d", domain.ErrInvalidItem, item.Quantity)
	}
	if err := s.ensure(ctx, ns, st); err != nil {
		return Cart{}, err
	}

	items := slices.Clone(st.items)
	idx := slices.IndexFunc(items, func(l domain.LineItem) bool { return l.ProductID == item.ProductID })
	requested := item.Quantity
	if idx >= 0 {
		requested += items[idx].Quantity
	} else {
		// Quantity is judged by the ceiling below; the rest of the line must
		// be well formed before a warning can be raised for it.
		shape := item
		shape.Quantity = 1
		if err := shape.Validate(); err != nil {
			return st.snapshot(), fmt.Errorf("%w: %w", domain.ErrInvalidItem, err)
		}
	}
	if requested > domain.MaxQuantity {
		s.reject(ns, st, item.ProductID, requested)
		return st.snapshot(), nil
	}

	if idx >= 0 {
		items[idx].Quantity = requested
	} else {
		items = append(items, item)
	}

	if err := s.commit(ctx, ns, st, items); err != nil {
		return st.snapshot(), err
	}
	return st.snapshot(), nil
}

// Increase adds one unit of productID. At the ceiling the cart is unchanged
// and the warning is raised.
func (s *Store) Increase(ctx context.Context, ns, productID string) (Cart, error) {
	return s.step(ctx, ns, productID, +1)
}

// Decrease removes one unit of productID, dropping the line when it reaches
// zero.
func (s *Store) Decrease(ctx context.Context, ns, productID string) (Cart, error) {
	return s.step(ctx, ns, productID, -1)
}

func (s *Store) step(ctx context.Context, ns, productID string, delta int) (Cart, error) {
	st := s.cart(ns)
	defer st.mu.Unlock()

	if ns == "" {
		return st.snapshot(), domain.ErrNoIdentity
	}
	if err := s.ensure(ctx, ns, st); err != nil {
		return Cart{}, err
	}

	idx := slices.IndexFunc(st.items, func(l domain.LineItem) bool { return l.ProductID == productID })
	if idx < 0 {
		return st.snapshot(), fmt.Errorf("%w: %s", domain.ErrItemMissing, productID)
	}

	qty := st.items[idx].Quantity + delta
	if qty > domain.MaxQuantity {
		s.reject(ns, st, productID, qty)
		return st.snapshot(), nil
	}

	items := slices.Clone(st.items)
	if qty < 1 {
		items = slices.Delete(items, idx, idx+1)
	} else {
		items[idx].Quantity = qty
	}

	if err := s.commit(ctx, ns, st, items); err != nil {
		return st.snapshot(), err
	}
	return st.snapshot(), nil
}

// Remove drops the line for productID. A missing line is not an error.
func (s *Store) Remove(ctx context.Context, ns, productID string) (Cart, error) {
	st := s.cart(ns)
	defer st.mu.Unlock()

	if ns == "" {
		return st.snapshot(), domain.ErrNoIdentity
	}
	if err := s.ensure(ctx, ns, st); err != nil {
		return Cart{}, err
	}

	items := slices.DeleteFunc(slices.Clone(st.items), func(l domain.LineItem) bool {
		return l.ProductID == productID
	})
	if err := s.commit(ctx, ns, st, items); err != nil {
		return st.snapshot(), err
	}
	return st.snapshot(), nil
}

// Clear empties the cart and deletes its persisted entry. Without a
// namespace only the in-memory cart is emptied.
func (s *Store) Clear(ctx context.Context, ns string) error {
	st := s.cart(ns)
	defer st.mu.Unlock()

	if ns != "" {
		if err := s.kv.Delete(ctx, storage.CartKey(ns)); err != nil {
			return fmt.Errorf("delete cart: %w", err)
		}
	}
	st.items = nil
	st.loaded = true
	return nil
}

// Forget drops the in-memory cart of ns. The persisted entry is kept and is
// read again on next use.
// The entry stays in the map so that callers already holding it observe the
// reset instead of writing to a detached copy.
func (s *Store) Forget(ns string) {
	st := s.cart(ns)
	defer st.mu.Unlock()
	st.items = nil
	st.loaded = false
	st.warning = false
}

// Warning reports whether a ceiling violation is pending acknowledgement.
func (s *Store) Warning(ns string) bool {
	st := s.cart(ns)
	defer st.mu.Unlock()
	return st.warning
}

// AcknowledgeWarning resets the warning flag.
func (s *Store) AcknowledgeWarning(ns string) {
	st := s.cart(ns)
	defer st.mu.Unlock()
	st.warning = false
}

func (s *Store) reject(ns string, st *state, productID string, requested int) {
	st.warning = true
	slog.Info("cart ceiling exceeded",
		"user_id", ns,
		"product_id", productID,
		"requested", requested,
		"max", domain.MaxQuantity,
	)
	s.events.Publish(domain.NewCeilingExceededEvent(ns, productID, requested))
}

// commit persists items and adopts them only once the write succeeded.
func (s *Store) commit(ctx context.Context, ns string, st *state, items []domain.LineItem) error {
	data, err := encode(items)
	if err != nil {
		return fmt.Errorf("encode cart: %w", err)
	}
	if err := s.kv.Set(ctx, storage.CartKey(ns), data); err != nil {
		return fmt.Errorf("persist cart: %w", err)
	}
	st.items = items
	return nil
}
