package cart

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/storage"
	"github.com/felixgeelhaar/storefront/internal/storage/local"
	"github.com/felixgeelhaar/storefront/internal/token/tokentest"
	"github.com/spf13/afero"
)

func newKV(t *testing.T) storage.KV {
	t.Helper()
	kv, err := local.NewStore(afero.NewMemMapFs(), "/storefront")
	if err != nil {
		t.Fatalf("local.NewStore() error = %v", err)
	}
	return kv
}

func guitar(id string, qty int) domain.LineItem {
	return domain.LineItem{
		ProductID:   id,
		ProductName: "Guitar " + id,
		Price:       100,
		ImageURL:    "https://img.example/" + id,
		Quantity:    qty,
	}
}

func TestAdd_MergeNeverExceedsCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)

	for i := 0; i < 10; i++ {
		c, err := s.Add(ctx, "u1", guitar("p1", 2))
		if err != nil {
			t.Fatalf("Add() error = %v", err)
		}
		line, ok := c.Find("p1")
		if !ok {
			t.Fatal("line missing after Add")
		}
		if line.Quantity > domain.MaxQuantity {
			t.Fatalf("quantity = %d, exceeds ceiling", line.Quantity)
		}
	}

	c, _ := s.Get(ctx, "u1")
	line, _ := c.Find("p1")
	if line.Quantity != 4 {
		t.Errorf("quantity = %d, want 4", line.Quantity)
	}
	if !c.Warning {
		t.Error("warning not set after overflowing Add")
	}
}

func TestAdd_OverflowLeavesCartUnchanged(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)

	if _, err := s.Add(ctx, "u1", guitar("x", 3)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	c, err := s.Add(ctx, "u1", guitar("x", 3))
	if err != nil {
		t.Fatalf("second Add() error = %v", err)
	}

	if len(c.Items) != 1 || c.Items[0].Quantity != 3 {
		t.Errorf("items = %+v, want x at 3", c.Items)
	}
	if !c.Warning {
		t.Error("Warning = false, want true")
	}
}

func TestAdd_NewLineAboveCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)

	c, err := s.Add(ctx, "u1", guitar("p1", 6))
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("items = %+v, want empty", c.Items)
	}
	if !c.Warning {
		t.Error("Warning = false, want true")
	}
}

func TestAdd_Invalid(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)

	tests := []struct {
		name string
		item domain.LineItem
	}{
		{"zero quantity", guitar("p1", 0)},
		{"no product id", guitar("", 1)},
		{"free", domain.LineItem{ProductID: "p1", ProductName: "Pick", Price: 0, Quantity: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Add(ctx, "u1", tt.item)
			if !errors.Is(err, domain.ErrInvalidItem) {
				t.Errorf("Add() error = %v, want ErrInvalidItem", err)
			}
		})
	}

	c, _ := s.Get(ctx, "u1")
	if len(c.Items) != 0 {
		t.Errorf("invalid adds changed the cart: %+v", c.Items)
	}
}

func TestAdd_InvalidNewLineAboveCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)

	free := domain.LineItem{ProductID: "p1", ProductName: "Pick", Price: 0, Quantity: 6}
	c, err := s.Add(ctx, "u1", free)
	if !errors.Is(err, domain.ErrInvalidItem) {
		t.Fatalf("Add() error = %v, want ErrInvalidItem", err)
	}
	if c.Warning || s.Warning("u1") {
		t.Error("invalid line raised the ceiling warning")
	}
	if len(c.Items) != 0 {
		t.Errorf("items = %+v, want empty", c.Items)
	}
}

func TestAdd_RequiresIdentity(t *testing.T) {
	s := NewStore(newKV(t), nil)
	if _, err := s.Add(context.Background(), "", guitar("p1", 1)); !errors.Is(err, domain.ErrNoIdentity) {
		t.Errorf("Add() error = %v, want ErrNoIdentity", err)
	}
}

func TestIncrease_StopsAtCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)
	s.Add(ctx, "u1", guitar("y", 4))

	c, err := s.Increase(ctx, "u1", "y")
	if err != nil {
		t.Fatalf("Increase() error = %v", err)
	}
	if line, _ := c.Find("y"); line.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", line.Quantity)
	}
	if c.Warning {
		t.Error("warning set on reaching the ceiling")
	}

	c, err = s.Increase(ctx, "u1", "y")
	if err != nil {
		t.Fatalf("Increase() error = %v", err)
	}
	if line, _ := c.Find("y"); line.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", line.Quantity)
	}
	if !c.Warning {
		t.Error("warning not set past the ceiling")
	}
}

func TestDecrease_RemovesAtOne(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)
	s.Add(ctx, "u1", guitar("a", 1))
	s.Add(ctx, "u1", guitar("b", 2))

	c, err := s.Decrease(ctx, "u1", "a")
	if err != nil {
		t.Fatalf("Decrease() error = %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(c.Items))
	}
	if _, ok := c.Find("a"); ok {
		t.Error("line a still present")
	}

	c, _ = s.Decrease(ctx, "u1", "b")
	if line, _ := c.Find("b"); line.Quantity != 1 {
		t.Errorf("b quantity = %d, want 1", line.Quantity)
	}
}

func TestStep_MissingItem(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)

	if _, err := s.Increase(ctx, "u1", "nope"); !errors.Is(err, domain.ErrItemMissing) {
		t.Errorf("Increase() error = %v, want ErrItemMissing", err)
	}
	if _, err := s.Decrease(ctx, "u1", "nope"); !errors.Is(err, domain.ErrItemMissing) {
		t.Errorf("Decrease() error = %v, want ErrItemMissing", err)
	}
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)
	s.Add(ctx, "u1", guitar("a", 5))
	s.Add(ctx, "u1", guitar("b", 1))

	c, err := s.Remove(ctx, "u1", "a")
	if err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].ProductID != "b" {
		t.Errorf("items = %+v, want only b", c.Items)
	}

	if _, err := s.Remove(ctx, "u1", "missing"); err != nil {
		t.Errorf("Remove(missing) error = %v", err)
	}
}

func TestClearThenLoad(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	s := NewStore(kv, nil)
	s.Add(ctx, "u1", guitar("a", 2))

	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	c, err := s.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("items = %+v, want empty", c.Items)
	}
	if _, err := kv.Get(ctx, storage.CartKey("u1")); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cart entry still persisted: %v", err)
	}
}

func TestClear_WithoutIdentity(t *testing.T) {
	s := NewStore(newKV(t), nil)
	if err := s.Clear(context.Background(), ""); err != nil {
		t.Errorf("Clear(\"\") error = %v", err)
	}
}

func TestLoad_FreshStoreReproducesCart(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)

	first := NewStore(kv, nil)
	if _, err := first.Add(ctx, "u1", guitar("p", 2)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	second := NewStore(kv, nil)
	c, err := second.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Items) != 1 || c.Items[0].ProductID != "p" || c.Items[0].Quantity != 2 {
		t.Errorf("items = %+v, want one line p x2", c.Items)
	}
}

func TestLoad_NamespacesAreSeparate(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)
	s.Add(ctx, "u1", guitar("a", 1))

	c, err := s.Load(ctx, "u2")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("u2 sees u1's cart: %+v", c.Items)
	}
}

func TestLoad_CoercesStringNumbers(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	raw := `[{"_id":"p1","productName":"Strat","price":"12.5","imageUrl":"","quantity":"2","stock":10}]`
	if err := kv.Set(ctx, storage.CartKey("u1"), []byte(raw)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	c, err := NewStore(kv, nil).Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(c.Items))
	}
	if c.Items[0].Price != 12.5 || c.Items[0].Quantity != 2 {
		t.Errorf("line = %+v", c.Items[0])
	}
	if c.Total() != 25 {
		t.Errorf("Total() = %v, want 25", c.Total())
	}
}

func TestLoad_InvalidResetsToEmpty(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{{`},
		{"over ceiling", `[{"_id":"p1","productName":"Strat","price":10,"quantity":6}]`},
		{"zero price", `[{"_id":"p1","productName":"Strat","price":0,"quantity":1}]`},
		{"fractional quantity", `[{"_id":"p1","productName":"Strat","price":10,"quantity":1.5}]`},
		{"duplicate product", `[{"_id":"p1","productName":"Strat","price":10,"quantity":1},{"_id":"p1","productName":"Strat","price":10,"quantity":1}]`},
		{"non numeric string", `[{"_id":"p1","productName":"Strat","price":"cheap","quantity":1}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := newKV(t)
			kv.Set(ctx, storage.CartKey("u1"), []byte(tt.raw))

			s := NewStore(kv, nil)
			c, err := s.Load(ctx, "u1")
			if err == nil {
				t.Fatal("Load() error = nil, want validation error")
			}
			if len(c.Items) != 0 {
				t.Errorf("items = %+v, want empty", c.Items)
			}
		})
	}
}

func TestLoad_WithoutIdentity(t *testing.T) {
	s := NewStore(newKV(t), nil)
	c, err := s.Load(context.Background(), "")
	if !errors.Is(err, domain.ErrNoIdentity) {
		t.Errorf("Load() error = %v, want ErrNoIdentity", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("items = %+v, want empty", c.Items)
	}
}

func TestExpiredSessionYieldsEmptyCart(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)

	sessions, err := auth.NewStore(ctx, kv)
	if err != nil {
		t.Fatalf("auth.NewStore() error = %v", err)
	}
	carts := NewStore(kv, nil)
	carts.Add(ctx, "u1", guitar("p", 1))

	sessions.SetToken(ctx, tokentest.Expired(t, "u1", "user"))
	if _, err := sessions.Authorize(ctx); !errors.Is(err, auth.ErrSessionExpired) {
		t.Fatalf("Authorize() error = %v, want ErrSessionExpired", err)
	}

	c, err := carts.Load(ctx, sessions.UserID())
	if !errors.Is(err, domain.ErrNoIdentity) {
		t.Errorf("Load() error = %v, want ErrNoIdentity", err)
	}
	if len(c.Items) != 0 {
		t.Errorf("items = %+v, want empty", c.Items)
	}
}

func TestWarning_Acknowledge(t *testing.T) {
	ctx := context.Background()
	events := domain.NewEventDispatcher()
	var published int
	events.Subscribe(domain.EventCeilingExceeded, func(domain.Event) { published++ })

	s := NewStore(newKV(t), events)
	s.Add(ctx, "u1", guitar("p", 5))
	s.Add(ctx, "u1", guitar("p", 1))
	s.Increase(ctx, "u1", "p")

	if !s.Warning("u1") {
		t.Fatal("Warning() = false after violations")
	}
	if published != 2 {
		t.Errorf("published %d ceiling events, want 2", published)
	}

	s.AcknowledgeWarning("u1")
	if s.Warning("u1") {
		t.Error("Warning() = true after acknowledge")
	}
}

func TestConcurrentAddsRespectCeiling(t *testing.T) {
	ctx := context.Background()
	s := NewStore(newKV(t), nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(ctx, "u1", guitar("p", 1))
		}()
	}
	wg.Wait()

	c, _ := s.Get(ctx, "u1")
	line, _ := c.Find("p")
	if line.Quantity != domain.MaxQuantity {
		t.Errorf("quantity = %d, want %d", line.Quantity, domain.MaxQuantity)
	}
	if !c.Warning {
		t.Error("warning not set")
	}
}

func TestForget_ReloadsPersistedCart(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	s := NewStore(kv, nil)

	if _, err := s.Add(ctx, "u1", guitar("p1", 2)); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Forget("u1")

	c, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if line, ok := c.Find("p1"); !ok || line.Quantity != 2 {
		t.Errorf("items = %+v, want p1 at 2", c.Items)
	}
}

func TestForget_ConcurrentWithAdds(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	s := NewStore(kv, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := s.Add(ctx, "u1", guitar("p", 1)); err != nil {
				t.Errorf("Add() error = %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			s.Forget("u1")
		}()
	}
	wg.Wait()

	// Every add lands on the persisted cart, whether or not a Forget ran
	// in between.
	fresh := NewStore(kv, nil)
	c, err := fresh.Load(ctx, "u1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if line, _ := c.Find("p"); line.Quantity != 4 {
		t.Errorf("persisted quantity = %d, want 4", line.Quantity)
	}

	s.Forget("u1")
	c, _ = s.Get(ctx, "u1")
	if line, _ := c.Find("p"); line.Quantity != 4 {
		t.Errorf("reloaded quantity = %d, want 4", line.Quantity)
	}
}

func TestCartJSONIncludesTotal(t *testing.T) {
	c := Cart{Items: []domain.LineItem{guitar("a", 2), guitar("b", 1)}}
	data, err := c.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON() error = %v", err)
	}
	want := `"total":300`
	if !strings.Contains(string(data), want) {
		t.Errorf("json = %s, want %s", data, want)
	}
}
