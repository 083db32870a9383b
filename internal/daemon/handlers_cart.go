package daemon

import (
	"context"
	"errors"
	"net/http"

	"github.com/felixgeelhaar/storefront/internal/cart"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/gorilla/mux"
)

type addItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// cartResponse pairs the cart with the warning the UI should show.
type cartResponse struct {
	Cart    cart.Cart `json:"cart"`
	Warning string    `json:"warning,omitempty"`
}

func newCartResponse(c cart.Cart) cartResponse {
	resp := cartResponse{Cart: c}
	if c.Warning {
		resp.Warning = "a product can be added at most 5 times"
	}
	return resp
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	c, err := s.app.Cart(r.Context())
	if err != nil {
		s.fail(w, "cart unavailable", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, newCartResponse(c))
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		s.jsonError(w, http.StatusBadRequest, "product_id is required", nil)
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	c, err := s.app.AddProduct(r.Context(), req.ProductID, req.Quantity)
	if err != nil {
		s.fail(w, "add to cart failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, newCartResponse(c))
}

func (s *Server) handleIncrease(w http.ResponseWriter, r *http.Request) {
	s.mutateLine(w, r, s.app.Carts.Increase)
}

func (s *Server) handleDecrease(w http.ResponseWriter, r *http.Request) {
	s.mutateLine(w, r, s.app.Carts.Decrease)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	s.mutateLine(w, r, s.app.Carts.Remove)
}

// mutateLine applies a per-line cart operation to the product named in the
// route.
func (s *Server) mutateLine(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, ns, productID string) (cart.Cart, error)) {
	ns, err := s.app.Namespace(r.Context())
	if err != nil {
		s.fail(w, "login required", err)
		return
	}

	c, err := op(r.Context(), ns, mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, "cart update failed", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, newCartResponse(c))
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	ns, err := s.app.Namespace(r.Context())
	if err != nil && !errors.Is(err, domain.ErrNoIdentity) {
		s.fail(w, "clear cart failed", err)
		return
	}

	// Without an identity only the in-memory cart exists
	if err := s.app.Carts.Clear(r.Context(), ns); err != nil {
		s.fail(w, "clear cart failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAckWarning(w http.ResponseWriter, r *http.Request) {
	ns, err := s.app.Namespace(r.Context())
	if err != nil {
		s.fail(w, "login required", err)
		return
	}
	s.app.Carts.AcknowledgeWarning(ns)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	ns, err := s.app.Namespace(r.Context())
	if err != nil {
		s.fail(w, "login required", err)
		return
	}

	handoff, err := s.app.Checkout.Begin(r.Context(), ns)
	if err != nil {
		s.fail(w, "checkout failed", err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, handoff)
}

func (s *Server) handleGetCheckout(w http.ResponseWriter, r *http.Request) {
	ns, err := s.app.Namespace(r.Context())
	if err != nil {
		s.fail(w, "login required", err)
		return
	}

	snap, err := s.app.Checkout.Snapshot(r.Context(), ns)
	if err != nil {
		s.fail(w, "no pending checkout", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"snapshot": snap,
		"total":    snap.Total(),
	})
}

// handlePaymentSuccess settles the pending checkout when the payment
// provider redirects back.
func (s *Server) handlePaymentSuccess(w http.ResponseWriter, r *http.Request) {
	ns, err := s.app.Namespace(r.Context())
	if err != nil {
		s.fail(w, "login required", err)
		return
	}

	res, err := s.app.Checkout.Complete(r.Context(), ns)
	if err != nil {
		s.fail(w, "payment could not be settled", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":   "approved",
		"result":   res,
		"redirect": "/",
	})
}

func (s *Server) handlePaymentReturn(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ns, err := s.app.Namespace(r.Context())
		if err != nil {
			s.fail(w, "login required", err)
			return
		}

		snap, err := s.app.Checkout.Fail(r.Context(), ns, status)
		if err != nil {
			s.fail(w, "payment status unavailable", err)
			return
		}
		s.jsonResponse(w, http.StatusOK, map[string]any{
			"status":   status,
			"snapshot": snap,
			"redirect": "/v1/checkout",
		})
	}
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	if _, err := s.app.Namespace(r.Context()); err != nil {
		s.fail(w, "login required", err)
		return
	}

	history, err := s.app.Orders.History(r.Context())
	if err != nil {
		s.fail(w, "order history unavailable", err)
		return
	}
	s.jsonResponse(w, http.StatusOK, history)
}
