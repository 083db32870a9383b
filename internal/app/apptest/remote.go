// Package apptest provides an in-process storefront API and a wired App for
// tests.
package apptest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/felixgeelhaar/storefront/internal/app"
	"github.com/felixgeelhaar/storefront/internal/config"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/storage"
	"github.com/felixgeelhaar/storefront/internal/storage/local"
	"github.com/felixgeelhaar/storefront/internal/token/tokentest"
	"github.com/gorilla/mux"
	"github.com/spf13/afero"
)

// Password is accepted by the fake login endpoint for every known account.
const Password = "secret123"

// Account is a user known to the fake API.
type Account struct {
	ID    string
	Email string
	Role  domain.Role
}

// Remote is a fake storefront API.
type Remote struct {
	Server *httptest.Server

	mu        sync.Mutex
	products  map[string]map[string]any
	accounts  map[string]Account
	tokens    map[string]string
	orders    []map[string]any
	stock     [][]domain.StockUpdate
	prefs     int
	requests  []string
	authHeads []string
}

// NewRemote starts a fake API serving under /api with a small guitar catalog
// and two accounts: user@example.com (role user) and admin@example.com.
func NewRemote(t testing.TB) *Remote {
	t.Helper()

	r := &Remote{
		products: map[string]map[string]any{
			"p1": Product("p1", "Stratocaster", 1200, true),
			"p2": Product("p2", "Telecaster", 900, true),
			"p3": Product("p3", "Les Paul", 2500, false),
		},
		accounts: map[string]Account{
			"user@example.com":  {ID: "u1", Email: "user@example.com", Role: domain.RoleUser},
			"admin@example.com": {ID: "a1", Email: "admin@example.com", Role: domain.RoleAdmin},
		},
		orders: []map[string]any{{
			"_id":        "o1",
			"dateOfSale": "2024-05-01",
			"totalSale":  2100,
			"saleDetails": []map[string]any{
				{"idProduct": "p1", "quantity": 1, "price": 1200},
				{"idProduct": "p2", "quantity": 1, "price": 900},
			},
		}},
	}

	r.tokens = make(map[string]string, len(r.accounts))
	for email, acct := range r.accounts {
		r.tokens[email] = tokentest.Valid(t, acct.ID, string(acct.Role))
	}

	m := mux.NewRouter()
	m.Use(r.record)
	api := m.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", r.login).Methods(http.MethodPost)
	api.HandleFunc("/products", r.listProducts).Methods(http.MethodGet)
	api.HandleFunc("/products/updateStock", r.updateStock).Methods(http.MethodPost)
	api.HandleFunc("/products/delete/{id}", r.deleteProduct).Methods(http.MethodDelete)
	api.HandleFunc("/products/{id}", r.getProduct).Methods(http.MethodGet)
	api.HandleFunc("/blogs", r.listBlogs).Methods(http.MethodGet)
	api.HandleFunc("/users/", r.listUsers).Methods(http.MethodGet)
	api.HandleFunc("/orders", r.listOrders).Methods(http.MethodGet)
	api.HandleFunc("/payment/create_preference", r.createPreference).Methods(http.MethodPost)

	r.Server = httptest.NewServer(m)
	t.Cleanup(r.Server.Close)
	return r
}

// Product builds a catalog entry that passes the product schema.
func Product(id, name string, price float64, available bool) map[string]any {
	return map[string]any{
		"_id":              id,
		"productName":      name,
		"description":      name + " electric guitar",
		"shortDescription": name,
		"price":            price,
		"isAvailable":      available,
		"stock":            10,
		"imageUrl":         "https://img.example/" + id + ".png",
	}
}

// BaseURL returns the API root.
func (r *Remote) BaseURL() string {
	return r.Server.URL + "/api"
}

// Token returns the valid token the fake API issues for email.
func (r *Remote) Token(t testing.TB, email string) string {
	t.Helper()
	tok, ok := r.tokens[email]
	if !ok {
		t.Fatalf("unknown account %q", email)
	}
	return tok
}

// StockUpdates returns every stock decrement received.
func (r *Remote) StockUpdates() [][]domain.StockUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]domain.StockUpdate(nil), r.stock...)
}

// Preferences returns the number of payment preferences created.
func (r *Remote) Preferences() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.prefs
}

// Requests returns "METHOD path" for every request received.
func (r *Remote) Requests() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.requests...)
}

// LastAuthorization returns the Authorization header of the last request.
func (r *Remote) LastAuthorization() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.authHeads) == 0 {
		return ""
	}
	return r.authHeads[len(r.authHeads)-1]
}

func (r *Remote) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.mu.Lock()
		r.requests = append(r.requests, req.Method+" "+strings.TrimPrefix(req.URL.Path, "/api"))
		r.authHeads = append(r.authHeads, req.Header.Get("Authorization"))
		r.mu.Unlock()
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (r *Remote) login(w http.ResponseWriter, req *http.Request) {
	var creds domain.Credentials
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	acct, ok := r.accounts[creds.Email]
	if !ok || creds.Password != Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Credenciales incorrectas"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token": r.tokens[creds.Email],
		"user":  map[string]any{"_id": acct.ID, "email": acct.Email, "role": acct.Role},
	})
}

func (r *Remote) listProducts(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]map[string]any, 0, len(r.products))
	for _, id := range []string{"p1", "p2", "p3"} {
		if p, ok := r.products[id]; ok {
			out = append(out, p)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (r *Remote) getProduct(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	p, ok := r.products[mux.Vars(req)["id"]]
	r.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Producto no encontrado"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (r *Remote) deleteProduct(w http.ResponseWriter, req *http.Request) {
	if !strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token requerido"})
		return
	}
	r.mu.Lock()
	delete(r.products, mux.Vars(req)["id"])
	r.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "deleted"})
}

func (r *Remote) updateStock(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Products []domain.StockUpdate `json:"products"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}
	r.mu.Lock()
	r.stock = append(r.stock, body.Products)
	r.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
}

func (r *Remote) listBlogs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, []map[string]any{{
		"_id":         "b1",
		"title":       "Choosing your first guitar",
		"content":     "Start with something comfortable.",
		"author":      "Staff",
		"imageUrl":    nil,
		"isPublished": true,
	}})
}

func (r *Remote) listUsers(w http.ResponseWriter, req *http.Request) {
	if !strings.HasPrefix(req.Header.Get("Authorization"), "Bearer ") {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "token requerido"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{
		"_id":      "u1",
		"username": "player",
		"email":    "user@example.com",
		"fullName": "Guitar Player",
		"role":     "user",
		"status":   "activo",
	}}})
}

func (r *Remote) listOrders(w http.ResponseWriter, _ *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"orders": r.orders})
}

func (r *Remote) createPreference(w http.ResponseWriter, req *http.Request) {
	var body struct {
		UserID string               `json:"userId"`
		Items  []domain.PaymentItem `json:"items"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil || len(body.Items) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid preference"})
		return
	}
	r.mu.Lock()
	r.prefs++
	n := r.prefs
	r.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     fmt.Sprintf("pref-%s-%d", body.UserID, n),
		"saleId": fmt.Sprintf("sale-%d", n),
	})
}

// NewApp wires an App against r with in-memory storage. now may be nil.
func NewApp(t testing.TB, r *Remote, now func() time.Time) *app.App {
	t.Helper()
	return NewAppWithKV(t, r, MemKV(t), now)
}

// NewAppWithKV wires an App against r using kv.
func NewAppWithKV(t testing.TB, r *Remote, kv storage.KV, now func() time.Time) *app.App {
	t.Helper()

	cfg := config.DefaultLocalConfig()
	cfg.API.BaseURL = r.BaseURL()
	cfg.API.TimeoutSeconds = 2
	cfg.Payment.PublicKey = "TEST-public-key"

	a, err := app.New(context.Background(), app.Options{Config: cfg, KV: kv, Now: now})
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// MemKV returns an empty in-memory store.
func MemKV(t testing.TB) storage.KV {
	t.Helper()
	kv, err := local.NewStore(afero.NewMemMapFs(), "/storefront")
	if err != nil {
		t.Fatalf("local.NewStore() error = %v", err)
	}
	return kv
}
