package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/storefront/internal/app"
	"github.com/felixgeelhaar/storefront/internal/app/apptest"
	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/client"
	"github.com/felixgeelhaar/storefront/internal/config"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/token/tokentest"
)

type testServer struct {
	*Server
	remote *apptest.Remote
	app    *app.App
}

// setupTestServer creates a daemon backed by a fake storefront API
func setupTestServer(t *testing.T, now func() time.Time) *testServer {
	t.Helper()

	remote := apptest.NewRemote(t)
	a := apptest.NewApp(t, remote, now)

	cfg := config.DefaultLocalConfig()
	cfg.API.BaseURL = remote.BaseURL()
	cfg.Daemon.LoginRate = 3

	s := NewServer(ServerConfig{Config: cfg, App: a})
	t.Cleanup(func() { s.limiter.Close() })

	return &testServer{Server: s, remote: remote, app: a}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, email string) {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/session/login", map[string]string{
		"email":    email,
		"password": apptest.Password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body.String())
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// cartOf returns the cart object and warning of a cart response.
func cartOf(t *testing.T, w *httptest.ResponseRecorder) (map[string]any, string) {
	t.Helper()
	resp := decode(t, w)
	c, ok := resp["cart"].(map[string]any)
	if !ok {
		t.Fatalf("response has no cart: %v", resp)
	}
	warning, _ := resp["warning"].(string)
	return c, warning
}

func quantityOf(c map[string]any, productID string) int {
	items, _ := c["items"].([]any)
	for _, raw := range items {
		item := raw.(map[string]any)
		if item["_id"] == productID {
			return int(item["quantity"].(float64))
		}
	}
	return 0
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/v1/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp := decode(t, w); resp["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", resp["status"])
	}
}

func TestStatusEndpoint(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")

	w := ts.do(t, http.MethodGet, "/v1/status", nil)
	resp := decode(t, w)

	if resp["storage"] != "file" {
		t.Errorf("storage = %v, want file", resp["storage"])
	}
	session, _ := resp["session"].(map[string]any)
	if session["logged_in"] != true || session["user_id"] != "u1" {
		t.Errorf("session = %v", session)
	}
	if resp["cart_units"] != float64(0) {
		t.Errorf("cart_units = %v, want 0", resp["cart_units"])
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/v1/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if resp := decode(t, w); resp["error"] != "route not found" {
		t.Errorf("error = %v", resp["error"])
	}
}

func TestLogin(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/v1/session/login", map[string]string{
		"email":    "user@example.com",
		"password": apptest.Password,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	identity, _ := decode(t, w)["identity"].(map[string]any)
	if identity["user_id"] != "u1" || identity["role"] != "user" {
		t.Errorf("identity = %v", identity)
	}

	w = ts.do(t, http.MethodGet, "/v1/session", nil)
	if resp := decode(t, w); resp["logged_in"] != true {
		t.Errorf("session = %v", resp)
	}
}

func TestLogin_Errors(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/v1/session/login", map[string]string{
		"email":    "user@example.com",
		"password": "wrong",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong password status = %d, want 401", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/v1/session/login", map[string]string{"email": "not-an-email"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid credentials status = %d, want 400", w.Code)
	}
	if resp := decode(t, w); resp["fields"] == nil {
		t.Error("validation failures should list fields")
	}
}

func TestLogin_RateLimited(t *testing.T) {
	ts := setupTestServer(t, nil)
	creds := map[string]string{"email": "user@example.com", "password": "wrong"}

	for i := 0; i < 3; i++ {
		if w := ts.do(t, http.MethodPost, "/v1/session/login", creds); w.Code == http.StatusTooManyRequests {
			t.Fatalf("attempt %d rate limited too early", i+1)
		}
	}

	w := ts.do(t, http.MethodPost, "/v1/session/login", creds)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestLogin_RateLimitIgnoresForwardedFor(t *testing.T) {
	ts := setupTestServer(t, nil)
	creds := `{"email":"user@example.com","password":"wrong"}`

	var last *httptest.ResponseRecorder
	for i := 0; i < 4; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/session/login", strings.NewReader(creds))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i+1))
		last = httptest.NewRecorder()
		ts.Handler().ServeHTTP(last, req)
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429 despite rotating X-Forwarded-For", last.Code)
	}
}

func TestLogout(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")

	if w := ts.do(t, http.MethodDelete, "/v1/session", nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d, want 204", w.Code)
	}
	if w := ts.do(t, http.MethodGet, "/v1/cart", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("cart after logout status = %d, want 401", w.Code)
	}
}

func TestSetToken(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/v1/session/token", map[string]string{"token": "garbage"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", w.Code)
	}

	w = ts.do(t, http.MethodPost, "/v1/session/token", map[string]string{
		"token": tokentest.Valid(t, "u7", "user"),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if ts.app.Session.UserID() != "u7" {
		t.Errorf("UserID() = %q, want u7", ts.app.Session.UserID())
	}
}

func TestOAuthCallback(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		location string
		loggedIn bool
	}{
		{"valid token", "token=" + url.QueryEscape(tokentest.Valid(t, "g1", "user")), "/", true},
		{"invalid token", "token=abc", "/login?error=invalid_token", false},
		{"missing token", "", "/login?error=missing_token", false},
		{"expired token", "token=" + url.QueryEscape(tokentest.Expired(t, "g1", "user")), "/login?error=invalid_token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setupTestServer(t, nil)

			w := ts.do(t, http.MethodGet, "/auth/callback?"+tt.query, nil)
			if w.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", w.Code)
			}
			if got := w.Header().Get("Location"); got != tt.location {
				t.Errorf("Location = %q, want %q", got, tt.location)
			}
			if got := ts.app.Session.Status().LoggedIn; got != tt.loggedIn {
				t.Errorf("LoggedIn = %v, want %v", got, tt.loggedIn)
			}
		})
	}
}

func TestOAuthStartAndViews(t *testing.T) {
	ts := setupTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/v1/session/oauth", nil)
	resp := decode(t, w)
	if resp["url"] != ts.remote.BaseURL()+"/auth/google" {
		t.Errorf("url = %v", resp["url"])
	}
	if !strings.HasSuffix(resp["callback"].(string), "/auth/callback") {
		t.Errorf("callback = %v", resp["callback"])
	}

	w = ts.do(t, http.MethodGet, "/login?error=invalid_token", nil)
	if resp := decode(t, w); resp["view"] != "login" || resp["error"] != "invalid_token" {
		t.Errorf("login view = %v", resp)
	}

	w = ts.do(t, http.MethodGet, "/", nil)
	if resp := decode(t, w); resp["view"] != "landing" {
		t.Errorf("landing view = %v", resp)
	}
}

func TestCart_RequiresIdentity(t *testing.T) {
	ts := setupTestServer(t, nil)

	for _, path := range []string{"/v1/cart"} {
		if w := ts.do(t, http.MethodGet, path, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, w.Code)
		}
	}
	w := ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p1"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("add status = %d, want 401", w.Code)
	}
	if w := ts.do(t, http.MethodDelete, "/v1/cart", nil); w.Code != http.StatusNoContent {
		t.Errorf("anonymous clear status = %d, want 204", w.Code)
	}
}

func TestCart_CeilingWarning(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")

	w := ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p1", "quantity": 3})
	c, warning := cartOf(t, w)
	if quantityOf(c, "p1") != 3 || warning != "" {
		t.Fatalf("first add: quantity %d warning %q", quantityOf(c, "p1"), warning)
	}

	w = ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p1", "quantity": 3})
	c, warning = cartOf(t, w)
	if quantityOf(c, "p1") != 3 {
		t.Errorf("overflowing add changed quantity to %d", quantityOf(c, "p1"))
	}
	if warning == "" || c["warning"] != true {
		t.Error("overflowing add should raise the warning")
	}

	if w := ts.do(t, http.MethodPost, "/v1/cart/warning/ack", nil); w.Code != http.StatusNoContent {
		t.Fatalf("ack status = %d", w.Code)
	}
	_, warning = cartOf(t, ts.do(t, http.MethodGet, "/v1/cart", nil))
	if warning != "" {
		t.Error("warning should be cleared after ack")
	}
}

func TestCart_IncreaseToCeiling(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")

	ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p2", "quantity": 4})

	c, warning := cartOf(t, ts.do(t, http.MethodPost, "/v1/cart/items/p2/increase", nil))
	if quantityOf(c, "p2") != 5 || warning != "" {
		t.Fatalf("increase to 5: quantity %d warning %q", quantityOf(c, "p2"), warning)
	}

	c, warning = cartOf(t, ts.do(t, http.MethodPost, "/v1/cart/items/p2/increase", nil))
	if quantityOf(c, "p2") != 5 || warning == "" {
		t.Errorf("increase past 5: quantity %d warning %q", quantityOf(c, "p2"), warning)
	}
}

func TestCart_DecreaseRemoveClear(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")

	ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p1"})
	ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p2", "quantity": 2})

	c, _ := cartOf(t, ts.do(t, http.MethodPost, "/v1/cart/items/p1/decrease", nil))
	if quantityOf(c, "p1") != 0 {
		t.Error("decrease at quantity 1 should remove the line")
	}
	if c["total"] != float64(1800) {
		t.Errorf("total = %v, want 1800", c["total"])
	}

	if w := ts.do(t, http.MethodPost, "/v1/cart/items/p9/increase", nil); w.Code != http.StatusNotFound {
		t.Errorf("increase missing line status = %d, want 404", w.Code)
	}

	c, _ = cartOf(t, ts.do(t, http.MethodDelete, "/v1/cart/items/p2", nil))
	if items, _ := c["items"].([]any); len(items) != 0 {
		t.Errorf("items after remove = %v", items)
	}

	ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p2"})
	if w := ts.do(t, http.MethodDelete, "/v1/cart", nil); w.Code != http.StatusNoContent {
		t.Fatalf("clear status = %d", w.Code)
	}
	c, _ = cartOf(t, ts.do(t, http.MethodGet, "/v1/cart", nil))
	if items, _ := c["items"].([]any); len(items) != 0 {
		t.Errorf("items after clear = %v", items)
	}
}

func TestCart_UnavailableProduct(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")

	if w := ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p3"}); w.Code != http.StatusBadRequest {
		t.Errorf("unavailable status = %d, want 400", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "nope"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown product status = %d, want 404", w.Code)
	}
	if w := ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{}); w.Code != http.StatusBadRequest {
		t.Errorf("missing product_id status = %d, want 400", w.Code)
	}
}

func TestCart_ExpiredSession(t *testing.T) {
	now := time.Now()
	ts := setupTestServer(t, func() time.Time { return now })
	ts.login(t, "user@example.com")
	ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p1"})

	now = now.Add(3 * time.Hour)

	if w := ts.do(t, http.MethodGet, "/v1/cart", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("cart status = %d, want 401", w.Code)
	}
	if resp := decode(t, ts.do(t, http.MethodGet, "/v1/session", nil)); resp["logged_in"] != false {
		t.Errorf("session = %v", resp)
	}
}

func TestCheckoutFlow(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")

	if w := ts.do(t, http.MethodPost, "/v1/checkout", nil); w.Code != http.StatusConflict {
		t.Errorf("empty cart checkout status = %d, want 409", w.Code)
	}

	ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p1", "quantity": 2})

	w := ts.do(t, http.MethodPost, "/v1/checkout", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("checkout status = %d: %s", w.Code, w.Body.String())
	}
	handoff := decode(t, w)
	if !strings.Contains(handoff["redirect_url"].(string), "pref_id=pref-u1-1") {
		t.Errorf("redirect_url = %v", handoff["redirect_url"])
	}

	if w := ts.do(t, http.MethodGet, "/v1/checkout", nil); w.Code != http.StatusOK {
		t.Errorf("pending checkout status = %d", w.Code)
	}

	w = ts.do(t, http.MethodGet, "/payment/success", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("success status = %d: %s", w.Code, w.Body.String())
	}

	updates := ts.remote.StockUpdates()
	if len(updates) != 1 || updates[0][0] != (domain.StockUpdate{ID: "p1", Quantity: 2}) {
		t.Errorf("stock updates = %+v", updates)
	}

	c, _ := cartOf(t, ts.do(t, http.MethodGet, "/v1/cart", nil))
	if items, _ := c["items"].([]any); len(items) != 0 {
		t.Errorf("cart after success = %v", items)
	}

	// A repeated success redirect settles nothing
	w = ts.do(t, http.MethodGet, "/payment/success", nil)
	result, _ := decode(t, w)["result"].(map[string]any)
	if result["noop"] != true {
		t.Errorf("second success result = %v", result)
	}
	if len(ts.remote.StockUpdates()) != 1 {
		t.Error("stock should be decremented once")
	}
}

func TestPaymentFailureKeepsCart(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "user@example.com")
	ts.do(t, http.MethodPost, "/v1/cart/items", map[string]any{"product_id": "p2"})
	ts.do(t, http.MethodPost, "/v1/checkout", nil)

	for _, path := range []string{"/payment/failure", "/payment/pending"} {
		w := ts.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, w.Code)
		}
		if resp := decode(t, w); resp["snapshot"] == nil {
			t.Errorf("%s should report the pending snapshot", path)
		}
	}

	c, _ := cartOf(t, ts.do(t, http.MethodGet, "/v1/cart", nil))
	if quantityOf(c, "p2") != 1 {
		t.Error("cart should survive a failed payment")
	}
	if len(ts.remote.StockUpdates()) != 0 {
		t.Error("failed payment must not decrement stock")
	}
}

func TestCatalog(t *testing.T) {
	ts := setupTestServer(t, nil)

	products, _ := decode(t, ts.do(t, http.MethodGet, "/v1/products", nil))["products"].([]any)
	if len(products) != 2 {
		t.Errorf("available products = %d, want 2", len(products))
	}
	all, _ := decode(t, ts.do(t, http.MethodGet, "/v1/products?all=true", nil))["products"].([]any)
	if len(all) != 3 {
		t.Errorf("all products = %d, want 3", len(all))
	}

	if resp := decode(t, ts.do(t, http.MethodGet, "/v1/products/p1", nil)); resp["productName"] != "Stratocaster" {
		t.Errorf("product = %v", resp)
	}
	if w := ts.do(t, http.MethodGet, "/v1/products/zzz", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing product status = %d, want 404", w.Code)
	}

	blogs, _ := decode(t, ts.do(t, http.MethodGet, "/v1/blogs", nil))["blogs"].([]any)
	if len(blogs) != 1 {
		t.Errorf("blogs = %d, want 1", len(blogs))
	}
}

func TestOrders(t *testing.T) {
	ts := setupTestServer(t, nil)

	if w := ts.do(t, http.MethodGet, "/v1/orders", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous orders status = %d, want 401", w.Code)
	}

	ts.login(t, "user@example.com")
	resp := decode(t, ts.do(t, http.MethodGet, "/v1/orders", nil))
	orders, _ := resp["orders"].([]any)
	if len(orders) != 1 {
		t.Fatalf("orders = %v", resp)
	}
	lines := orders[0].(map[string]any)["lines"].([]any)
	if lines[0].(map[string]any)["product_name"] != "Stratocaster" {
		t.Errorf("first line = %v", lines[0])
	}
}

func TestAdmin_RoleGuard(t *testing.T) {
	ts := setupTestServer(t, nil)

	if w := ts.do(t, http.MethodGet, "/v1/admin/users", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", w.Code)
	}

	ts.login(t, "user@example.com")
	if w := ts.do(t, http.MethodGet, "/v1/admin/users", nil); w.Code != http.StatusForbidden {
		t.Errorf("user status = %d, want 403", w.Code)
	}

	ts.do(t, http.MethodDelete, "/v1/session", nil)
	ts.login(t, "admin@example.com")

	w := ts.do(t, http.MethodGet, "/v1/admin/users", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d: %s", w.Code, w.Body.String())
	}
	users, _ := decode(t, w)["users"].([]any)
	if len(users) != 1 {
		t.Errorf("users = %v", users)
	}
	if !strings.HasPrefix(ts.remote.LastAuthorization(), "Bearer ") {
		t.Error("admin calls should carry the session token")
	}
}

func TestAdmin_DeleteProduct(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "admin@example.com")

	if w := ts.do(t, http.MethodDelete, "/v1/admin/products/p2", nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}
	if w := ts.do(t, http.MethodGet, "/v1/products/p2", nil); w.Code != http.StatusNotFound {
		t.Errorf("deleted product status = %d, want 404", w.Code)
	}
}

func TestAdmin_InvalidProductForm(t *testing.T) {
	ts := setupTestServer(t, nil)
	ts.login(t, "admin@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("productName", "Jazzmaster")
	mw.WriteField("price", "not-a-number")
	mw.WriteField("stock", "3")
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/products", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNoIdentity, http.StatusUnauthorized},
		{auth.ErrSessionExpired, http.StatusUnauthorized},
		{domain.ErrForbidden, http.StatusForbidden},
		{fmt.Errorf("wrap: %w", domain.ErrItemMissing), http.StatusNotFound},
		{domain.ErrNoSnapshot, http.StatusNotFound},
		{domain.ErrEmptyCart, http.StatusConflict},
		{domain.ErrInvalidItem, http.StatusBadRequest},
		{auth.ErrInvalidRole, http.StatusBadRequest},
		{&client.APIError{Status: http.StatusNotFound}, http.StatusNotFound},
		{&client.APIError{Status: http.StatusUnauthorized}, http.StatusUnauthorized},
		{&client.APIError{Status: http.StatusServiceUnavailable}, http.StatusBadGateway},
		{&url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := errorStatus(tt.err); got != tt.want {
			t.Errorf("errorStatus(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
