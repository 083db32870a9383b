package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/storage/local"
	"github.com/felixgeelhaar/storefront/internal/token/tokentest"
	"github.com/spf13/afero"
)

type staticAuth struct {
	token string
	err   error
	calls int32
}

func (a *staticAuth) Authorize(context.Context) (string, error) {
	atomic.AddInt32(&a.calls, 1)
	return a.token, a.err
}

func newTestClient(t *testing.T, h http.Handler, authz Authorizer) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:    srv.URL + "/api",
		Timeout:    2 * time.Second,
		Retries:    3,
		RetryDelay: time.Millisecond,
		Auth:       authz,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func product(id string) map[string]any {
	return map[string]any{
		"_id":              id,
		"productName":      "Stratocaster",
		"description":      "Solid body electric",
		"shortDescription": "Strat",
		"price":            1200,
		"isAvailable":      true,
		"stock":            4,
		"imageUrl":         nil,
	}
}

func TestNew_InvalidBaseURL(t *testing.T) {
	for _, base := range []string{"", "ftp://example.com", "::bad"} {
		if _, err := New(Config{BaseURL: base}); err == nil {
			t.Errorf("New(%q) error = nil", base)
		}
	}
}

func TestProducts_AttachesToken(t *testing.T) {
	var gotAuth, gotReqID, gotPath string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		gotPath = r.URL.Path
		writeJSON(w, http.StatusOK, []any{product("p1"), product("p2")})
	})

	c := newTestClient(t, h, &staticAuth{token: "abc"})
	products, err := c.Products(context.Background())
	if err != nil {
		t.Fatalf("Products() error = %v", err)
	}
	if len(products) != 2 {
		t.Errorf("len(products) = %d, want 2", len(products))
	}
	if gotAuth != "Bearer abc" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReqID == "" {
		t.Error("X-Request-ID not set")
	}
	if gotPath != "/api/products" {
		t.Errorf("path = %q, want /api/products", gotPath)
	}
}

func TestProducts_Anonymous(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
		}
		writeJSON(w, http.StatusOK, []any{})
	})
	c := newTestClient(t, h, nil)
	if _, err := c.Products(context.Background()); err != nil {
		t.Fatalf("Products() error = %v", err)
	}
}

func TestProducts_InvalidSchema(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bad := product("p1")
		bad["stock"] = 99
		writeJSON(w, http.StatusOK, []any{product("p0"), bad})
	})
	c := newTestClient(t, h, nil)

	_, err := c.Products(context.Background())
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("Products() error = %v, want validation error", err)
	}
	var ve *domain.ValidationError
	if !errors.As(err, &ve) || ve.Fields[0].Field != "stock" {
		t.Errorf("validation error = %v", err)
	}
}

func TestExpiredSessionIsClearedBeforeRequest(t *testing.T) {
	ctx := context.Background()
	kv, err := local.NewStore(afero.NewMemMapFs(), "/data")
	if err != nil {
		t.Fatalf("local.NewStore() error = %v", err)
	}
	sessions, err := auth.NewStore(ctx, kv)
	if err != nil {
		t.Fatalf("auth.NewStore() error = %v", err)
	}
	sessions.SetToken(ctx, tokentest.Expired(t, "u1", "user"))

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("expired token sent: %q", got)
		}
		if sessions.Token() != "" {
			t.Error("token still present when request reached the server")
		}
		writeJSON(w, http.StatusOK, product("p1"))
	})

	c := newTestClient(t, h, sessions)
	if _, err := c.Product(ctx, "p1"); err != nil {
		t.Fatalf("Product() error = %v", err)
	}
	if sessions.UserID() != "" {
		t.Errorf("UserID() = %q after expiry", sessions.UserID())
	}
}

func TestGet_RetriesTemporaryFailures(t *testing.T) {
	var attempts int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})
			return
		}
		writeJSON(w, http.StatusOK, product("p1"))
	})
	c := newTestClient(t, h, nil)

	p, err := c.Product(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Product() error = %v", err)
	}
	if p.ID != "p1" {
		t.Errorf("ID = %q", p.ID)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestGet_DoesNotRetryNotFound(t *testing.T) {
	var attempts int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Producto no encontrado"})
	})
	c := newTestClient(t, h, nil)

	_, err := c.Product(context.Background(), "nope")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Product() error = %v, want ErrNotFound", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an APIError", err)
	}
	if apiErr.Message != "Producto no encontrado" {
		t.Errorf("Message = %q", apiErr.Message)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestAPIError_TextBodyTruncatedOnRuneBoundary(t *testing.T) {
	// 199 ASCII bytes put the two-byte "ñ" across the cut.
	body := strings.Repeat("a", 199) + strings.Repeat("ñ", 50)
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, body)
	})
	c := newTestClient(t, h, nil)

	_, err := c.Product(context.Background(), "nope")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an APIError", err)
	}
	if !utf8.ValidString(apiErr.Message) {
		t.Errorf("Message is not valid UTF-8: %q", apiErr.Message)
	}
	if want := strings.Repeat("a", 199); apiErr.Message != want {
		t.Errorf("Message = %q, want the ASCII prefix only", apiErr.Message)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		n    int
		want string
	}{
		{"short", "hola", 10, "hola"},
		{"exact", "hola", 4, "hola"},
		{"ascii cut", "guitarra", 6, "guitar"},
		{"inside rune", "añb", 2, "a"},
		{"after rune", "añb", 3, "añ"},
		{"four byte rune", "x🎸", 3, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.in, tt.n)
			if got != tt.want {
				t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("truncate(%q, %d) is not valid UTF-8", tt.in, tt.n)
			}
		})
	}
}

func TestWrite_NotRetried(t *testing.T) {
	var attempts int32
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeJSON(w, http.StatusBadGateway, map[string]string{"message": "upstream"})
	})
	c := newTestClient(t, h, nil)

	err := c.UpdateStock(context.Background(), []domain.StockUpdate{{ID: "p1", Quantity: 1}})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Fatalf("UpdateStock() error = %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestLogin(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/auth/login" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var creds domain.Credentials
		json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Credenciales inválidas"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "tok",
			"user":  map[string]any{"role": "admin"},
		})
	})
	c := newTestClient(t, h, nil)
	ctx := context.Background()

	resp, err := c.Login(ctx, domain.Credentials{Email: "a@b.co", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if resp.Token != "tok" || resp.User.Role != "admin" {
		t.Errorf("Login() = %+v", resp)
	}

	_, err = c.Login(ctx, domain.Credentials{Email: "a@b.co", Password: "wrong"})
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("Login(wrong) error = %v, want ErrUnauthenticated", err)
	}

	_, err = c.Login(ctx, domain.Credentials{Email: "not-an-email", Password: "x"})
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("Login(bad email) error = %v, want ErrInvalidInput", err)
	}
}

func TestRegister(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u domain.User
		json.NewDecoder(r.Body).Decode(&u)
		u.ID = "u1"
		writeJSON(w, http.StatusCreated, u)
	})
	c := newTestClient(t, h, nil)

	pw := "secret12"
	resp, err := c.Register(context.Background(), domain.User{
		Username: "hendrix",
		Email:    "jimi@example.com",
		Password: &pw,
		FullName: "Jimi Hendrix",
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if resp.Token != "" {
		t.Errorf("Token = %q, want empty", resp.Token)
	}
	if resp.User == nil || resp.User.ID != "u1" || resp.User.Role != domain.RoleUser {
		t.Errorf("User = %+v", resp.User)
	}
	if resp.User.Password != nil {
		t.Error("password echoed back")
	}
}

func TestUsers_UnwrapsData(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/users/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []any{
			map[string]any{"_id": "u1", "username": "slash", "email": "slash@example.com", "fullName": "Saul Hudson", "role": "admin", "status": "activo"},
		}})
	})
	c := newTestClient(t, h, nil)

	users, err := c.Users(context.Background())
	if err != nil {
		t.Fatalf("Users() error = %v", err)
	}
	if len(users) != 1 || users[0].Role != domain.RoleAdmin {
		t.Errorf("users = %+v", users)
	}
}

func TestCreatePreference(t *testing.T) {
	var body struct {
		UserID string               `json:"userId"`
		Items  []domain.PaymentItem `json:"items"`
	}
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/payment/create_preference" {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, map[string]string{"id": "pref-1", "saleId": "sale-1"})
	})
	c := newTestClient(t, h, nil)

	items := []domain.LineItem{{ProductID: "p1", ProductName: "Strat", Price: 12.5, Quantity: 2}}
	pref, err := c.CreatePreference(context.Background(), "u1", items)
	if err != nil {
		t.Fatalf("CreatePreference() error = %v", err)
	}
	if pref.ID != "pref-1" || pref.SaleID != "sale-1" {
		t.Errorf("preference = %+v", pref)
	}
	if body.UserID != "u1" || len(body.Items) != 1 {
		t.Fatalf("request body = %+v", body)
	}
	want := domain.PaymentItem{Title: "Strat", UnitPrice: 12.5, Quantity: 2, ID: "p1"}
	if body.Items[0] != want {
		t.Errorf("item = %+v, want %+v", body.Items[0], want)
	}

	if _, err := c.CreatePreference(context.Background(), "u1", nil); !errors.Is(err, domain.ErrEmptyCart) {
		t.Errorf("CreatePreference(empty) error = %v", err)
	}
}

func TestUpdateStock_Body(t *testing.T) {
	var raw string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		raw = string(data)
		writeJSON(w, http.StatusOK, map[string]string{"message": "ok"})
	})
	c := newTestClient(t, h, nil)

	err := c.UpdateStock(context.Background(), []domain.StockUpdate{{ID: "p1", Quantity: 2}})
	if err != nil {
		t.Fatalf("UpdateStock() error = %v", err)
	}
	if want := `{"products":[{"id":"p1","quantity":2}]}`; strings.TrimSpace(raw) != want {
		t.Errorf("body = %s, want %s", raw, want)
	}
}

func TestCreateProduct_Multipart(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if got := r.FormValue("productName"); got != "Les Paul" {
			t.Errorf("productName = %q", got)
		}
		if _, _, err := r.FormFile("image"); err != nil {
			t.Errorf("image part missing: %v", err)
		}
		p := product("new")
		p["productName"] = "Les Paul"
		writeJSON(w, http.StatusCreated, p)
	})
	c := newTestClient(t, h, nil)

	got, err := c.CreateProduct(context.Background(), ProductForm{
		Product: domain.Product{
			ProductName:      "Les Paul",
			Description:      "Mahogany body",
			ShortDescription: "LP",
			Price:            2500,
			Stock:            3,
			IsAvailable:      true,
		},
		Image:     strings.NewReader("png-bytes"),
		ImageName: "lp.png",
	})
	if err != nil {
		t.Fatalf("CreateProduct() error = %v", err)
	}
	if got.ID != "new" {
		t.Errorf("ID = %q", got.ID)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"429", &APIError{Status: 429}, true},
		{"503", &APIError{Status: 503}, true},
		{"400", &APIError{Status: 400}, false},
		{"bad body", ErrBadResponse, false},
		{"transport", errors.New("connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
