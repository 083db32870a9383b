// Package daemon serves the local storefront API: session, cart, checkout,
// catalog pass-through and admin operations over HTTP.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/storefront/internal/app"
	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/client"
	"github.com/felixgeelhaar/storefront/internal/config"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/gorilla/mux"
)

// Version is reported by the status endpoint.
var Version = "0.1.0"

// Server represents the storefront daemon HTTP server
type Server struct {
	cfg     *config.LocalConfig
	app     *app.App
	server  *http.Server
	router  *mux.Router
	limiter ratelimit.RateLimiter
	started time.Time
}

// ServerConfig holds configuration for creating a new server
type ServerConfig struct {
	Config *config.LocalConfig
	App    *app.App
}

// NewServer creates a new daemon server
func NewServer(cfg ServerConfig) *Server {
	rate := cfg.Config.Daemon.LoginRate
	if rate <= 0 {
		rate = 10
	}

	s := &Server{
		cfg:    cfg.Config,
		app:    cfg.App,
		router: mux.NewRouter(),
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate,
			Interval: time.Minute,
		}),
		started: time.Now(),
	}

	s.setupRoutes()

	handler := correlationIDMiddleware(recoveryMiddleware(loggingMiddleware(s.router)))
	s.server = &http.Server{
		Addr:         cfg.Config.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.jsonError(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.jsonError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	// Views and browser callbacks
	r.HandleFunc("/", s.handleLanding).Methods(http.MethodGet)
	r.HandleFunc("/login", s.handleLoginView).Methods(http.MethodGet)
	r.HandleFunc("/auth/callback", s.handleOAuthCallback).Methods(http.MethodGet)
	r.HandleFunc("/payment/success", s.handlePaymentSuccess).Methods(http.MethodGet)
	r.HandleFunc("/payment/failure", s.handlePaymentReturn("failure")).Methods(http.MethodGet)
	r.HandleFunc("/payment/pending", s.handlePaymentReturn("pending")).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()

	// Health & status
	v1.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	v1.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)

	// Session
	v1.Handle("/session/login", s.rateLimit(http.HandlerFunc(s.handleLogin))).Methods(http.MethodPost)
	v1.Handle("/session/register", s.rateLimit(http.HandlerFunc(s.handleRegister))).Methods(http.MethodPost)
	v1.HandleFunc("/session/token", s.handleSetToken).Methods(http.MethodPost)
	v1.HandleFunc("/session/oauth", s.handleOAuthStart).Methods(http.MethodGet)
	v1.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	v1.HandleFunc("/session", s.handleLogout).Methods(http.MethodDelete)

	// Catalog
	v1.HandleFunc("/products", s.handleListProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/{id}", s.handleGetProduct).Methods(http.MethodGet)
	v1.HandleFunc("/blogs", s.handleListBlogs).Methods(http.MethodGet)
	v1.HandleFunc("/blogs/{id}", s.handleGetBlog).Methods(http.MethodGet)

	// Cart
	v1.HandleFunc("/cart", s.handleGetCart).Methods(http.MethodGet)
	v1.HandleFunc("/cart", s.handleClearCart).Methods(http.MethodDelete)
	v1.HandleFunc("/cart/items", s.handleAddItem).Methods(http.MethodPost)
	v1.HandleFunc("/cart/items/{id}/increase", s.handleIncrease).Methods(http.MethodPost)
	v1.HandleFunc("/cart/items/{id}/decrease", s.handleDecrease).Methods(http.MethodPost)
	v1.HandleFunc("/cart/items/{id}", s.handleRemoveItem).Methods(http.MethodDelete)
	v1.HandleFunc("/cart/warning/ack", s.handleAckWarning).Methods(http.MethodPost)

	// Checkout & orders
	v1.HandleFunc("/checkout", s.handleCheckout).Methods(http.MethodPost)
	v1.HandleFunc("/checkout", s.handleGetCheckout).Methods(http.MethodGet)
	v1.HandleFunc("/orders", s.handleOrders).Methods(http.MethodGet)

	// Admin
	admin := v1.PathPrefix("/admin").Subrouter()
	admin.Use(s.requireRole(domain.RoleAdmin))
	admin.HandleFunc("/users", s.handleListUsers).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", s.handleGetUser).Methods(http.MethodGet)
	admin.HandleFunc("/users/{id}", s.handleUpdateUser).Methods(http.MethodPut)
	admin.HandleFunc("/users/{id}", s.handleDeleteUser).Methods(http.MethodDelete)
	admin.HandleFunc("/products", s.handleCreateProduct).Methods(http.MethodPost)
	admin.HandleFunc("/products/{id}", s.handleUpdateProduct).Methods(http.MethodPut)
	admin.HandleFunc("/products/{id}", s.handleDeleteProduct).Methods(http.MethodDelete)
	admin.HandleFunc("/blogs", s.handleCreateBlog).Methods(http.MethodPost)
	admin.HandleFunc("/blogs/{id}", s.handleUpdateBlog).Methods(http.MethodPut)
	admin.HandleFunc("/blogs/{id}", s.handleDeleteBlog).Methods(http.MethodDelete)
}

// Handler returns the daemon's HTTP handler with middleware applied
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	slog.Info("starting storefront daemon",
		"addr", s.server.Addr,
		"api", s.cfg.API.BaseURL,
		"storage", s.cfg.Storage.Backend,
		"events", s.app.EventsEnabled(),
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down daemon...")

	if err := s.limiter.Close(); err != nil {
		slog.Warn("failed to close rate limiter", "error", err)
	}

	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "running",
		"version": Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"api":     s.cfg.API.BaseURL,
		"storage": s.cfg.Storage.Backend,
		"events":  s.app.EventsEnabled(),
		"session": s.app.Session.Status(),
	}
	if ns := s.app.Session.UserID(); ns != "" {
		if c, err := s.app.Carts.Get(r.Context(), ns); err == nil {
			resp["cart_units"] = c.Units()
		}
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// Helper methods

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.jsonError(w, http.StatusBadRequest, "invalid request body", err)
		return false
	}
	return true
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		response["fields"] = verr.Fields
	}
	s.jsonResponse(w, status, response)
}

// fail maps err to a status code and writes it.
func (s *Server) fail(w http.ResponseWriter, message string, err error) {
	s.jsonError(w, errorStatus(err), message, err)
}

// errorStatus maps storefront errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoIdentity),
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, auth.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrItemMissing),
		errors.Is(err, domain.ErrNoSnapshot):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmptyCart):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, auth.ErrInvalidRole):
		return http.StatusBadRequest
	}

	var apiErr *client.APIError
	var urlErr *url.Error
	switch {
	case errors.As(err, &apiErr),
		errors.As(err, &urlErr),
		errors.Is(err, client.ErrBadResponse):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
