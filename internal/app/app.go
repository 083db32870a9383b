// Package app wires the storefront stores, the remote API client and the
// event pipeline into one application root shared by the daemon and the MCP
// server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/felixgeelhaar/storefront/internal/auth"
	"github.com/felixgeelhaar/storefront/internal/cart"
	"github.com/felixgeelhaar/storefront/internal/checkout"
	"github.com/felixgeelhaar/storefront/internal/client"
	"github.com/felixgeelhaar/storefront/internal/config"
	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/orders"
	"github.com/felixgeelhaar/storefront/internal/queue"
	"github.com/felixgeelhaar/storefront/internal/storage"
	"github.com/felixgeelhaar/storefront/internal/storage/local"
	"github.com/felixgeelhaar/storefront/internal/storage/postgres"
	"github.com/felixgeelhaar/storefront/internal/storage/redis"
	"github.com/felixgeelhaar/storefront/internal/storage/sqlite"
)

// App holds all application dependencies
type App struct {
	Config   *config.LocalConfig
	KV       storage.KV
	Events   *domain.EventDispatcher
	Session  *auth.Store
	Carts    *cart.Store
	API      *client.Client
	Checkout *checkout.Service
	Orders   *orders.Service

	conn     *queue.Connection
	producer *queue.Producer
}

// Options holds configuration for application initialization
type Options struct {
	Config *config.LocalConfig

	// Dir is the storefront directory used for default storage paths
	Dir string

	// KV overrides the configured storage backend
	KV storage.KV

	// Transport overrides the API client's round tripper
	Transport http.RoundTripper

	// Now overrides the session clock
	Now func() time.Time
}

// New creates a new application instance with all dependencies wired
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultLocalConfig()
	}

	a := &App{
		Config: cfg,
		Events: domain.NewEventDispatcher(),
	}
	a.Events.SubscribeAll(logEvent)

	kv := opts.KV
	if kv == nil {
		var err error
		kv, err = OpenStorage(ctx, cfg, opts.Dir)
		if err != nil {
			return nil, err
		}
	}
	a.KV = kv

	sessionOpts := []auth.Option{auth.WithEvents(a.Events)}
	if opts.Now != nil {
		sessionOpts = append(sessionOpts, auth.WithClock(opts.Now))
	}
	session, err := auth.NewStore(ctx, kv, sessionOpts...)
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("open session: %w", err)
	}
	a.Session = session

	a.API, err = client.New(client.Config{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   time.Duration(cfg.API.TimeoutSeconds) * time.Second,
		Retries:   cfg.API.Retries,
		Auth:      session,
		Transport: opts.Transport,
	})
	if err != nil {
		kv.Close()
		return nil, fmt.Errorf("create api client: %w", err)
	}

	a.Carts = cart.NewStore(kv, a.Events)
	a.Checkout = checkout.NewService(a.API, a.Carts, kv, a.Events, checkout.Config{
		CheckoutURL: cfg.Payment.CheckoutURL,
		PublicKey:   cfg.Payment.PublicKey,
	})
	a.Orders = orders.NewService(a.API, cfg.API.Workers)

	if cfg.Events.Enabled {
		a.startEvents()
	}

	// Adopt the persisted cart of a restored session
	if ns := session.UserID(); ns != "" {
		if _, err := a.Carts.Load(ctx, ns); err != nil {
			slog.Warn("restored cart discarded", "user_id", ns, "error", err)
		}
	}

	return a, nil
}

// OpenStorage opens the storage backend named by cfg.
func OpenStorage(ctx context.Context, cfg *config.LocalConfig, dir string) (storage.KV, error) {
	switch cfg.Storage.Backend {
	case "", storage.BackendFile:
		kv, err := local.NewOSStore(cfg.DataPath(dir))
		if err != nil {
			return nil, fmt.Errorf("open file storage: %w", err)
		}
		return kv, nil
	case storage.BackendSQLite:
		kv, err := sqlite.OpenKVStore(ctx, cfg.DataPath(dir))
		if err != nil {
			return nil, fmt.Errorf("open sqlite storage: %w", err)
		}
		return kv, nil
	case storage.BackendRedis:
		var opts []redis.Option
		if cfg.Storage.Prefix != "" {
			opts = append(opts, redis.WithPrefix(cfg.Storage.Prefix))
		}
		kv, err := redis.NewFromURL(ctx, cfg.Storage.RedisURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("open redis storage: %w", err)
		}
		return kv, nil
	case storage.BackendPostgres:
		kv, err := postgres.Open(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres storage: %w", err)
		}
		return kv, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// startEvents connects to RabbitMQ and forwards every domain event. A broker
// that cannot be reached disables publishing.
func (a *App) startEvents() {
	conn, err := queue.NewConnection(a.Config.Events.RabbitMQURL)
	if err != nil {
		slog.Warn("event publishing disabled", "error", err)
		return
	}

	cfg := queue.DefaultProducerConfig()
	if a.Config.Events.Buffer > 0 {
		cfg.Buffer = a.Config.Events.Buffer
	}
	a.conn = conn
	a.producer = queue.NewProducer(conn, cfg)
	a.Events.SubscribeAll(a.producer.Handle)
}

// EventsEnabled reports whether events reach the broker.
func (a *App) EventsEnabled() bool {
	return a.producer != nil
}

func logEvent(e domain.Event) {
	slog.Debug("event", "type", e.EventType(), "user_id", e.UserID(), "id", e.EventID())
}

// Namespace returns the cart namespace of the current identity. An expired
// session is logged out first and its cart dropped from memory.
func (a *App) Namespace(ctx context.Context) (string, error) {
	prev := a.Session.Status().UserID
	if _, err := a.Session.Authorize(ctx); err != nil {
		a.Carts.Forget(prev)
		if errors.Is(err, auth.ErrSessionExpired) {
			return "", domain.ErrNoIdentity
		}
		return "", err
	}

	ns := a.Session.UserID()
	if ns == "" {
		return "", domain.ErrNoIdentity
	}
	return ns, nil
}

// Login authenticates with the remote API, adopts the returned token and
// role, and loads the user's cart.
func (a *App) Login(ctx context.Context, creds domain.Credentials) (auth.Identity, cart.Cart, error) {
	resp, err := a.API.Login(ctx, creds)
	if err != nil {
		return auth.Identity{}, cart.Cart{}, err
	}
	return a.adopt(ctx, resp.Token, resp.User.Role)
}

// Register creates an account. When the API answers with a token the new
// user is logged in.
func (a *App) Register(ctx context.Context, user domain.User) (*client.RegisterResponse, bool, error) {
	resp, err := a.API.Register(ctx, user)
	if err != nil {
		return nil, false, err
	}
	if resp.Token == "" {
		return resp, false, nil
	}
	var role string
	if resp.User != nil {
		role = string(resp.User.Role)
	}
	if _, _, err := a.adopt(ctx, resp.Token, role); err != nil {
		return resp, false, err
	}
	return resp, true, nil
}

// SetToken adopts a token handed over by the OAuth callback or the user.
// The role is taken from the token's claims.
func (a *App) SetToken(ctx context.Context, raw string) (auth.Identity, cart.Cart, error) {
	return a.adopt(ctx, raw, "")
}

func (a *App) adopt(ctx context.Context, raw, role string) (auth.Identity, cart.Cart, error) {
	if raw == "" {
		return auth.Identity{}, cart.Cart{}, fmt.Errorf("%w: empty token", domain.ErrUnauthenticated)
	}

	if err := a.Session.SetToken(ctx, raw); err != nil {
		if logoutErr := a.Logout(ctx); logoutErr != nil {
			slog.Error("logout after rejected token failed", "error", logoutErr)
		}
		return auth.Identity{}, cart.Cart{}, fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}

	id, ok := a.Session.Identity()
	if !ok {
		if err := a.Logout(ctx); err != nil {
			slog.Error("logout after expired token failed", "error", err)
		}
		return auth.Identity{}, cart.Cart{}, auth.ErrSessionExpired
	}

	if role == "" {
		if claimed, ok := a.Session.ClaimedRole(); ok {
			role = string(claimed)
		}
	}
	if role != "" {
		if err := a.Session.SetRole(ctx, role); err != nil {
			slog.Warn("role not stored", "role", role, "error", err)
		}
		id, _ = a.Session.Identity()
	}

	c, err := a.Carts.Load(ctx, id.UserID)
	if err != nil {
		slog.Warn("stored cart discarded", "user_id", id.UserID, "error", err)
	}
	return id, c, nil
}

// Logout ends the session and drops the user's cart from memory. The stored
// cart is kept for the next login.
func (a *App) Logout(ctx context.Context) error {
	ns := a.Session.Status().UserID
	if err := a.Session.Logout(ctx); err != nil {
		return err
	}
	a.Carts.Forget(ns)
	return nil
}

// Cart returns the current user's cart.
func (a *App) Cart(ctx context.Context) (cart.Cart, error) {
	ns, err := a.Namespace(ctx)
	if err != nil {
		return cart.Cart{}, err
	}
	return a.Carts.Get(ctx, ns)
}

// AddProduct resolves productID from the catalog and adds qty units of it to
// the current user's cart.
func (a *App) AddProduct(ctx context.Context, productID string, qty int) (cart.Cart, error) {
	ns, err := a.Namespace(ctx)
	if err != nil {
		return cart.Cart{}, err
	}
	if qty < 1 {
		return cart.Cart{}, fmt.Errorf("%w: quantity %d", domain.ErrInvalidItem, qty)
	}

	p, err := a.API.Product(ctx, productID)
	if err != nil {
		return cart.Cart{}, fmt.Errorf("get product: %w", err)
	}
	if !p.IsAvailable {
		return cart.Cart{}, fmt.Errorf("%w: %s is not available", domain.ErrInvalidItem, p.ProductName)
	}

	return a.Carts.Add(ctx, ns, domain.NewLineItem(*p, qty))
}

// Close cleans up application resources
func (a *App) Close() error {
	var errs []error
	if a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.conn != nil {
		errs = append(errs, a.conn.Close())
	}
	if a.KV != nil {
		errs = append(errs, a.KV.Close())
	}
	return errors.Join(errs...)
}
