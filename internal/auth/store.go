// Package auth holds the session identity: the bearer token, the role label
// and the claims derived from the token.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/storefront/internal/domain"
	"github.com/felixgeelhaar/storefront/internal/storage"
	"github.com/felixgeelhaar/storefront/internal/token"
)

var (
	ErrSessionExpired = errors.New("session expired")
	ErrInvalidRole    = errors.New("invalid role")
)

// Identity is the user derived from a present, decodable and unexpired token.
type Identity struct {
	UserID    string      `json:"user_id"`
	Role      domain.Role `json:"role,omitempty"`
	ExpiresAt time.Time   `json:"expires_at,omitempty"`
}

// Status summarises the session for display.
type Status struct {
	LoggedIn  bool        `json:"logged_in"`
	Expired   bool        `json:"expired"`
	UserID    string      `json:"user_id,omitempty"`
	Role      domain.Role `json:"role,omitempty"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// Store is the session identity store. All state is persisted to a
// storage.KV under the "token" and "role" keys.
type Store struct {
	kv     storage.KV
	events *domain.EventDispatcher
	now    func() time.Time

	mu     sync.RWMutex
	token  string
	role   domain.Role
	claims *token.Claims
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithEvents publishes session events to d. Handlers run while the store is
// locked and must not call back into it.
func WithEvents(d *domain.EventDispatcher) Option {
	return func(s *Store) {
		s.events = d
	}
}

// NewStore creates a store and restores any persisted session from kv.
func NewStore(ctx context.Context, kv storage.KV, opts ...Option) (*Store, error) {
	s := &Store{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	raw, err := kv.Get(ctx, storage.TokenKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("restore token: %w", err)
	default:
		s.token = string(raw)
		s.claims = decode(s.token)
	}

	label, err := kv.Get(ctx, storage.RoleKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("restore role: %w", err)
	default:
		if role, ok := domain.ParseRole(string(label)); ok {
			s.role = role
		}
	}

	return s, nil
}

// decode returns the claims of raw, or nil after logging why they are absent.
func decode(raw string) *token.Claims {
	res := token.Decode(raw)
	if !res.OK() {
		slog.Warn("token decode failed, identity absent", "error", res.Err)
		return nil
	}
	return &res.Claims
}

// SetToken persists raw and derives the identity from it. An empty raw removes
// the token. A token that cannot be decoded is still stored but yields no
// identity; the decode error is returned for the caller to report.
//
// The stored role label belongs to the previous token. It is dropped unless
// the new token is for the same user and carries a role claim of its own.
func (s *Store) SetToken(ctx context.Context, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.claims

	if raw == "" {
		if err := s.kv.Delete(ctx, storage.TokenKey); err != nil {
			return fmt.Errorf("remove token: %w", err)
		}
		s.token = ""
		s.claims = nil
		return s.dropRoleLocked(ctx)
	}

	if err := s.kv.Set(ctx, storage.TokenKey, []byte(raw)); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	s.token = raw

	res := token.Decode(raw)
	if !res.OK() {
		s.claims = nil
		slog.Warn("token decode failed, identity absent", "error", res.Err)
		if err := s.dropRoleLocked(ctx); err != nil {
			return errors.Join(res.Err, err)
		}
		return res.Err
	}
	s.claims = &res.Claims

	_, claimed := domain.ParseRole(res.Claims.Role)
	if prev == nil || prev.UserID != res.Claims.UserID || !claimed {
		if err := s.dropRoleLocked(ctx); err != nil {
			return err
		}
	}

	s.events.Publish(domain.NewSessionStartedEvent(res.Claims.UserID, s.roleLocked()))
	return nil
}

func (s *Store) dropRoleLocked(ctx context.Context) error {
	if s.role == "" {
		return nil
	}
	if err := s.kv.Delete(ctx, storage.RoleKey); err != nil {
		return fmt.Errorf("remove role: %w", err)
	}
	s.role = ""
	return nil
}

// SetRole persists a role label. An empty role removes it.
func (s *Store) SetRole(ctx context.Context, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if role == "" {
		if err := s.kv.Delete(ctx, storage.RoleKey); err != nil {
			return fmt.Errorf("remove role: %w", err)
		}
		s.role = ""
		return nil
	}

	parsed, ok := domain.ParseRole(role)
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := s.kv.Set(ctx, storage.RoleKey, []byte(parsed)); err != nil {
		return fmt.Errorf("persist role: %w", err)
	}
	s.role = parsed
	return nil
}

// Logout clears the token, the role and the derived identity.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logoutLocked(ctx, false)
}

func (s *Store) logoutLocked(ctx context.Context, expired bool) error {
	hadToken := s.token != ""
	var userID string
	if s.claims != nil {
		userID = s.claims.UserID
	}

	s.token = ""
	s.role = ""
	s.claims = nil

	var errs []error
	if err := s.kv.Delete(ctx, storage.TokenKey); err != nil {
		errs = append(errs, fmt.Errorf("remove token: %w", err))
	}
	if err := s.kv.Delete(ctx, storage.RoleKey); err != nil {
		errs = append(errs, fmt.Errorf("remove role: %w", err))
	}

	if hadToken {
		s.events.Publish(domain.NewSessionEndedEvent(userID, expired))
	}
	return errors.Join(errs...)
}

// Authorize returns the token to attach to an outbound request. With no token
// it returns "". An expired or undecodable token forces a logout and returns
// ErrSessionExpired.
func (s *Store) Authorize(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token == "" {
		return "", nil
	}
	if s.claims == nil || s.claims.Expired(s.now()) {
		slog.Info("session expired, logging out")
		if err := s.logoutLocked(ctx, true); err != nil {
			return "", err
		}
		return "", ErrSessionExpired
	}
	return s.token, nil
}

// Token returns the raw token, or "".
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Identity returns the current identity. ok is false when there is no token,
// it cannot be decoded or it has expired.
func (s *Store) Identity() (Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.claims == nil || s.claims.Expired(s.now()) {
		return Identity{}, false
	}
	return Identity{
		UserID:    s.claims.UserID,
		Role:      s.roleLocked(),
		ExpiresAt: s.claims.ExpiresAt,
	}, true
}

// UserID returns the current identity's user id, or "" without an identity.
func (s *Store) UserID() string {
	id, _ := s.Identity()
	return id.UserID
}

// Role returns the token's role claim when it names a known role, falling
// back to the stored label.
func (s *Store) Role() domain.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.roleLocked()
}

// ClaimedRole returns the role named by the token itself, ignoring the stored
// label. ok is false when the token has no known role claim.
func (s *Store) ClaimedRole() (domain.Role, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.claims == nil {
		return "", false
	}
	return domain.ParseRole(s.claims.Role)
}

func (s *Store) roleLocked() domain.Role {
	if s.claims != nil {
		if role, ok := domain.ParseRole(s.claims.Role); ok {
			return role
		}
	}
	return s.role
}

// Require returns the identity when it holds role. Without an identity or a
// role it returns domain.ErrUnauthenticated; with another role it returns
// domain.ErrForbidden.
func (s *Store) Require(role domain.Role) (Identity, error) {
	id, ok := s.Identity()
	if !ok || id.Role == "" {
		return Identity{}, domain.ErrUnauthenticated
	}
	if id.Role != role {
		return Identity{}, domain.ErrForbidden
	}
	return id, nil
}

// Status reports the session state at the store's current time.
func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{Role: s.roleLocked()}
	if s.token == "" {
		return st
	}
	if s.claims == nil {
		st.Expired = true
		return st
	}

	st.UserID = s.claims.UserID
	if !s.claims.ExpiresAt.IsZero() {
		exp := s.claims.ExpiresAt
		st.ExpiresAt = &exp
	}
	st.Expired = s.claims.Expired(s.now())
	st.LoggedIn = !st.Expired
	return st
}
