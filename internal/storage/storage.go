// Package storage defines the durable key/value contract behind the session
// and cart stores. Keys are flat strings such as "token", "role" or
// "cart_<userID>"; values are opaque bytes, usually JSON.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("key not found")

// KV is a durable string-keyed store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists stored keys with the given prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Backend names accepted by configuration.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// CartKey returns the storage key of a user's cart.
func CartKey(userID string) string {
	return "cart_" + userID
}

// CheckoutKey returns the storage key of a user's checkout snapshot.
func CheckoutKey(userID string) string {
	return "checkout_" + userID
}

// Session keys.
const (
	TokenKey = "token"
	RoleKey  = "role"
)
