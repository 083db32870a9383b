package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// -----------------------------------------------------------------------------
// Domain Errors
// These errors are shared by the stores, the API client and the daemon to
// communicate storefront-level failures.
// -----------------------------------------------------------------------------

// Identity errors
var (
	ErrNoIdentity      = errors.New("no active identity")
	ErrUnauthenticated = errors.New("not logged in")
	ErrForbidden       = errors.New("forbidden")
)

// Cart errors
var (
	ErrInvalidItem = errors.New("invalid cart item")
	ErrItemMissing = errors.New("item not in cart")
	ErrEmptyCart   = errors.New("cart is empty")
)

// Checkout errors
var (
	ErrNoSnapshot = errors.New("no checkout snapshot")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// ValidationError reports a value that does not match its schema.
type ValidationError struct {
	Schema string
	Fields []FieldError
	cause  error
}

// FieldError is a single failed rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("invalid %s", e.Schema)
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		if f.Param != "" {
			parts = append(parts, fmt.Sprintf("%s (%s=%s)", f.Field, f.Rule, f.Param))
		} else {
			parts = append(parts, fmt.Sprintf("%s (%s)", f.Field, f.Rule))
		}
	}
	return fmt.Sprintf("invalid %s: %s", e.Schema, strings.Join(parts, ", "))
}

// Unwrap returns the underlying validator error.
func (e *ValidationError) Unwrap() error {
	return e.cause
}

// Is lets callers match any validation failure against ErrInvalidInput.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func newValidationError(schema string, err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Schema: schema, cause: err}
	}
	ve := &ValidationError{Schema: schema, cause: err}
	for _, fe := range fieldErrs {
		ve.Fields = append(ve.Fields, FieldError{
			Field: fe.Field(),
			Rule:  fe.Tag(),
			Param: fe.Param(),
		})
	}
	return ve
}
