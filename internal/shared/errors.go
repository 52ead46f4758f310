package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the entity is absent or belongs to another tenant.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument indicates malformed input such as a non-positive quantity.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState indicates an operation against a terminal lot or document.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientStock indicates a movement would drive a balance negative.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrConflict indicates a concurrent modification or duplicate key.
	ErrConflict = errors.New("conflict")
)

// InsufficientStockError carries the quantities needed for an actionable message.
type InsufficientStockError struct {
	Requested float64
	Available float64
	Unit      string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: requested %.2f%s, %.2f%s available", e.Requested, e.Unit, e.Available, e.Unit)
}

// Is makes the error match ErrInsufficientStock in errors.Is chains.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// IsTypedError reports whether err matches one of the domain error kinds.
func IsTypedError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrIdempotencyConflict)
}

// UserSafeMessage returns a message suitable for API consumers. Typed domain
// errors pass through, anything else collapses to a generic message.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrInsufficientStock),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrIdempotencyConflict):
		return err.Error()
	default:
		return "an unexpected error occurred"
	}
}
