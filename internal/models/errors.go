package models

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrProductNotFound    = fmt.Errorf("product %w", ErrNotFound)
	ErrOrderNotFound      = fmt.Errorf("order %w", ErrNotFound)
	ErrCartNotFound       = fmt.Errorf("cart %w", ErrNotFound)
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrConcurrentUpdate   = errors.New("order was changed by someone else")
	ErrCheckoutInProgress = errors.New("checkout already in progress for this cart")
	ErrDuplicateCode      = errors.New("duplicate order number or pickup code")
	ErrDuplicateRequest   = errors.New("duplicate idempotency key")
)

// ValidationError rejects caller input before any state is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError is a shorthand for &ValidationError{...}.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StockError identifies the product that could not be decremented.
type StockError struct {
	ProductID   string
	ProductName string
	Requested   int
}

func (e *StockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d", e.ProductName, e.ProductID, e.Requested)
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}
