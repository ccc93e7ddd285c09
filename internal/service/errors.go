package service

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Errors returned by the order and invoice services.
var (
	ErrEmptyItems           = errors.New("items are required")
	ErrInvalidQuantity      = errors.New("quantity must be > 0")
	ErrProductNotFound      = errors.New("product not found")
	ErrProductUnavailable   = errors.New("product is not available")
	ErrVolumeRequired       = errors.New("volume is required for this product")
	ErrVolumeNotFound       = errors.New("volume not offered for this product")
	ErrTableNotFound        = errors.New("table not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrInvalidPaymentMethod = errors.New("invalid payment_method")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStaleVersion      = errors.New("stale version")
	ErrStatusChanged     = errors.New("order status changed, please retry")
	ErrNothingToInvoice  = errors.New("table has no orders to invoice")
	ErrRequestInProgress = errors.New("request in progress")
)

// IsValidationError reports errors caused by bad client input (400).
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyItems) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrProductNotFound) ||
		errors.Is(err, ErrProductUnavailable) ||
		errors.Is(err, ErrVolumeRequired) ||
		errors.Is(err, ErrVolumeNotFound) ||
		errors.Is(err, ErrInvalidPaymentMethod)
}

// IsConflictError reports errors that map to 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrStaleVersion) ||
		errors.Is(err, ErrStatusChanged) ||
		errors.Is(err, ErrNothingToInvoice) ||
		errors.Is(err, ErrRequestInProgress)
}

// isTransientConflict matches serialization failures, deadlocks and unique
// violations, which are worth another attempt.
func isTransientConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "23505":
			return true
		}
	}
	return false
}
