package invoices

import "errors"

var (
	ErrInvoiceNotFound   = errors.New("invoice not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrAlreadyCancelled  = errors.New("invoice already cancelled")
	ErrPaymentIncomplete = errors.New("payment incomplete")
	ErrEmptyOrder        = errors.New("order has no line items")
)

// IsConflict: error yang ke caller dipetakan sebagai 409, bukan 5xx.
func IsConflict(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrAlreadyCancelled) ||
		errors.Is(err, ErrPaymentIncomplete)
}
