package domain

import (
	"errors"
	"fmt"
)

var (
	// Validation errors. All of them are caller-correctable.
	ErrMissingCode        = errors.New("code is required")
	ErrInvalidCode        = errors.New("code must have 6 alphanumeric characters after sanitization")
	ErrInvalidDiscount    = errors.New("discountValue must be at least 0.5")
	ErrInvalidExpiration  = errors.New("expirationDate cannot be in the past")

	// ErrDiscountOutOfRange is a kind of ErrInvalidDiscount for values the
	// NUMERIC(12,2) column cannot hold.
	ErrDiscountOutOfRange = fmt.Errorf("%w, at most 9999999999.99 and with at most 2 decimal places", ErrInvalidDiscount)
	ErrMissingDescription = errors.New("description is required")

	ErrCouponNotFound       = errors.New("coupon not found")
	ErrCouponAlreadyDeleted = errors.New("coupon already deleted")
)

// IsValidationError reports whether err is one of the bad-request class errors.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrMissingCode) ||
		errors.Is(err, ErrInvalidCode) ||
		errors.Is(err, ErrInvalidDiscount) ||
		errors.Is(err, ErrInvalidExpiration) ||
		errors.Is(err, ErrMissingDescription)
}
