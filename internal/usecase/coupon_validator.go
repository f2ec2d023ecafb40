package usecase

import (
	"regexp"
	"time"

	"coupon-service/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	nonAlphanumeric = regexp.MustCompile("[^A-Za-z0-9]+")

	// MinDiscountValue is the inclusive lower bound for a coupon discount.
	MinDiscountValue = decimal.RequireFromString("0.5")
	// MaxDiscountValue is the largest value a NUMERIC(12,2) column holds.
	MaxDiscountValue = decimal.RequireFromString("9999999999.99")
)

const (
	discountScale = 2
	// Exponent window accepted before any comparison. Comparing decimals
	// rescales the coefficient to the smaller exponent, so an unbounded
	// exponent like 1e30000000 would materialize a huge integer.
	maxDiscountExponent = 10
	minDiscountExponent = -18
)

// SanitizeCode strips every character outside [A-Za-z0-9] (case preserved)
// and keeps the first six that remain.
// e.g. "ABC-123-XYZ" -> "ABC123"
func SanitizeCode(raw *string) (string, error) {
	if raw == nil {
		return "", domain.ErrMissingCode
	}

	code := nonAlphanumeric.ReplaceAllString(*raw, "")
	if len(code) > domain.CouponCodeLength {
		code = code[:domain.CouponCodeLength]
	}
	if len(code) < domain.CouponCodeLength {
		return "", domain.ErrInvalidCode
	}
	return code, nil
}

// ValidateDiscount accepts values in [MinDiscountValue, MaxDiscountValue]
// with at most two significant decimal places.
func ValidateDiscount(value *decimal.Decimal) error {
	if value == nil {
		return domain.ErrInvalidDiscount
	}
	if exp := value.Exponent(); exp > maxDiscountExponent || exp < minDiscountExponent {
		if value.Sign() <= 0 {
			return domain.ErrInvalidDiscount
		}
		return domain.ErrDiscountOutOfRange
	}
	if value.LessThan(MinDiscountValue) {
		return domain.ErrInvalidDiscount
	}
	if value.GreaterThan(MaxDiscountValue) || !value.Equal(value.Truncate(discountScale)) {
		return domain.ErrDiscountOutOfRange
	}
	return nil
}

// ValidateExpiration accepts any instant that is not strictly before now.
func ValidateExpiration(expiresAt *time.Time, now time.Time) error {
	if expiresAt == nil || expiresAt.Before(now) {
		return domain.ErrInvalidExpiration
	}
	return nil
}

func NormalizePublished(published *bool) bool {
	if published == nil {
		return false
	}
	return *published
}
