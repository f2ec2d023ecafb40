package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponCodeLength is the exact length of a sanitized coupon code.
const CouponCodeLength = 6

// CouponStatus is the lifecycle state of a coupon.
// DELETED is terminal: a deleted coupon never becomes ACTIVE again.
type CouponStatus string

const (
	CouponStatusActive  CouponStatus = "ACTIVE"
	CouponStatusDeleted CouponStatus = "DELETED"
)

func (s CouponStatus) IsValid() bool {
	return s == CouponStatusActive || s == CouponStatusDeleted
}

// Coupon is the only persisted entity of the service.
// Every field except Status is fixed at creation.
type Coupon struct {
	ID             uuid.UUID       `json:"id"`
	Code           string          `json:"code"`
	Description    string          `json:"description"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	ExpirationDate time.Time       `json:"expirationDate"` // UTC instant
	Status         CouponStatus    `json:"status"`
	Published      bool            `json:"published"`
	// Redeemed is always false: no redemption workflow exists yet.
	Redeemed  bool      `json:"redeemed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IsDeleted reports whether the coupon reached its terminal state.
func (c *Coupon) IsDeleted() bool {
	return c.Status == CouponStatusDeleted
}

// CreateCouponInput is a raw creation request. Nil pointers mean the
// field was absent from the request.
type CreateCouponInput struct {
	Code           *string
	Description    string
	DiscountValue  *decimal.Decimal
	ExpirationDate *time.Time
	Published      *bool
}

// CouponRepository is the storage port used by the lifecycle service.
// FindByID returns ErrCouponNotFound when no record exists for id.
type CouponRepository interface {
	Save(ctx context.Context, coupon *Coupon) (*Coupon, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Coupon, error)
}

// CouponStatusUpdater is implemented by stores that can perform the
// ACTIVE -> DELETED transition atomically. MarkDeleted returns
// ErrCouponNotFound or ErrCouponAlreadyDeleted without writing anything.
type CouponStatusUpdater interface {
	MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error
}
