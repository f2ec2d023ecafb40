package memory

import (
	"context"
	"sync"
	"time"

	"coupon-service/internal/domain"

	"github.com/google/uuid"
)

// CouponRepository keeps coupons in process memory. Records are copied on
// the way in and out so callers never share state with the store.
type CouponRepository struct {
	mu      sync.RWMutex
	coupons map[uuid.UUID]domain.Coupon
}

func NewCouponRepository() *CouponRepository {
	return &CouponRepository{
		coupons: make(map[uuid.UUID]domain.Coupon),
	}
}

func (r *CouponRepository) Save(_ context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	saved := *c
	if saved.ID == uuid.Nil {
		saved.ID = uuid.New()
	}

	r.mu.Lock()
	r.coupons[saved.ID] = saved
	r.mu.Unlock()

	return &saved, nil
}

func (r *CouponRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Coupon, error) {
	r.mu.RLock()
	c, ok := r.coupons[id]
	r.mu.RUnlock()

	if !ok {
		return nil, domain.ErrCouponNotFound
	}
	return &c, nil
}

// MarkDeleted checks and flips the status under a single lock, so of two
// racing deletes exactly one succeeds.
func (r *CouponRepository) MarkDeleted(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.coupons[id]
	if !ok {
		return domain.ErrCouponNotFound
	}
	if c.IsDeleted() {
		return domain.ErrCouponAlreadyDeleted
	}

	c.Status = domain.CouponStatusDeleted
	c.UpdatedAt = at
	r.coupons[id] = c
	return nil
}
