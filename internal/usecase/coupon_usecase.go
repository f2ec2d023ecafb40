package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon-service/internal/domain"
	"coupon-service/pkg/cache"
	"coupon-service/pkg/logger"
	"coupon-service/pkg/metrics"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const couponCacheKeyPrefix = "coupon:"

// CouponUsecase drives the coupon lifecycle: create, read and soft delete.
type CouponUsecase struct {
	couponRepo domain.CouponRepository
	cache      cache.CacheService
	cacheTTL   time.Duration
	now        func() time.Time
}

type CouponOption func(*CouponUsecase)

// WithClock replaces the wall clock used for expiration checks and timestamps.
func WithClock(now func() time.Time) CouponOption {
	return func(uc *CouponUsecase) {
		uc.now = now
	}
}

// WithCache enables read-through caching of active coupons.
func WithCache(c cache.CacheService, ttl time.Duration) CouponOption {
	return func(uc *CouponUsecase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

// NewCouponUsecase creates a new CouponUsecase instance.
func NewCouponUsecase(couponRepo domain.CouponRepository, opts ...CouponOption) *CouponUsecase {
	uc := &CouponUsecase{
		couponRepo: couponRepo,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CreateCoupon validates the request fail-fast (code, discount, expiration,
// published) and persists a new ACTIVE coupon.
func (uc *CouponUsecase) CreateCoupon(ctx context.Context, in domain.CreateCouponInput) (*domain.Coupon, error) {
	coupon, err := uc.createCoupon(ctx, in)
	metrics.ObserveCouponOperation("create", outcome(err))
	return coupon, err
}

func (uc *CouponUsecase) createCoupon(ctx context.Context, in domain.CreateCouponInput) (*domain.Coupon, error) {
	code, err := SanitizeCode(in.Code)
	if err != nil {
		return nil, err
	}
	if err := ValidateDiscount(in.DiscountValue); err != nil {
		return nil, err
	}

	// Sampled once so the expiration check and the timestamps agree.
	now := uc.now().UTC()
	if err := ValidateExpiration(in.ExpirationDate, now); err != nil {
		return nil, err
	}

	coupon := &domain.Coupon{
		ID:             uuid.New(),
		Code:           code,
		Description:    in.Description,
		DiscountValue:  *in.DiscountValue,
		ExpirationDate: in.ExpirationDate.UTC(),
		Status:         domain.CouponStatusActive,
		Published:      NormalizePublished(in.Published),
		Redeemed:       false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	saved, err := uc.couponRepo.Save(ctx, coupon)
	if err != nil {
		return nil, fmt.Errorf("failed to create coupon: %w", err)
	}

	uc.cacheCoupon(ctx, saved)

	logger.WithContext(ctx).Info().
		Str("coupon_id", saved.ID.String()).
		Str("code", saved.Code).
		Msg("Coupon created")

	return saved, nil
}

// GetCoupon returns an ACTIVE coupon. Deleted coupons and malformed IDs are
// reported as ErrCouponNotFound, exactly like missing ones.
func (uc *CouponUsecase) GetCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	coupon, err := uc.getCoupon(ctx, id)
	metrics.ObserveCouponOperation("get", outcome(err))
	return coupon, err
}

func (uc *CouponUsecase) getCoupon(ctx context.Context, id string) (*domain.Coupon, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, domain.ErrCouponNotFound
	}

	if cached, ok := uc.cachedCoupon(ctx, uid); ok && !cached.IsDeleted() {
		return cached, nil
	}

	coupon, err := uc.couponRepo.FindByID(ctx, uid)
	if err != nil {
		if errors.Is(err, domain.ErrCouponNotFound) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	if coupon.IsDeleted() {
		return nil, domain.ErrCouponNotFound
	}

	uc.cacheCoupon(ctx, coupon)
	return coupon, nil
}

// DeleteCoupon moves a coupon from ACTIVE to DELETED. A second delete fails
// with ErrCouponAlreadyDeleted, never ErrCouponNotFound.
func (uc *CouponUsecase) DeleteCoupon(ctx context.Context, id string) error {
	err := uc.deleteCoupon(ctx, id)
	metrics.ObserveCouponOperation("delete", outcome(err))
	return err
}

func (uc *CouponUsecase) deleteCoupon(ctx context.Context, id string) error {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.ErrCouponNotFound
	}

	now := uc.now().UTC()
	defer uc.evictCoupon(ctx, uid)

	if updater, ok := uc.couponRepo.(domain.CouponStatusUpdater); ok {
		if err := updater.MarkDeleted(ctx, uid, now); err != nil {
			if errors.Is(err, domain.ErrCouponNotFound) || errors.Is(err, domain.ErrCouponAlreadyDeleted) {
				return err
			}
			return fmt.Errorf("failed to delete coupon: %w", err)
		}
	} else {
		coupon, err := uc.couponRepo.FindByID(ctx, uid)
		if err != nil {
			if errors.Is(err, domain.ErrCouponNotFound) {
				return domain.ErrCouponNotFound
			}
			return fmt.Errorf("failed to get coupon: %w", err)
		}
		if coupon.IsDeleted() {
			return domain.ErrCouponAlreadyDeleted
		}

		coupon.Status = domain.CouponStatusDeleted
		coupon.UpdatedAt = now
		if _, err := uc.couponRepo.Save(ctx, coupon); err != nil {
			return fmt.Errorf("failed to delete coupon: %w", err)
		}
	}

	logger.WithContext(ctx).Info().
		Str("coupon_id", uid.String()).
		Msg("Coupon deleted")
	return nil
}

func (uc *CouponUsecase) cachedCoupon(ctx context.Context, id uuid.UUID) (*domain.Coupon, bool) {
	if uc.cache == nil {
		return nil, false
	}
	raw, found := uc.cache.Get(ctx, couponCacheKey(id))
	if !found {
		return nil, false
	}
	var coupon domain.Coupon
	if err := json.Unmarshal(raw, &coupon); err != nil {
		logger.WithContext(ctx).Warn().Err(err).Str("coupon_id", id.String()).Msg("Discarding unreadable cached coupon")
		uc.cache.Delete(ctx, couponCacheKey(id))
		return nil, false
	}
	return &coupon, true
}

// cacheCoupon stores an ACTIVE coupon and then re-reads the store. A delete
// that committed between the caller's read and the Set has already run its
// eviction, so the entry is dropped again unless the store still reports
// ACTIVE.
func (uc *CouponUsecase) cacheCoupon(ctx context.Context, coupon *domain.Coupon) {
	if uc.cache == nil || coupon.IsDeleted() {
		return
	}
	raw, err := json.Marshal(coupon)
	if err != nil {
		logger.WithContext(ctx).Warn().Err(err).Str("coupon_id", coupon.ID.String()).Msg("Failed to encode coupon for cache")
		return
	}
	uc.cache.Set(ctx, couponCacheKey(coupon.ID), raw, uc.cacheTTL)

	current, err := uc.couponRepo.FindByID(ctx, coupon.ID)
	if err != nil || current.IsDeleted() {
		uc.evictCoupon(ctx, coupon.ID)
	}
}

func (uc *CouponUsecase) evictCoupon(ctx context.Context, id uuid.UUID) {
	if uc.cache == nil {
		return
	}
	uc.cache.Delete(ctx, couponCacheKey(id))
}

func couponCacheKey(id uuid.UUID) string {
	return couponCacheKeyPrefix + id.String()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domain.IsValidationError(err):
		return "invalid"
	case errors.Is(err, domain.ErrCouponNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrCouponAlreadyDeleted):
		return "already_deleted"
	default:
		return "error"
	}
}
