package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon-service/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const couponColumns = `id, code, description, discount_value, expiration_date, status, published, redeemed, created_at, updated_at`

// Only status and updated_at may change after insert.
const saveCouponQuery = `
INSERT INTO coupons (` + couponColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE
SET status = EXCLUDED.status,
    updated_at = EXCLUDED.updated_at
RETURNING ` + couponColumns

const getCouponByIDQuery = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

const lockCouponStatusQuery = `SELECT status FROM coupons WHERE id = $1 FOR UPDATE`

const markCouponDeletedQuery = `UPDATE coupons SET status = $2, updated_at = $3 WHERE id = $1`

type CouponRepository struct {
	db *pgxpool.Pool
	tx *TransactionManager
}

func NewCouponRepository(db *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{
		db: db,
		tx: NewTransactionManager(db),
	}
}

func (r *CouponRepository) Save(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	id := c.ID
	if id == uuid.Nil {
		id = uuid.New()
	}

	value, err := DecimalToNumeric(c.DiscountValue)
	if err != nil {
		return nil, fmt.Errorf("invalid discount value: %w", err)
	}

	row := dbFromContext(ctx, r.db).QueryRow(ctx, saveCouponQuery,
		pgtype.UUID{Bytes: id, Valid: true},
		c.Code,
		c.Description,
		value,
		c.ExpirationDate,
		string(c.Status),
		c.Published,
		c.Redeemed,
		c.CreatedAt,
		c.UpdatedAt,
	)
	return scanCoupon(row)
}

func (r *CouponRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	row := dbFromContext(ctx, r.db).QueryRow(ctx, getCouponByIDQuery, pgtype.UUID{Bytes: id, Valid: true})
	c, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCouponNotFound
		}
		return nil, err
	}
	return c, nil
}

// MarkDeleted locks the row before checking its status, so concurrent
// deletes are serialized and only the first one writes.
func (r *CouponRepository) MarkDeleted(ctx context.Context, id uuid.UUID, at time.Time) error {
	pgID := pgtype.UUID{Bytes: id, Valid: true}

	return r.tx.Do(ctx, func(ctx context.Context) error {
		q := dbFromContext(ctx, r.db)

		var status string
		if err := q.QueryRow(ctx, lockCouponStatusQuery, pgID).Scan(&status); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrCouponNotFound
			}
			return err
		}
		if domain.CouponStatus(status) == domain.CouponStatusDeleted {
			return domain.ErrCouponAlreadyDeleted
		}

		_, err := q.Exec(ctx, markCouponDeletedQuery, pgID, string(domain.CouponStatusDeleted), at)
		return err
	})
}

func scanCoupon(row pgx.Row) (*domain.Coupon, error) {
	var (
		id     pgtype.UUID
		value  pgtype.Numeric
		status string
		c      domain.Coupon
	)
	err := row.Scan(
		&id,
		&c.Code,
		&c.Description,
		&value,
		&c.ExpirationDate,
		&status,
		&c.Published,
		&c.Redeemed,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ID = uuid.UUID(id.Bytes)
	c.Status = domain.CouponStatus(status)
	if !c.Status.IsValid() {
		return nil, fmt.Errorf("unknown coupon status %q", status)
	}
	c.ExpirationDate = c.ExpirationDate.UTC()
	c.CreatedAt = c.CreatedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	if c.DiscountValue, err = NumericToDecimal(value); err != nil {
		return nil, err
	}
	return &c, nil
}

// DecimalToNumeric converts decimal.Decimal to pgtype.Numeric without
// going through float64.
func DecimalToNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.String()); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}

// NumericToDecimal converts a finite pgtype.Numeric to decimal.Decimal.
func NumericToDecimal(n pgtype.Numeric) (decimal.Decimal, error) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite || n.Int == nil {
		return decimal.Decimal{}, fmt.Errorf("numeric value is not a finite number")
	}
	return decimal.NewFromBigInt(n.Int, n.Exp), nil
}
