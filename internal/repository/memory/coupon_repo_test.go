package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"coupon-service/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func newCoupon() *domain.Coupon {
	return &domain.Coupon{
		Code:           "ABC123",
		Description:    "Test coupon",
		DiscountValue:  decimal.RequireFromString("5"),
		ExpirationDate: time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:         domain.CouponStatusActive,
	}
}

func TestSaveAssignsIDAndCopies(t *testing.T) {
	repo := NewCouponRepository()
	ctx := context.Background()
	in := newCoupon()

	saved, err := repo.Save(ctx, in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID == uuid.Nil {
		t.Fatal("expected an ID to be assigned")
	}
	if in.ID != uuid.Nil {
		t.Error("Save must not mutate its argument")
	}

	saved.Description = "mutated"
	found, err := repo.FindByID(ctx, saved.ID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if found.Description != "Test coupon" {
		t.Errorf("store shares state with caller: got %q", found.Description)
	}
}

func TestSaveKeepsExistingID(t *testing.T) {
	repo := NewCouponRepository()
	in := newCoupon()
	in.ID = uuid.New()

	saved, err := repo.Save(context.Background(), in)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if saved.ID != in.ID {
		t.Errorf("ID: got %s, want %s", saved.ID, in.ID)
	}
}

func TestFindByIDMissing(t *testing.T) {
	repo := NewCouponRepository()
	if _, err := repo.FindByID(context.Background(), uuid.New()); !errors.Is(err, domain.ErrCouponNotFound) {
		t.Errorf("got %v, want ErrCouponNotFound", err)
	}
}

func TestMarkDeleted(t *testing.T) {
	repo := NewCouponRepository()
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	saved, err := repo.Save(ctx, newCoupon())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := repo.MarkDeleted(ctx, saved.ID, at); err != nil {
		t.Fatalf("MarkDeleted: %v", err)
	}
	found, _ := repo.FindByID(ctx, saved.ID)
	if found.Status != domain.CouponStatusDeleted {
		t.Errorf("Status: got %s, want DELETED", found.Status)
	}
	if !found.UpdatedAt.Equal(at) {
		t.Errorf("UpdatedAt: got %v, want %v", found.UpdatedAt, at)
	}

	if err := repo.MarkDeleted(ctx, saved.ID, at); !errors.Is(err, domain.ErrCouponAlreadyDeleted) {
		t.Errorf("second MarkDeleted: got %v, want ErrCouponAlreadyDeleted", err)
	}
	if err := repo.MarkDeleted(ctx, uuid.New(), at); !errors.Is(err, domain.ErrCouponNotFound) {
		t.Errorf("unknown id: got %v, want ErrCouponNotFound", err)
	}
}
