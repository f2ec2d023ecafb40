package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coupon-service/internal/domain"
	"coupon-service/internal/infrastructure/cache"
	"coupon-service/internal/repository/memory"

	"github.com/google/uuid"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func validInput() domain.CreateCouponInput {
	expires := fixedNow.Add(24 * time.Hour)
	return domain.CreateCouponInput{
		Code:           strPtr("ABC123!!"),
		Description:    "Test coupon",
		DiscountValue:  decPtr("10"),
		ExpirationDate: &expires,
	}
}

func newTestUsecase(opts ...CouponOption) (*CouponUsecase, *memory.CouponRepository) {
	repo := memory.NewCouponRepository()
	opts = append([]CouponOption{WithClock(fixedClock)}, opts...)
	return NewCouponUsecase(repo, opts...), repo
}

// saveFindOnly hides MarkDeleted so the generic read-modify-write path runs.
type saveFindOnly struct {
	repo *memory.CouponRepository
}

func (s saveFindOnly) Save(ctx context.Context, c *domain.Coupon) (*domain.Coupon, error) {
	return s.repo.Save(ctx, c)
}

func (s saveFindOnly) FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	return s.repo.FindByID(ctx, id)
}

type failingRepo struct {
	err error
}

func (f failingRepo) Save(context.Context, *domain.Coupon) (*domain.Coupon, error) {
	return nil, f.err
}

func (f failingRepo) FindByID(context.Context, uuid.UUID) (*domain.Coupon, error) {
	return nil, f.err
}

func TestCreateCoupon(t *testing.T) {
	uc, repo := newTestUsecase()
	ctx := context.Background()
	in := validInput()

	coupon, err := uc.CreateCoupon(ctx, in)
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}

	if coupon.ID == uuid.Nil {
		t.Error("expected an assigned ID")
	}
	if coupon.Code != "ABC123" {
		t.Errorf("Code: got %q, want %q", coupon.Code, "ABC123")
	}
	if coupon.Description != in.Description {
		t.Errorf("Description: got %q, want %q", coupon.Description, in.Description)
	}
	if !coupon.DiscountValue.Equal(*in.DiscountValue) {
		t.Errorf("DiscountValue: got %s, want %s", coupon.DiscountValue, in.DiscountValue)
	}
	if !coupon.ExpirationDate.Equal(*in.ExpirationDate) {
		t.Errorf("ExpirationDate: got %v, want %v", coupon.ExpirationDate, in.ExpirationDate)
	}
	if coupon.Status != domain.CouponStatusActive {
		t.Errorf("Status: got %s, want ACTIVE", coupon.Status)
	}
	if coupon.Published {
		t.Error("Published: omitted flag should default to false")
	}
	if coupon.Redeemed {
		t.Error("Redeemed: should always start false")
	}
	if !coupon.CreatedAt.Equal(fixedNow) {
		t.Errorf("CreatedAt: got %v, want %v", coupon.CreatedAt, fixedNow)
	}

	stored, err := repo.FindByID(ctx, coupon.ID)
	if err != nil {
		t.Fatalf("stored coupon: %v", err)
	}
	if stored.Code != "ABC123" || stored.Published {
		t.Errorf("stored coupon mismatch: %+v", stored)
	}
}

func TestCreateCouponPublished(t *testing.T) {
	uc, _ := newTestUsecase()
	in := validInput()
	published := true
	in.Published = &published

	coupon, err := uc.CreateCoupon(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if !coupon.Published {
		t.Error("expected published coupon")
	}
}

func TestCreateCouponNormalizesExpirationToUTC(t *testing.T) {
	uc, _ := newTestUsecase()
	in := validInput()
	local := fixedNow.Add(time.Hour).In(time.FixedZone("UTC+5", 5*60*60))
	in.ExpirationDate = &local

	coupon, err := uc.CreateCoupon(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if coupon.ExpirationDate.Location() != time.UTC {
		t.Errorf("expected UTC expiration, got %v", coupon.ExpirationDate.Location())
	}
	if !coupon.ExpirationDate.Equal(local) {
		t.Errorf("instant changed: got %v, want %v", coupon.ExpirationDate, local)
	}
}

func TestCreateCouponValidation(t *testing.T) {
	past := fixedNow.Add(-time.Second)
	now := fixedNow

	tests := []struct {
		name    string
		mutate  func(in *domain.CreateCouponInput)
		wantErr error
	}{
		{"missing code", func(in *domain.CreateCouponInput) { in.Code = nil }, domain.ErrMissingCode},
		{"short code", func(in *domain.CreateCouponInput) { in.Code = strPtr("A!1") }, domain.ErrInvalidCode},
		{"missing discount", func(in *domain.CreateCouponInput) { in.DiscountValue = nil }, domain.ErrInvalidDiscount},
		{"discount below minimum", func(in *domain.CreateCouponInput) { in.DiscountValue = decPtr("0.4") }, domain.ErrInvalidDiscount},
		{"discount at minimum", func(in *domain.CreateCouponInput) { in.DiscountValue = decPtr("0.5") }, nil},
		{"missing expiration", func(in *domain.CreateCouponInput) { in.ExpirationDate = nil }, domain.ErrInvalidExpiration},
		{"expiration in the past", func(in *domain.CreateCouponInput) { in.ExpirationDate = &past }, domain.ErrInvalidExpiration},
		{"expiration exactly now", func(in *domain.CreateCouponInput) { in.ExpirationDate = &now }, nil},
		{"code checked before discount", func(in *domain.CreateCouponInput) {
			in.Code = strPtr("A!1")
			in.DiscountValue = decPtr("0.1")
		}, domain.ErrInvalidCode},
		{"discount checked before expiration", func(in *domain.CreateCouponInput) {
			in.DiscountValue = decPtr("0.1")
			in.ExpirationDate = &past
		}, domain.ErrInvalidDiscount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _ := newTestUsecase()
			in := validInput()
			tt.mutate(&in)

			coupon, err := uc.CreateCoupon(context.Background(), in)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if coupon == nil {
					t.Fatal("expected a coupon")
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
			if coupon != nil {
				t.Error("no coupon should be returned on failure")
			}
		})
	}
}

func TestCreateCouponDoesNotPersistInvalidInput(t *testing.T) {
	repo := &countingRepo{CouponRepository: memory.NewCouponRepository()}
	uc := NewCouponUsecase(repo, WithClock(fixedClock))

	in := validInput()
	in.DiscountValue = decPtr("0.4")
	if _, err := uc.CreateCoupon(context.Background(), in); !errors.Is(err, domain.ErrInvalidDiscount) {
		t.Fatalf("got %v, want ErrInvalidDiscount", err)
	}
	if repo.saves != 0 {
		t.Errorf("expected no saves, got %d", repo.saves)
	}
}

type countingRepo struct {
	*memory.CouponRepository
	saves int
}

func (c *countingRepo) Save(ctx context.Context, coupon *domain.Coupon) (*domain.Coupon, error) {
	c.saves++
	return c.CouponRepository.Save(ctx, coupon)
}

func TestCouponLifecycle(t *testing.T) {
	stores := []struct {
		name string
		repo func() domain.CouponRepository
	}{
		{"atomic store", func() domain.CouponRepository { return memory.NewCouponRepository() }},
		{"save/find store", func() domain.CouponRepository { return saveFindOnly{repo: memory.NewCouponRepository()} }},
	}

	for _, store := range stores {
		t.Run(store.name, func(t *testing.T) {
			ctx := context.Background()
			uc := NewCouponUsecase(store.repo(), WithClock(fixedClock))

			created, err := uc.CreateCoupon(ctx, validInput())
			if err != nil {
				t.Fatalf("CreateCoupon: %v", err)
			}
			id := created.ID.String()

			got, err := uc.GetCoupon(ctx, id)
			if err != nil {
				t.Fatalf("GetCoupon: %v", err)
			}
			if got.Status != domain.CouponStatusActive {
				t.Errorf("Status: got %s, want ACTIVE", got.Status)
			}

			if err := uc.DeleteCoupon(ctx, id); err != nil {
				t.Fatalf("DeleteCoupon: %v", err)
			}
			if err := uc.DeleteCoupon(ctx, id); !errors.Is(err, domain.ErrCouponAlreadyDeleted) {
				t.Fatalf("second delete: got %v, want ErrCouponAlreadyDeleted", err)
			}
			if _, err := uc.GetCoupon(ctx, id); !errors.Is(err, domain.ErrCouponNotFound) {
				t.Fatalf("get after delete: got %v, want ErrCouponNotFound", err)
			}
		})
	}
}

func TestGetAndDeleteUnknownCoupon(t *testing.T) {
	uc, _ := newTestUsecase()
	ctx := context.Background()

	for _, id := range []string{uuid.NewString(), "not-a-uuid", ""} {
		if _, err := uc.GetCoupon(ctx, id); !errors.Is(err, domain.ErrCouponNotFound) {
			t.Errorf("GetCoupon(%q): got %v, want ErrCouponNotFound", id, err)
		}
		if err := uc.DeleteCoupon(ctx, id); !errors.Is(err, domain.ErrCouponNotFound) {
			t.Errorf("DeleteCoupon(%q): got %v, want ErrCouponNotFound", id, err)
		}
	}
}

func TestDeleteKeepsRecord(t *testing.T) {
	uc, repo := newTestUsecase()
	ctx := context.Background()

	created, err := uc.CreateCoupon(ctx, validInput())
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if err := uc.DeleteCoupon(ctx, created.ID.String()); err != nil {
		t.Fatalf("DeleteCoupon: %v", err)
	}

	stored, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("soft-deleted record should still exist: %v", err)
	}
	if stored.Status != domain.CouponStatusDeleted {
		t.Errorf("Status: got %s, want DELETED", stored.Status)
	}
	if stored.Code != created.Code || !stored.DiscountValue.Equal(created.DiscountValue) {
		t.Errorf("immutable fields changed: %+v", stored)
	}
}

func TestConcurrentDeleteSucceedsOnce(t *testing.T) {
	uc, _ := newTestUsecase()
	ctx := context.Background()

	created, err := uc.CreateCoupon(ctx, validInput())
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := uc.DeleteCoupon(ctx, created.ID.String())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, domain.ErrCouponAlreadyDeleted):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 || conflicts != workers-1 {
		t.Errorf("got %d successes and %d conflicts, want 1 and %d", succeeded, conflicts, workers-1)
	}
}

func TestCachedCouponIsEvictedOnDelete(t *testing.T) {
	memCache := cache.NewMemoryCache(time.Minute, time.Minute)
	uc, _ := newTestUsecase(WithCache(memCache, time.Minute))
	ctx := context.Background()

	created, err := uc.CreateCoupon(ctx, validInput())
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	if _, found := memCache.Get(ctx, couponCacheKey(created.ID)); !found {
		t.Fatal("expected created coupon to be cached")
	}

	cached, err := uc.GetCoupon(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("GetCoupon: %v", err)
	}
	if cached.Code != created.Code || !cached.DiscountValue.Equal(created.DiscountValue) {
		t.Errorf("cached coupon mismatch: %+v", cached)
	}

	if err := uc.DeleteCoupon(ctx, created.ID.String()); err != nil {
		t.Fatalf("DeleteCoupon: %v", err)
	}
	if _, found := memCache.Get(ctx, couponCacheKey(created.ID)); found {
		t.Error("deleted coupon should be evicted from cache")
	}
	if _, err := uc.GetCoupon(ctx, created.ID.String()); !errors.Is(err, domain.ErrCouponNotFound) {
		t.Errorf("got %v, want ErrCouponNotFound", err)
	}
}

func TestUnreadableCacheEntryFallsBackToStore(t *testing.T) {
	memCache := cache.NewMemoryCache(time.Minute, time.Minute)
	uc, _ := newTestUsecase(WithCache(memCache, time.Minute))
	ctx := context.Background()

	created, err := uc.CreateCoupon(ctx, validInput())
	if err != nil {
		t.Fatalf("CreateCoupon: %v", err)
	}
	memCache.Set(ctx, couponCacheKey(created.ID), []byte("{not json"), time.Minute)

	got, err := uc.GetCoupon(ctx, created.ID.String())
	if err != nil {
		t.Fatalf("GetCoupon: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("ID: got %s, want %s", got.ID, created.ID)
	}
}

func TestStorageErrorsPropagate(t *testing.T) {
	storeErr := errors.New("connection reset")
	uc := NewCouponUsecase(failingRepo{err: storeErr}, WithClock(fixedClock))
	ctx := context.Background()

	if _, err := uc.CreateCoupon(ctx, validInput()); !errors.Is(err, storeErr) {
		t.Errorf("CreateCoupon: got %v, want wrapped store error", err)
	}
	_, err := uc.GetCoupon(ctx, uuid.NewString())
	if !errors.Is(err, storeErr) {
		t.Errorf("GetCoupon: got %v, want wrapped store error", err)
	}
	if errors.Is(err, domain.ErrCouponNotFound) || domain.IsValidationError(err) {
		t.Errorf("store error must not be classified as a domain error: %v", err)
	}
	if err := uc.DeleteCoupon(ctx, uuid.NewString()); !errors.Is(err, storeErr) {
		t.Errorf("DeleteCoupon: got %v, want wrapped store error", err)
	}
}

// pausingRepo blocks the first FindByID after it is armed, once the store
// has answered, so a delete can commit before the reader continues.
type pausingRepo struct {
	*memory.CouponRepository
	mu      sync.Mutex
	paused  chan struct{}
	release chan struct{}
}

func (p *pausingRepo) arm() (paused <-chan struct{}, release chan<- struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = make(chan struct{})
	p.release = make(chan struct{})
	return p.paused, p.release
}

func (p *pausingRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Coupon, error) {
	coupon, err := p.CouponRepository.FindByID(ctx, id)

	p.mu.Lock()
	paused, release := p.paused, p.release
	p.paused, p.release = nil, nil
	p.mu.Unlock()

	if paused != nil {
		close(paused)
		<-release
	}
	return coupon, err
}

func TestReadRacingDeleteDoesNotRecacheCoupon(t *testing.T) {
	repo := &pausingRepo{CouponRepository: memory.NewCouponRepository()}
	memCache := cache.NewMemoryCache(time.Minute, time.Minute)
	uc := NewCouponUsecase(repo, WithClock(fixedClock), WithCache(memCache, time.Minute))
	ctx := context.Background()

	stored, err := repo.Save(ctx, &domain.Coupon{
		Code:           "ABC123",
		Description:    "Race",
		DiscountValue:  *decPtr("10"),
		ExpirationDate: fixedNow.Add(time.Hour),
		Status:         domain.CouponStatusActive,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	id := stored.ID.String()

	paused, release := repo.arm()
	readDone := make(chan error, 1)
	go func() {
		_, err := uc.GetCoupon(ctx, id)
		readDone <- err
	}()

	<-paused
	if err := uc.DeleteCoupon(ctx, id); err != nil {
		t.Fatalf("DeleteCoupon: %v", err)
	}
	close(release)

	if err := <-readDone; err != nil {
		t.Fatalf("racing GetCoupon: %v", err)
	}

	if _, found := memCache.Get(ctx, couponCacheKey(stored.ID)); found {
		t.Error("deleted coupon must not remain cached")
	}
	if _, err := uc.GetCoupon(ctx, id); !errors.Is(err, domain.ErrCouponNotFound) {
		t.Errorf("got %v, want ErrCouponNotFound", err)
	}
}
