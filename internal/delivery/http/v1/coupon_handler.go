package v1

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"coupon-service/internal/domain"
	"coupon-service/internal/usecase"
	"coupon-service/pkg/logger"
	"coupon-service/pkg/utils"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CouponHandler exposes the coupon lifecycle over HTTP.
type CouponHandler struct {
	couponUC     *usecase.CouponUsecase
	maxBodyBytes int64
}

const defaultMaxBodyBytes = 64 << 10

func NewCouponHandler(uc *usecase.CouponUsecase, maxBodyBytes int64) *CouponHandler {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &CouponHandler{
		couponUC:     uc,
		maxBodyBytes: maxBodyBytes,
	}
}

// RegisterRoutes mounts the coupon endpoints on mux.
func (h *CouponHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/coupons", h.CreateCoupon)
	mux.HandleFunc("GET /api/v1/coupons/{id}", h.GetCoupon)
	mux.HandleFunc("DELETE /api/v1/coupons/{id}", h.DeleteCoupon)
}

// Absent fields stay nil so the usecase can tell "missing" from "zero".
type createCouponRequest struct {
	Code           *string          `json:"code"`
	Description    string           `json:"description"`
	DiscountValue  *decimal.Decimal `json:"discountValue"`
	ExpirationDate *time.Time       `json:"expirationDate"`
	Published      *bool            `json:"published"`
}

type couponResponse struct {
	ID             uuid.UUID           `json:"id"`
	Code           string              `json:"code"`
	Description    string              `json:"description"`
	DiscountValue  json.Number         `json:"discountValue"`
	ExpirationDate time.Time           `json:"expirationDate"`
	Status         domain.CouponStatus `json:"status"`
	Published      bool                `json:"published"`
	Redeemed       bool                `json:"redeemed"`
}

func toCouponResponse(c *domain.Coupon) couponResponse {
	return couponResponse{
		ID:             c.ID,
		Code:           c.Code,
		Description:    c.Description,
		DiscountValue:  json.Number(c.DiscountValue.String()),
		ExpirationDate: c.ExpirationDate,
		Status:         c.Status,
		Published:      c.Published,
		Redeemed:       c.Redeemed,
	}
}

// CreateCoupon creates a new coupon.
// POST /api/v1/coupons
func (h *CouponHandler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := utils.DecodeJSON(http.MaxBytesReader(w, r.Body, h.maxBodyBytes), &req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		utils.WriteError(w, http.StatusBadRequest, domain.ErrMissingDescription.Error())
		return
	}

	coupon, err := h.couponUC.CreateCoupon(r.Context(), domain.CreateCouponInput{
		Code:           req.Code,
		Description:    req.Description,
		DiscountValue:  req.DiscountValue,
		ExpirationDate: req.ExpirationDate,
		Published:      req.Published,
	})
	if err != nil {
		h.writeCouponError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, toCouponResponse(coupon))
}

// GetCoupon returns a single active coupon by ID.
// GET /api/v1/coupons/{id}
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	coupon, err := h.couponUC.GetCoupon(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeCouponError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, toCouponResponse(coupon))
}

// DeleteCoupon soft-deletes a coupon by ID.
// DELETE /api/v1/coupons/{id}
func (h *CouponHandler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.couponUC.DeleteCoupon(r.Context(), r.PathValue("id")); err != nil {
		h.writeCouponError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *CouponHandler) writeCouponError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsValidationError(err):
		utils.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrCouponNotFound):
		utils.WriteError(w, http.StatusNotFound, domain.ErrCouponNotFound.Error())
	case errors.Is(err, domain.ErrCouponAlreadyDeleted):
		utils.WriteError(w, http.StatusConflict, domain.ErrCouponAlreadyDeleted.Error())
	default:
		logger.WithContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Coupon request failed")
		utils.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}
