package handler

import (
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/coupon"
)

type createCouponRequest struct {
	Code              string     `json:"code" validate:"required,min=3,max=64"`
	DiscountType      string     `json:"discount_type" validate:"required,oneof=percentage fixed"`
	Value             string     `json:"value" validate:"required"`
	MinimumPurchase   string     `json:"minimum_purchase"`
	MaximumDiscount   string     `json:"maximum_discount"`
	ExpiresAt         *time.Time `json:"expires_at"`
	UsageLimit        int        `json:"usage_limit" validate:"min=0"`
	UsageLimitPerUser int        `json:"usage_limit_per_user" validate:"min=0"`
	OneTimeUse        bool       `json:"one_time_use"`
	Description       string     `json:"description"`
}

type toggleCouponRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req createCouponRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	value, err := parseMoney(req.Value)
	if err != nil {
		respondError(w, r, err)
		return
	}
	minPurchase, err := parseMoney(req.MinimumPurchase)
	if err != nil {
		respondError(w, r, err)
		return
	}
	maxDiscount, err := parseMoney(req.MaximumDiscount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	c := &coupon.Coupon{
		Code:              req.Code,
		DiscountType:      coupon.DiscountType(req.DiscountType),
		Value:             value,
		MinimumPurchase:   minPurchase,
		MaximumDiscount:   maxDiscount,
		ExpiresAt:         req.ExpiresAt,
		UsageLimit:        req.UsageLimit,
		UsageLimitPerUser: req.UsageLimitPerUser,
		OneTimeUse:        req.OneTimeUse,
		Active:            true,
		Description:       req.Description,
	}
	if err := h.coupons.Create(r.Context(), c); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "coupon created",
		"coupon":  toCouponView(c),
	})
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.coupons.List(r.Context(), queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]couponView, 0, len(coupons))
	for i := range coupons {
		views = append(views, toCouponView(&coupons[i]))
	}
	writeJSON(w, http.StatusOK, envelope{"coupons": views})
}

func (h *Handler) toggleCoupon(w http.ResponseWriter, r *http.Request) {
	var req toggleCouponRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	code := r.PathValue("code")
	if err := h.coupons.SetActive(r.Context(), code, *req.Active); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "coupon updated"})
}

// parseMoney parses an optional decimal string, treating "" as zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errors.Wrapf(errBadRequest, "invalid amount %q", s)
	}
	return d, nil
}
