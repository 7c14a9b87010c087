package handler

import (
	"net/http"
)

type addItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type updateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	c, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"cart": toCartView(c)})
}

func (h *Handler) getCartTotal(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	q, err := h.carts.Quote(r.Context(), id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"cart":   toCartView(q.Cart),
		"totals": toTotalsView(q.Totals),
	})
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	item, err := h.carts.Add(r.Context(), id.UserID, req.ProductID, req.VariantID, req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "item added to cart",
		"item":    toCartItemView(item),
	})
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	item, err := h.carts.UpdateItem(r.Context(), id.UserID, r.PathValue("itemID"), req.Quantity)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "cart item updated",
		"item":    toCartItemView(item),
	})
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := h.carts.Remove(r.Context(), id.UserID, r.PathValue("itemID")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "item removed from cart"})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := h.carts.Clear(r.Context(), id.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "cart cleared"})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	var req applyCouponRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	ac, err := h.carts.ApplyCoupon(r.Context(), id.UserID, req.Code)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "coupon applied",
		"coupon": appliedCouponView{
			Code:          ac.Code,
			DiscountType:  string(ac.DiscountType),
			DiscountValue: ac.DiscountValue.StringFixed(2),
		},
	})
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	if err := h.carts.RemoveCoupon(r.Context(), id.UserID); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "coupon removed"})
}
