package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/vendhub/marketplace/internal/domain/cart"
	"github.com/vendhub/marketplace/internal/domain/coupon"
	"github.com/vendhub/marketplace/internal/domain/inventory"
	"github.com/vendhub/marketplace/internal/domain/order"
	"github.com/vendhub/marketplace/internal/domain/product"
	"github.com/vendhub/marketplace/internal/domain/user"
)

type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON parses the request body into dst and runs struct validation.
func (h *Handler) decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.Wrap(errBadRequest, "invalid JSON body")
	}
	return h.validate.Struct(dst)
}

// errBadRequest marks malformed input that has no more specific domain error.
var errBadRequest = errors.New("bad request")

// respondError maps domain errors onto the HTTP taxonomy: precondition and
// validation failures are 400, missing resources 404, ownership violations
// 403, lost races 409, everything else 500.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		valErrs    validator.ValidationErrors
		stockErr   *inventory.InsufficientStockError
		transErr   *order.IllegalTransitionError
		refundErr  *order.InvalidRefundAmountError
		minErr     *coupon.MinimumPurchaseError
		variantErr *product.VariantNotFoundError
	)
	switch {
	case errors.As(err, &valErrs),
		errors.Is(err, errBadRequest),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrUsageLimitReached),
		errors.Is(err, coupon.ErrAlreadyUsed),
		errors.As(err, &stockErr),
		errors.As(err, &transErr),
		errors.As(err, &refundErr),
		errors.As(err, &minErr):
		writeJSON(w, http.StatusBadRequest, envelope{"message": err.Error()})
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, coupon.ErrNotFound),
		errors.Is(err, user.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.As(err, &variantErr):
		writeJSON(w, http.StatusNotFound, envelope{"message": err.Error()})
	case errors.Is(err, order.ErrForbidden):
		writeJSON(w, http.StatusForbidden, envelope{"message": err.Error()})
	case errors.Is(err, order.ErrStatusConflict),
		errors.Is(err, coupon.ErrDuplicateCode):
		writeJSON(w, http.StatusConflict, envelope{"message": err.Error()})
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, envelope{"message": "internal server error"})
	}
}
