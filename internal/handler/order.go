package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/order"
)

type addressRequest struct {
	Name       string `json:"name" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country" validate:"required"`
	Phone      string `json:"phone"`
}

func (a *addressRequest) toDomain() order.Address {
	return order.Address{
		Name:       a.Name,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

type createOrderRequest struct {
	ShippingAddress addressRequest  `json:"shipping_address" validate:"required"`
	BillingAddress  *addressRequest `json:"billing_address"`
	PaymentMethod   string          `json:"payment_method" validate:"required"`
	ShippingMethod  string          `json:"shipping_method" validate:"omitempty,oneof=standard express"`
	Notes           string          `json:"notes"`
}

type guestItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type guestOrderRequest struct {
	Email           string             `json:"email" validate:"required,email"`
	Name            string             `json:"name"`
	Items           []guestItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress addressRequest     `json:"shipping_address" validate:"required"`
	BillingAddress  *addressRequest    `json:"billing_address"`
	PaymentMethod   string             `json:"payment_method" validate:"required"`
	ShippingMethod  string             `json:"shipping_method" validate:"omitempty,oneof=standard express"`
	CouponCode      string             `json:"coupon_code"`
	Notes           string             `json:"notes"`
}

type updateStatusRequest struct {
	Status         string `json:"status" validate:"required"`
	Note           string `json:"note"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type refundRequest struct {
	Amount        string `json:"amount" validate:"required"`
	Reason        string `json:"reason"`
	TransactionID string `json:"transaction_id"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	domainReq := order.CreateRequest{
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   req.PaymentMethod,
		ShippingMethod:  req.ShippingMethod,
		Notes:           req.Notes,
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		domainReq.BillingAddress = &billing
	}

	o, err := h.orders.Create(r.Context(), id.UserID, domainReq)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "order created",
		"order":   toOrderView(o),
	})
}

func (h *Handler) createGuestOrder(w http.ResponseWriter, r *http.Request) {
	var req guestOrderRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	items := make([]order.GuestItem, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.GuestItem{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity}
	}
	domainReq := order.GuestRequest{
		Email:           req.Email,
		Name:            req.Name,
		Items:           items,
		ShippingAddress: req.ShippingAddress.toDomain(),
		PaymentMethod:   req.PaymentMethod,
		ShippingMethod:  req.ShippingMethod,
		CouponCode:      req.CouponCode,
		Notes:           req.Notes,
	}
	if req.BillingAddress != nil {
		billing := req.BillingAddress.toDomain()
		domainReq.BillingAddress = &billing
	}

	o, err := h.orders.CreateGuest(r.Context(), domainReq)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "order created",
		"order":   toOrderView(o),
	})
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	orders, err := h.orders.ListByUser(r.Context(), id.UserID, queryInt(r, "limit"), queryInt(r, "offset"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]orderView, 0, len(orders))
	for i := range orders {
		views = append(views, toOrderView(&orders[i]))
	}
	writeJSON(w, http.StatusOK, envelope{"orders": views})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := IdentityFrom(r.Context())
	o, err := h.orders.Get(r.Context(), r.PathValue("id"), order.Actor{ID: id.UserID, Admin: id.Admin})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"order": toOrderView(o)})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := h.decodeJSON(r, &req); err != nil {
			respondError(w, r, err)
			return
		}
	}

	id, _ := IdentityFrom(r.Context())
	o, err := h.orders.Cancel(r.Context(), r.PathValue("id"), id.UserID, req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "order cancelled",
		"order":   toOrderView(o),
	})
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	actor := order.Actor{ID: id.UserID, Admin: id.Admin}
	o, err := h.orders.UpdateStatus(r.Context(), r.PathValue("id"), actor,
		order.Status(req.Status), req.Note, req.TrackingNumber, req.Carrier)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "order status updated",
		"order":   toOrderView(o),
	})
}

func (h *Handler) refundOrder(w http.ResponseWriter, r *http.Request) {
	var req refundRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(w, r, errors.Wrap(errBadRequest, "invalid refund amount"))
		return
	}

	id, _ := IdentityFrom(r.Context())
	actor := order.Actor{ID: id.UserID, Admin: id.Admin}
	o, err := h.orders.ProcessRefund(r.Context(), r.PathValue("id"), actor, amount, req.Reason, req.TransactionID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "refund processed",
		"order":   toOrderView(o),
	})
}
