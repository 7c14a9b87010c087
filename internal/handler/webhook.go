package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/vendhub/marketplace/internal/domain/order"
)

// WebhookHandler receives callbacks from the payment provider. Payloads are
// authenticated by an HMAC-SHA256 signature over the raw body.
type WebhookHandler struct {
	orders OrderService
	secret []byte
}

// NewWebhookHandler creates a WebhookHandler verifying signatures with the
// given shared secret.
func NewWebhookHandler(orders OrderService, secret []byte) *WebhookHandler {
	return &WebhookHandler{
		orders: orders,
		secret: secret,
	}
}

type paymentEvent struct {
	OrderID       string `json:"order_id" validate:"required"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id"`
}

// Payment processes a payment result: success confirms the order
// (pending to processing), failure cancels it and releases the stock.
// Responses carry no detail beyond status, the provider only retries on
// non-2xx.
func (h *WebhookHandler) Payment(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{"message": "unreadable body"})
		return
	}

	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	want := mac.Sum(nil)
	got, err := hex.DecodeString(r.Header.Get("X-Webhook-Signature"))
	if err != nil || !hmac.Equal(want, got) {
		writeJSON(w, http.StatusUnauthorized, envelope{"message": "invalid signature"})
		return
	}

	var ev paymentEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, envelope{"message": "invalid payload"})
		return
	}

	actor := order.Actor{ID: "payment-webhook"}
	switch ev.Status {
	case "succeeded":
		_, err = h.orders.UpdateStatus(r.Context(), ev.OrderID, actor,
			order.StatusProcessing, "payment confirmed", "", "")
	case "failed":
		_, err = h.orders.UpdateStatus(r.Context(), ev.OrderID, actor,
			order.StatusCancelled, "payment failed", "", "")
	default:
		writeJSON(w, http.StatusBadRequest, envelope{"message": "unknown payment status"})
		return
	}
	if err != nil {
		// A transition already applied (e.g. a retried delivery) is not a
		// provider problem; acknowledge it so the webhook is not retried.
		var transErr *order.IllegalTransitionError
		if errors.As(err, &transErr) {
			writeJSON(w, http.StatusOK, envelope{"message": "already processed"})
			return
		}
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"message": "ok"})
}
