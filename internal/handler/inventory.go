package handler

import (
	"net/http"

	"github.com/vendhub/marketplace/internal/domain/inventory"
)

type adjustInventoryRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	VariantID string `json:"variant_id"`
	NewStock  int    `json:"new_stock" validate:"min=0"`
	Reason    string `json:"reason" validate:"required"`
}

func (h *Handler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	var req adjustInventoryRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	id, _ := IdentityFrom(r.Context())
	ref := inventory.ItemRef{ProductID: req.ProductID, VariantID: req.VariantID}
	entry, err := h.stock.Adjust(r.Context(), ref, req.NewStock, req.Reason, id.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "stock adjusted",
		"entry":   toLedgerEntryView(entry),
	})
}

func (h *Handler) inventoryHistory(w http.ResponseWriter, r *http.Request) {
	f := inventory.HistoryFilter{
		ProductID: r.URL.Query().Get("product_id"),
		Limit:     queryInt(r, "limit"),
		Offset:    queryInt(r, "offset"),
	}

	entries, err := h.stock.History(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]ledgerEntryView, 0, len(entries))
	for i := range entries {
		views = append(views, toLedgerEntryView(&entries[i]))
	}
	writeJSON(w, http.StatusOK, envelope{"entries": views})
}
