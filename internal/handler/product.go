package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vendhub/marketplace/internal/domain/product"
)

type createVariantRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Price string `json:"price"`
	Stock int    `json:"stock" validate:"min=0"`
}

type createProductRequest struct {
	ID          string                 `json:"id"`
	Title       string                 `json:"title" validate:"required"`
	Description string                 `json:"description"`
	Price       string                 `json:"price" validate:"required"`
	Stock       int                    `json:"stock" validate:"min=0"`
	Discount    string                 `json:"discount"`
	Category    string                 `json:"category"`
	Variants    []createVariantRequest `json:"variants" validate:"dive"`
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	f := product.Filter{
		Category: r.URL.Query().Get("category"),
		Limit:    queryInt(r, "limit"),
		Offset:   queryInt(r, "offset"),
	}

	products, err := h.products.List(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}

	views := make([]productView, 0, len(products))
	for i := range products {
		views = append(views, toProductView(&products[i]))
	}
	writeJSON(w, http.StatusOK, envelope{"products": views})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"product": toProductView(p)})
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	price, err := parseMoney(req.Price)
	if err != nil {
		respondError(w, r, err)
		return
	}
	discount, err := parseMoney(req.Discount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p := &product.Product{
		ID:          req.ID,
		Title:       req.Title,
		Description: req.Description,
		Price:       price,
		Stock:       req.Stock,
		Discount:    discount,
		Category:    req.Category,
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, v := range req.Variants {
		pv := product.Variant{ID: v.ID, Name: v.Name, Stock: v.Stock}
		if pv.ID == "" {
			pv.ID = uuid.NewString()
		}
		if v.Price != "" {
			vp, err := decimal.NewFromString(v.Price)
			if err != nil {
				respondError(w, r, errors.Wrapf(errBadRequest, "invalid variant price %q", v.Price))
				return
			}
			pv.Price = &vp
		}
		p.Variants = append(p.Variants, pv)
	}

	if err := h.products.Create(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{
		"message": "product created",
		"product": toProductView(p),
	})
}

type updateProductRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Price       string `json:"price" validate:"required"`
	Discount    string `json:"discount"`
	Category    string `json:"category"`
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if err := h.decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	price, err := parseMoney(req.Price)
	if err != nil {
		respondError(w, r, err)
		return
	}
	discount, err := parseMoney(req.Discount)
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := h.products.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	p.Title = req.Title
	p.Description = req.Description
	p.Price = price
	p.Discount = discount
	p.Category = req.Category

	if err := h.products.Update(r.Context(), p); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "product updated",
		"product": toProductView(p),
	})
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
