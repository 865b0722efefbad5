package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/averlane/storefront/internal/domain/product"
)

type productCreateRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category"`
	MediaURL    string          `json:"media_url"`
}

type productPatchRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	Category    *string          `json:"category"`
	MediaURL    *string          `json:"media_url"`
	Rating      *float64         `json:"rating"`
	NumReviews  *int             `json:"num_reviews"`
}

type productResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Category    string          `json:"category,omitempty"`
	MediaURL    string          `json:"media_url,omitempty"`
	Rating      *float64        `json:"rating,omitempty"`
	NumReviews  *int            `json:"num_reviews,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
		MediaURL:    p.MediaURL,
		Rating:      p.Rating,
		NumReviews:  p.NumReviews,
		CreatedAt:   p.CreatedAt,
	}
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	products, err := h.products.List(r.Context(), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := make([]productResponse, len(products))
	for i := range products {
		resp[i] = toProductResponse(&products[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.products.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	if req.Price.IsNegative() {
		badRequest(w, "price cannot be negative")
		return
	}
	if req.Stock < 0 {
		badRequest(w, "stock cannot be negative")
		return
	}

	p := &product.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		MediaURL:    req.MediaURL,
	}
	if err := h.products.Create(r.Context(), p); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req productPatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Price != nil && req.Price.IsNegative() {
		badRequest(w, "price cannot be negative")
		return
	}
	if req.Stock != nil && *req.Stock < 0 {
		badRequest(w, "stock cannot be negative")
		return
	}

	p, err := h.products.Update(r.Context(), id, product.Patch{
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		Category:    req.Category,
		MediaURL:    req.MediaURL,
		Rating:      req.Rating,
		NumReviews:  req.NumReviews,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	existed, err := h.products.Delete(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !existed {
		h.writeError(w, r, product.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
