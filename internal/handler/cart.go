package handler

import (
	"net/http"
	"time"

	"github.com/averlane/storefront/internal/domain/cart"
)

type cartItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type cartItemUpdateRequest struct {
	Quantity int `json:"quantity"`
}

type cartItemResponse struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type cartResponse struct {
	ID        int64              `json:"id"`
	UserID    int64              `json:"user_id"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Items     []cartItemResponse `json:"items"`
}

func toCartItemResponse(item *cart.Item) cartItemResponse {
	return cartItemResponse{
		ID:        item.ID,
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		AddedAt:   item.AddedAt,
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	c, items, err := h.carts.GetOrCreate(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := cartResponse{
		ID:        c.ID,
		UserID:    c.UserID,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
		Items:     make([]cartItemResponse, len(items)),
	}
	for i := range items {
		resp.Items[i] = toCartItemResponse(&items[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req cartItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.carts.AddItem(r.Context(), u.ID, req.ProductID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCartItemResponse(item))
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	itemID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req cartItemUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	item, err := h.carts.UpdateItem(r.Context(), u.ID, itemID, req.Quantity)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartItemResponse(item))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	itemID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.carts.RemoveItem(r.Context(), u.ID, itemID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	if err := h.carts.Clear(r.Context(), u.ID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// checkoutCart converts the user's cart into an order; the cart is emptied
// only when the order commits.
func (h *Handler) checkoutCart(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	o, items, err := h.orders.CreateFromCart(r.Context(), u.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o, items))
}
