package handler

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/averlane/storefront/internal/domain/order"
)

type orderCreateRequest struct {
	Items []orderItemRequest `json:"items"`
}

type orderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type orderItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type orderResponse struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	Status        string              `json:"status"`
	PaymentStatus string              `json:"payment_status"`
	TotalPrice    decimal.Decimal     `json:"total_price"`
	PaymentRef    string              `json:"payment_ref,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	Items         []orderItemResponse `json:"items,omitempty"`
}

func toOrderResponse(o *order.Order, items []order.Item) orderResponse {
	resp := orderResponse{
		ID:            o.ID,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		TotalPrice:    o.TotalPrice,
		PaymentRef:    o.PaymentRef,
		CreatedAt:     o.CreatedAt,
		Items:         make([]orderItemResponse, len(items)),
	}
	for i, item := range items {
		resp.Items[i] = orderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
	}
	return resp
}

// createOrder checks out an explicit item list.
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())

	var req orderCreateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	items := make([]order.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = order.ItemRequest{ProductID: it.ProductID, Quantity: it.Quantity}
	}

	o, orderItems, err := h.orders.CreateFromItems(r.Context(), u.ID, items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o, orderItems))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	offset, limit := pageParams(r)

	orders, err := h.orders.ListByUser(r.Context(), u.ID, offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderListResponse(r, orders))
}

func (h *Handler) listAllOrders(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)

	orders, err := h.orders.ListAll(r.Context(), offset, limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.orderListResponse(r, orders))
}

// getOrder returns one order with its items. Users may only read their own
// orders.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	u, _ := CurrentUser(r.Context())
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	o, items, err := h.orders.GetWithItems(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if o.UserID != u.ID && !u.IsAdmin {
		h.writeError(w, r, errForbidden)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o, items))
}

func (h *Handler) orderListResponse(r *http.Request, orders []order.Order) []orderResponse {
	resp := make([]orderResponse, len(orders))
	for i := range orders {
		items, err := h.orders.Items(r.Context(), orders[i].ID)
		if err != nil {
			items = nil
		}
		resp[i] = toOrderResponse(&orders[i], items)
	}
	return resp
}
