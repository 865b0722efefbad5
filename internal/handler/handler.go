// Package handler adapts the domain services to HTTP. Each handler decodes
// the request, delegates to a service, and maps domain errors 1:1 to
// responses.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/averlane/storefront/internal/auth"
	"github.com/averlane/storefront/internal/domain/cart"
	"github.com/averlane/storefront/internal/domain/order"
	"github.com/averlane/storefront/internal/domain/payment"
	"github.com/averlane/storefront/internal/domain/product"
	"github.com/averlane/storefront/internal/domain/user"
)

const (
	defaultPageLimit = 100
	maxPageLimit     = 500
	maxBodyBytes     = 1 << 20
)

// errForbidden covers authenticated requests for another user's resources.
var errForbidden = errors.New("not authorized to access this resource")

// Handler holds every HTTP dependency and registers the API routes.
type Handler struct {
	users    *user.Service
	tokens   *auth.Tokens
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	payments *payment.Service
}

// New constructs a Handler with the required services.
func New(
	users *user.Service,
	tokens *auth.Tokens,
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	payments *payment.Service,
) *Handler {
	return &Handler{
		users:    users,
		tokens:   tokens,
		products: products,
		carts:    carts,
		orders:   orders,
		payments: payments,
	}
}

// Routes registers every API route on a fresh mux. Paths are rooted at /api.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/users", h.register)
	mux.HandleFunc("POST /api/auth/login", h.login)
	mux.Handle("GET /api/users/me", h.requireUser(h.me))
	mux.Handle("PATCH /api/users/me", h.requireUser(h.updateProfile))

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.Handle("POST /api/products", h.requireAdmin(h.createProduct))
	mux.Handle("PATCH /api/products/{id}", h.requireAdmin(h.updateProduct))
	mux.Handle("DELETE /api/products/{id}", h.requireAdmin(h.deleteProduct))

	mux.Handle("GET /api/cart", h.requireUser(h.getCart))
	mux.Handle("POST /api/cart/items", h.requireUser(h.addCartItem))
	mux.Handle("PUT /api/cart/items/{id}", h.requireUser(h.updateCartItem))
	mux.Handle("DELETE /api/cart/items/{id}", h.requireUser(h.removeCartItem))
	mux.Handle("DELETE /api/cart", h.requireUser(h.clearCart))
	mux.Handle("POST /api/cart/checkout", h.requireUser(h.checkoutCart))

	mux.Handle("POST /api/orders", h.requireUser(h.createOrder))
	mux.Handle("GET /api/orders", h.requireUser(h.listOrders))
	mux.Handle("GET /api/orders/{id}", h.requireUser(h.getOrder))
	mux.Handle("GET /api/admin/orders", h.requireAdmin(h.listAllOrders))

	mux.Handle("POST /api/payments/checkout-session/{orderID}", h.requireUser(h.createCheckoutSession))
	mux.HandleFunc("POST /api/payments/webhook", h.paymentWebhook)

	return mux
}

// errorResponse is the uniform error payload.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Checkout stock errors carry the offending product and quantities.
	ProductID *int64 `json:"product_id,omitempty"`
	Requested *int   `json:"requested,omitempty"`
	Available *int   `json:"available,omitempty"`
}

// writeError maps a domain error to its response status. Unmapped errors are
// logged and returned as 500 without leaking details.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponse{Message: err.Error()}

	var (
		pnf *order.ProductNotFoundError
		ins *order.InsufficientStockError
		iq  *order.InvalidQuantityError
		up  *payment.UpstreamError
	)
	switch {
	case errors.Is(err, user.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, order.ErrNotFound):
		resp.Code = http.StatusNotFound
	case errors.Is(err, user.ErrEmailTaken),
		errors.Is(err, payment.ErrAlreadyPaid):
		resp.Code = http.StatusConflict
	case errors.Is(err, user.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		resp.Code = http.StatusUnauthorized
	case errors.Is(err, errForbidden),
		errors.Is(err, cart.ErrForbidden):
		resp.Code = http.StatusForbidden
	case errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, order.ErrEmptyOrder),
		errors.Is(err, payment.ErrInvalidSignature),
		errors.Is(err, payment.ErrInvalidPayload),
		errors.As(err, &iq):
		resp.Code = http.StatusBadRequest
	case errors.As(err, &pnf):
		resp.Code = http.StatusUnprocessableEntity
		resp.ProductID = &pnf.ProductID
	case errors.As(err, &ins):
		resp.Code = http.StatusUnprocessableEntity
		resp.ProductID = &ins.ProductID
		resp.Requested = &ins.Requested
		resp.Available = &ins.Available
	case errors.As(err, &up):
		resp.Code = http.StatusBadGateway
	default:
		zctx.From(r.Context()).Error("Unhandled error", zap.Error(err))
		resp.Code = http.StatusInternalServerError
		resp.Message = "internal server error"
	}

	writeJSON(w, resp.Code, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded request body into dst, answering 400 itself on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}

// pathID parses the named int64 path segment, answering 400 itself when the
// value is not a positive integer.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid " + name,
		})
		return 0, false
	}
	return id, true
}

// pageParams parses offset/limit query parameters with sane bounds.
func pageParams(r *http.Request) (offset, limit int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageLimit)
	}
	return offset, limit
}
