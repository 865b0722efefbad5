package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Status is the order fulfillment lifecycle, distinct from payment status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// PaymentStatus is the lifecycle of external payment confirmation.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

// Sentinel errors for order operations.
var (
	// ErrNotFound is returned when a requested order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrEmptyOrder is returned when checkout is attempted with no items.
	ErrEmptyOrder = errors.New("order has no items")
)

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID int64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %d not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// InsufficientStockError indicates a requested quantity exceeds the
// product's available stock.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

// Order is an immutable purchase record created at checkout. Only the status
// fields and the write-once payment reference change after creation.
type Order struct {
	ID            int64
	UserID        int64
	Status        Status
	PaymentStatus PaymentStatus
	TotalPrice    decimal.Decimal
	PaymentRef    string
	CreatedAt     time.Time
}

// Item is a line item with the unit price snapshotted at order creation,
// decoupled from later catalog price changes.
type Item struct {
	ID        int64
	OrderID   int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// ItemRequest is a (product, quantity) pair requested at checkout.
type ItemRequest struct {
	ProductID int64
	Quantity  int
}

// Store defines persistence for orders, including the transactional
// unit-of-work that bounds the checkout write pass.
type Store interface {
	// InTx runs fn inside a single database transaction. Any error from fn
	// rolls back every write made through the Tx.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Get(ctx context.Context, id int64) (*Order, error)
	Items(ctx context.Context, orderID int64) ([]Item, error)
	ListByUser(ctx context.Context, userID int64, offset, limit int) ([]Order, error)
	ListAll(ctx context.Context, offset, limit int) ([]Order, error)

	// UpdatePayment applies a payment-status transition. When status is the
	// empty string the fulfillment status is left unchanged; a non-empty ref
	// is stored only if none is present yet. Idempotent.
	UpdatePayment(ctx context.Context, id int64, payment PaymentStatus, status Status, ref string) (*Order, error)
	// FindByPaymentRef resolves an order by its stored payment reference.
	FindByPaymentRef(ctx context.Context, ref string) (*Order, error)
}

// Tx is the per-transaction unit-of-work used by the checkout write pass.
// InsertOrder assigns the order id before the transaction commits so that
// line items can reference it.
type Tx interface {
	ProductForUpdate(ctx context.Context, productID int64) (name string, price decimal.Decimal, stock int, err error)
	InsertOrder(ctx context.Context, o *Order) error
	InsertItem(ctx context.Context, item *Item) error
	// DecrementStock atomically subtracts quantity from the product's stock,
	// refusing to go below zero. Returns false when stock is short.
	DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error)
	SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error
	ClearCart(ctx context.Context, cartID int64) error
}
