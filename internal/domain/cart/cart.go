package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Sentinel errors for cart operations.
var (
	// ErrNotFound is returned when the user has no cart yet and the
	// operation does not create one.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned when a cart item does not exist.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrForbidden is returned when a cart item belongs to another user.
	ErrForbidden = errors.New("cart belongs to another user")
	// ErrInvalidQuantity is returned for non-positive quantities.
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
)

// Cart is the per-user staging area of selected products prior to checkout.
// Exactly one cart exists per user; the row persists after checkout and only
// its items are cleared.
type Cart struct {
	ID        int64
	UserID    int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Item is a (product, quantity) line inside a cart. At most one Item exists
// per (cart, product) pair.
type Item struct {
	ID        int64
	CartID    int64
	ProductID int64
	Quantity  int
	AddedAt   time.Time
}

// Repository defines persistence operations for carts and their items.
type Repository interface {
	// GetOrCreate returns the user's cart, creating an empty one on first
	// access. Idempotent under the per-user uniqueness constraint.
	GetOrCreate(ctx context.Context, userID int64) (*Cart, error)
	// GetByUser returns the user's cart without creating one.
	GetByUser(ctx context.Context, userID int64) (*Cart, error)
	// UpsertItem inserts a new item or increments the quantity of the
	// existing (cart, product) row, and touches the cart's updated_at.
	UpsertItem(ctx context.Context, cartID, productID int64, quantity int) (*Item, error)
	// GetItem returns a single cart item by id.
	GetItem(ctx context.Context, itemID int64) (*Item, error)
	// UpdateItemQuantity replaces an item's quantity.
	UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) (*Item, error)
	// DeleteItem removes an item, reporting whether it existed.
	DeleteItem(ctx context.Context, itemID int64) (bool, error)
	// ClearItems deletes every item in the cart. No-op when already empty.
	ClearItems(ctx context.Context, cartID int64) error
	// ListItems returns the cart's items, most recently added first.
	ListItems(ctx context.Context, cartID int64) ([]Item, error)
	// Touch bumps the cart's updated_at timestamp.
	Touch(ctx context.Context, cartID int64) error
}
