package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averlane/storefront/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

const selectCartSQL = `SELECT id, user_id, created_at, updated_at FROM carts`

// GetOrCreate returns the user's cart, lazily creating an empty one. The
// insert is a no-op when a cart already exists, so concurrent first accesses
// cannot create duplicates.
func (r *CartRepository) GetOrCreate(ctx context.Context, userID int64) (*cart.Cart, error) {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING", userID)
	if err != nil {
		return nil, errors.Wrap(err, "create cart")
	}
	return r.GetByUser(ctx, userID)
}

// GetByUser returns the user's cart or cart.ErrNotFound.
func (r *CartRepository) GetByUser(ctx context.Context, userID int64) (*cart.Cart, error) {
	return scanCart(r.pool.QueryRow(ctx, selectCartSQL+" WHERE user_id = $1", userID))
}

const upsertItemSQL = `INSERT INTO cart_items (cart_id, product_id, quantity)
	VALUES ($1, $2, $3)
	ON CONFLICT (cart_id, product_id)
	DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
	RETURNING id, cart_id, product_id, quantity, added_at`

// UpsertItem inserts a cart item or increments the existing row for the same
// product, then touches the cart's updated_at.
func (r *CartRepository) UpsertItem(ctx context.Context, cartID, productID int64, quantity int) (*cart.Item, error) {
	item, err := scanCartItem(r.pool.QueryRow(ctx, upsertItemSQL, cartID, productID, quantity))
	if err != nil {
		return nil, err
	}
	if err := r.Touch(ctx, cartID); err != nil {
		return nil, err
	}
	return item, nil
}

const selectItemSQL = `SELECT id, cart_id, product_id, quantity, added_at FROM cart_items`

// GetItem returns a cart item by id or cart.ErrItemNotFound.
func (r *CartRepository) GetItem(ctx context.Context, itemID int64) (*cart.Item, error) {
	return scanCartItem(r.pool.QueryRow(ctx, selectItemSQL+" WHERE id = $1", itemID))
}

// UpdateItemQuantity replaces the item's quantity.
func (r *CartRepository) UpdateItemQuantity(ctx context.Context, itemID int64, quantity int) (*cart.Item, error) {
	return scanCartItem(r.pool.QueryRow(ctx,
		"UPDATE cart_items SET quantity = $2 WHERE id = $1 RETURNING id, cart_id, product_id, quantity, added_at",
		itemID, quantity))
}

// DeleteItem removes a cart item, reporting whether it existed.
func (r *CartRepository) DeleteItem(ctx context.Context, itemID int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM cart_items WHERE id = $1", itemID)
	if err != nil {
		return false, errors.Wrap(err, "delete cart item")
	}
	return tag.RowsAffected() > 0, nil
}

// ClearItems deletes every item in the cart. Idempotent.
func (r *CartRepository) ClearItems(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return errors.Wrap(err, "clear cart items")
	}
	return nil
}

// ListItems returns the cart's items, most recently added first.
func (r *CartRepository) ListItems(ctx context.Context, cartID int64) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx,
		selectItemSQL+" WHERE cart_id = $1 ORDER BY added_at DESC, id DESC", cartID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart items")
	}
	defer rows.Close()

	var items []cart.Item
	for rows.Next() {
		item, err := scanCartItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Touch bumps the cart's updated_at timestamp.
func (r *CartRepository) Touch(ctx context.Context, cartID int64) error {
	if _, err := r.pool.Exec(ctx, "UPDATE carts SET updated_at = now() WHERE id = $1", cartID); err != nil {
		return errors.Wrap(err, "touch cart")
	}
	return nil
}

func scanCart(row pgx.Row) (*cart.Cart, error) {
	var c cart.Cart
	if err := row.Scan(&c.ID, &c.UserID, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan cart")
	}
	return &c, nil
}

func scanCartItem(row pgx.Row) (*cart.Item, error) {
	var item cart.Item
	err := row.Scan(&item.ID, &item.CartID, &item.ProductID, &item.Quantity, &item.AddedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrItemNotFound
		}
		return nil, errors.Wrap(err, "scan cart item")
	}
	return &item, nil
}
