package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/averlane/storefront/internal/domain/order"
	"github.com/averlane/storefront/internal/domain/product"
)

var _ order.Store = (*OrderStore)(nil)

// OrderStore implements order.Store backed by PostgreSQL. The checkout write
// pass runs through orderTx inside a single database transaction.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore returns an OrderStore that uses the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// InTx runs fn inside one transaction; any error rolls everything back.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx order.Tx) error) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&orderTx{tx: tx})
	})
}

const selectOrderSQL = `SELECT id, user_id, status, payment_status, total_price,
	COALESCE(payment_ref, ''), created_at
	FROM orders`

// Get returns an order by id or order.ErrNotFound.
func (s *OrderStore) Get(ctx context.Context, id int64) (*order.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, selectOrderSQL+" WHERE id = $1", id))
}

// Items returns the order's line items in insertion order.
func (s *OrderStore) Items(ctx context.Context, orderID int64) ([]order.Item, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT id, order_id, product_id, quantity, unit_price FROM order_items WHERE order_id = $1 ORDER BY id",
		orderID)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var item order.Item
		if err := rows.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListByUser returns the user's orders, newest first.
func (s *OrderStore) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]order.Order, error) {
	return s.list(ctx, selectOrderSQL+" WHERE user_id = $1 ORDER BY created_at DESC, id DESC OFFSET $2 LIMIT $3",
		userID, offset, limit)
}

// ListAll returns all orders, newest first.
func (s *OrderStore) ListAll(ctx context.Context, offset, limit int) ([]order.Order, error) {
	return s.list(ctx, selectOrderSQL+" ORDER BY created_at DESC, id DESC OFFSET $1 LIMIT $2", offset, limit)
}

func (s *OrderStore) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	defer rows.Close()

	var orders []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

const updatePaymentSQL = `UPDATE orders SET
	payment_status = $2,
	status         = CASE WHEN $3 = '' THEN status ELSE $3 END,
	payment_ref    = COALESCE(payment_ref, NULLIF($4, ''))
	WHERE id = $1
	RETURNING id, user_id, status, payment_status, total_price, COALESCE(payment_ref, ''), created_at`

// UpdatePayment applies a payment transition. An empty status leaves the
// fulfillment status unchanged; the payment reference is write-once.
// Re-applying the same transition rewrites identical fields, so the
// operation is idempotent.
func (s *OrderStore) UpdatePayment(ctx context.Context, id int64, payment order.PaymentStatus, status order.Status, ref string) (*order.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, updatePaymentSQL, id, string(payment), string(status), ref))
}

// FindByPaymentRef resolves an order by its stored payment reference.
func (s *OrderStore) FindByPaymentRef(ctx context.Context, ref string) (*order.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, selectOrderSQL+" WHERE payment_ref = $1", ref))
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserID, &o.Status, &o.PaymentStatus, &o.TotalPrice, &o.PaymentRef, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan order")
	}
	return &o, nil
}

// orderTx is the per-transaction unit-of-work for the checkout write pass.
type orderTx struct {
	tx pgx.Tx
}

var _ order.Tx = (*orderTx)(nil)

// ProductForUpdate re-reads the product's billing fields inside the
// transaction.
func (t *orderTx) ProductForUpdate(ctx context.Context, productID int64) (string, decimal.Decimal, int, error) {
	var (
		name  string
		price decimal.Decimal
		stock int
	)
	err := t.tx.QueryRow(ctx,
		"SELECT name, price, stock FROM products WHERE id = $1", productID,
	).Scan(&name, &price, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", decimal.Zero, 0, product.ErrNotFound
		}
		return "", decimal.Zero, 0, errors.Wrap(err, "read product")
	}
	return name, price, stock, nil
}

// InsertOrder creates the order row and assigns its id via RETURNING before
// the transaction commits, so line items can reference it.
func (t *orderTx) InsertOrder(ctx context.Context, o *order.Order) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO orders (user_id, status, payment_status, total_price)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		o.UserID, string(o.Status), string(o.PaymentStatus), o.TotalPrice,
	).Scan(&o.ID, &o.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert order")
	}
	return nil
}

// InsertItem creates an order line item with its unit-price snapshot.
func (t *orderTx) InsertItem(ctx context.Context, item *order.Item) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice,
	).Scan(&item.ID)
	if err != nil {
		return errors.Wrap(err, "insert order item")
	}
	return nil
}

// DecrementStock subtracts quantity from the product's stock only when
// enough is available. Zero rows affected means the stock is short; two
// racing checkouts therefore cannot both drain the same units.
func (t *orderTx) DecrementStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	tag, err := t.tx.Exec(ctx,
		"UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2",
		productID, quantity)
	if err != nil {
		return false, errors.Wrap(err, "decrement stock")
	}
	return tag.RowsAffected() > 0, nil
}

// SetTotal finalizes the order's total price.
func (t *orderTx) SetTotal(ctx context.Context, orderID int64, total decimal.Decimal) error {
	if _, err := t.tx.Exec(ctx, "UPDATE orders SET total_price = $2 WHERE id = $1", orderID, total); err != nil {
		return errors.Wrap(err, "set order total")
	}
	return nil
}

// ClearCart removes the cart's items as part of the checkout transaction.
func (t *orderTx) ClearCart(ctx context.Context, cartID int64) error {
	if _, err := t.tx.Exec(ctx,
		"DELETE FROM cart_items WHERE cart_id = $1", cartID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	if _, err := t.tx.Exec(ctx,
		"UPDATE carts SET updated_at = now() WHERE id = $1", cartID); err != nil {
		return errors.Wrap(err, "touch cart")
	}
	return nil
}
