package order

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/averlane/storefront/internal/domain/cart"
	"github.com/averlane/storefront/internal/domain/product"
)

// Service implements the checkout workflow and the payment-status state
// machine. Checkout validates every item read-only first, then performs all
// mutations inside one transaction: either the order, all of its line items,
// and every stock decrement commit together, or none of them persist.
type Service struct {
	store    Store
	products product.Repository
	carts    cart.Repository

	ordersCreated metric.Int64Counter
}

// NewService creates an order Service. The meter may come from a noop
// provider in tests.
func NewService(store Store, products product.Repository, carts cart.Repository, meter metric.Meter) *Service {
	if meter == nil {
		meter = noop.Meter{}
	}
	ordersCreated, err := meter.Int64Counter("storefront.orders.created")
	if err != nil {
		ordersCreated, _ = noop.Meter{}.Int64Counter("storefront.orders.created")
	}
	return &Service{
		store:         store,
		products:      products,
		carts:         carts,
		ordersCreated: ordersCreated,
	}
}

// CreateFromItems checks out an explicit item list for the user.
func (s *Service) CreateFromItems(ctx context.Context, userID int64, items []ItemRequest) (*Order, []Item, error) {
	return s.checkout(ctx, userID, items, 0)
}

// CreateFromCart checks out the user's cart. On success the cart's items are
// cleared within the same transaction; on failure the cart is untouched.
func (s *Service) CreateFromCart(ctx context.Context, userID int64) (*Order, []Item, error) {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	cartItems, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list cart items")
	}

	items := make([]ItemRequest, len(cartItems))
	for i, ci := range cartItems {
		items[i] = ItemRequest{ProductID: ci.ProductID, Quantity: ci.Quantity}
	}
	return s.checkout(ctx, userID, items, c.ID)
}

// checkout runs the shared two-pass algorithm. A non-zero clearCartID clears
// that cart inside the checkout transaction.
func (s *Service) checkout(ctx context.Context, userID int64, items []ItemRequest, clearCartID int64) (*Order, []Item, error) {
	if len(items) == 0 {
		return nil, nil, ErrEmptyOrder
	}

	// Pass 1: read-only validation. No mutation happens until every item has
	// passed, so validation failures never leave partial effects.
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, nil, &InvalidQuantityError{ProductID: it.ProductID}
		}
		p, err := s.products.GetByID(ctx, it.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return nil, nil, &ProductNotFoundError{ProductID: it.ProductID}
			}
			return nil, nil, errors.Wrap(err, "get product")
		}
		if it.Quantity > p.Stock {
			return nil, nil, &InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Quantity,
				Available: p.Stock,
			}
		}
	}

	// Pass 2: all writes inside a single transaction. Products are re-read
	// here; the conditional decrement makes a stock drop between the two
	// passes abort the transaction rather than oversell.
	var (
		created    Order
		orderItems []Item
	)
	err := s.store.InTx(ctx, func(tx Tx) error {
		created = Order{
			UserID:        userID,
			Status:        StatusPending,
			PaymentStatus: PaymentPending,
			TotalPrice:    decimal.Zero,
		}
		if err := tx.InsertOrder(ctx, &created); err != nil {
			return errors.Wrap(err, "insert order")
		}

		total := decimal.Zero
		orderItems = orderItems[:0]
		for _, it := range items {
			_, price, stock, err := tx.ProductForUpdate(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, product.ErrNotFound) {
					return &ProductNotFoundError{ProductID: it.ProductID}
				}
				return errors.Wrap(err, "read product")
			}

			ok, err := tx.DecrementStock(ctx, it.ProductID, it.Quantity)
			if err != nil {
				return errors.Wrap(err, "decrement stock")
			}
			if !ok {
				return &InsufficientStockError{
					ProductID: it.ProductID,
					Requested: it.Quantity,
					Available: stock,
				}
			}

			item := Item{
				OrderID:   created.ID,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: price,
			}
			if err := tx.InsertItem(ctx, &item); err != nil {
				return errors.Wrap(err, "insert order item")
			}
			orderItems = append(orderItems, item)

			total = total.Add(price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}

		total = total.Round(2)
		if err := tx.SetTotal(ctx, created.ID, total); err != nil {
			return errors.Wrap(err, "set total")
		}
		created.TotalPrice = total

		if clearCartID != 0 {
			if err := tx.ClearCart(ctx, clearCartID); err != nil {
				return errors.Wrap(err, "clear cart")
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.ordersCreated.Add(ctx, 1)
	return &created, orderItems, nil
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id int64) (*Order, error) {
	return s.store.Get(ctx, id)
}

// Items returns an order's line items.
func (s *Service) Items(ctx context.Context, orderID int64) ([]Item, error) {
	return s.store.Items(ctx, orderID)
}

// GetWithItems returns an order together with its line items.
func (s *Service) GetWithItems(ctx context.Context, id int64) (*Order, []Item, error) {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.store.Items(ctx, id)
	if err != nil {
		return nil, nil, errors.Wrap(err, "load items")
	}
	return o, items, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64, offset, limit int) ([]Order, error) {
	return s.store.ListByUser(ctx, userID, offset, limit)
}

// ListAll returns all orders, newest first. Administrative.
func (s *Service) ListAll(ctx context.Context, offset, limit int) ([]Order, error) {
	return s.store.ListAll(ctx, offset, limit)
}

// FindByPaymentRef resolves an order by its stored payment reference.
func (s *Service) FindByPaymentRef(ctx context.Context, ref string) (*Order, error) {
	return s.store.FindByPaymentRef(ctx, ref)
}

// SetPaymentStatus applies a payment transition: paid confirms the order,
// failed cancels it, any other payment status leaves fulfillment unchanged.
// The payment reference, once stored, is never cleared. Idempotent: applying
// the same transition twice re-writes the same fields.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID int64, payment PaymentStatus, ref string) (*Order, error) {
	var status Status
	switch payment {
	case PaymentPaid:
		status = StatusConfirmed
	case PaymentFailed:
		status = StatusCancelled
	default:
		status = "" // fulfillment untouched
	}
	return s.store.UpdatePayment(ctx, orderID, payment, status, ref)
}
