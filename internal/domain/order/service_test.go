package order

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/storefront/internal/domain/cart"
	"github.com/averlane/storefront/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[int64]*product.Product
}

func (m *mockProductRepo) Create(context.Context, *product.Product) error { return nil }

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *mockProductRepo) List(context.Context, int, int) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) Update(context.Context, int64, product.Patch) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) Delete(context.Context, int64) (bool, error) { return false, nil }

// mockStore is an in-memory Store whose transactions stage every write and
// only apply it on commit, mirroring the rollback behavior of the real one.
type mockStore struct {
	products *mockProductRepo

	nextOrderID int64
	nextItemID  int64
	orders      map[int64]*Order
	items       map[int64][]Item
	cleared     []int64
}

func newMockStore(products *mockProductRepo) *mockStore {
	return &mockStore{
		products: products,
		orders:   make(map[int64]*Order),
		items:    make(map[int64][]Item),
	}
}

func (m *mockStore) InTx(_ context.Context, fn func(tx Tx) error) error {
	tx := &mockTx{store: m, stock: make(map[int64]int)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *mockStore) Get(_ context.Context, id int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) Items(_ context.Context, orderID int64) ([]Item, error) {
	return m.items[orderID], nil
}

func (m *mockStore) ListByUser(_ context.Context, userID int64, _, _ int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockStore) ListAll(context.Context, int, int) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		out = append(out, *o)
	}
	return out, nil
}

func (m *mockStore) UpdatePayment(_ context.Context, id int64, payment PaymentStatus, status Status, ref string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	o.PaymentStatus = payment
	if status != "" {
		o.Status = status
	}
	if o.PaymentRef == "" && ref != "" {
		o.PaymentRef = ref
	}
	cp := *o
	return &cp, nil
}

func (m *mockStore) FindByPaymentRef(_ context.Context, ref string) (*Order, error) {
	for _, o := range m.orders {
		if o.PaymentRef == ref && ref != "" {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

type mockTx struct {
	store *mockStore

	order   *Order
	items   []Item
	stock   map[int64]int // staged decrements
	total   decimal.Decimal
	cleared []int64
}

func (t *mockTx) staged(productID int64) (int, bool) {
	p, ok := t.store.products.byID[productID]
	if !ok {
		return 0, false
	}
	return p.Stock - t.stock[productID], true
}

func (t *mockTx) ProductForUpdate(_ context.Context, productID int64) (string, decimal.Decimal, int, error) {
	p, ok := t.store.products.byID[productID]
	if !ok {
		return "", decimal.Zero, 0, product.ErrNotFound
	}
	stock, _ := t.staged(productID)
	return p.Name, p.Price, stock, nil
}

func (t *mockTx) InsertOrder(_ context.Context, o *Order) error {
	t.store.nextOrderID++
	o.ID = t.store.nextOrderID
	cp := *o
	t.order = &cp
	return nil
}

func (t *mockTx) InsertItem(_ context.Context, item *Item) error {
	t.store.nextItemID++
	item.ID = t.store.nextItemID
	t.items = append(t.items, *item)
	return nil
}

func (t *mockTx) DecrementStock(_ context.Context, productID int64, quantity int) (bool, error) {
	stock, ok := t.staged(productID)
	if !ok || stock < quantity {
		return false, nil
	}
	t.stock[productID] += quantity
	return true, nil
}

func (t *mockTx) SetTotal(_ context.Context, orderID int64, total decimal.Decimal) error {
	t.total = total
	if t.order != nil && t.order.ID == orderID {
		t.order.TotalPrice = total
	}
	return nil
}

func (t *mockTx) ClearCart(_ context.Context, cartID int64) error {
	t.cleared = append(t.cleared, cartID)
	return nil
}

func (t *mockTx) commit() {
	if t.order != nil {
		t.store.orders[t.order.ID] = t.order
		t.store.items[t.order.ID] = t.items
	}
	for id, dec := range t.stock {
		t.store.products.byID[id].Stock -= dec
	}
	t.store.cleared = append(t.store.cleared, t.cleared...)
}

type mockCartRepo struct {
	cart  *cart.Cart
	items []cart.Item
	err   error
}

func (m *mockCartRepo) GetOrCreate(context.Context, int64) (*cart.Cart, error) {
	return m.cart, m.err
}

func (m *mockCartRepo) GetByUser(context.Context, int64) (*cart.Cart, error) {
	if m.cart == nil {
		return nil, cart.ErrNotFound
	}
	return m.cart, m.err
}

func (m *mockCartRepo) UpsertItem(context.Context, int64, int64, int) (*cart.Item, error) {
	return nil, nil
}

func (m *mockCartRepo) GetItem(context.Context, int64) (*cart.Item, error) {
	return nil, cart.ErrItemNotFound
}

func (m *mockCartRepo) UpdateItemQuantity(context.Context, int64, int) (*cart.Item, error) {
	return nil, cart.ErrItemNotFound
}

func (m *mockCartRepo) DeleteItem(context.Context, int64) (bool, error) { return false, nil }
func (m *mockCartRepo) ClearItems(context.Context, int64) error         { return nil }

func (m *mockCartRepo) ListItems(context.Context, int64) ([]cart.Item, error) {
	return m.items, nil
}

func (m *mockCartRepo) Touch(context.Context, int64) error { return nil }

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestService(products map[int64]*product.Product, carts cart.Repository) (*Service, *mockStore) {
	repo := &mockProductRepo{byID: products}
	store := newMockStore(repo)
	return NewService(store, repo, carts, nil), store
}

// --- Tests ---

func TestCreateFromItems(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Name: "Widget", Price: price("10.00"), Stock: 5},
		2: {ID: 2, Name: "Gadget", Price: price("3.25"), Stock: 10},
	}, &mockCartRepo{})

	o, items, err := svc.CreateFromItems(ctx, 7, []ItemRequest{
		{ProductID: 1, Quantity: 3},
		{ProductID: 2, Quantity: 2},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(7), o.UserID)
	assert.Equal(t, StatusPending, o.Status)
	assert.Equal(t, PaymentPending, o.PaymentStatus)
	assert.True(t, o.TotalPrice.Equal(price("36.50")), "total = %s", o.TotalPrice)

	require.Len(t, items, 2)
	assert.True(t, items[0].UnitPrice.Equal(price("10.00")))
	assert.Equal(t, 3, items[0].Quantity)

	// Stock is reduced by the committed order.
	assert.Equal(t, 2, store.products.byID[1].Stock)
	assert.Equal(t, 8, store.products.byID[2].Stock)
}

func TestCreateFromItemsThreeOfOneProduct(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]*product.Product{
		1: {ID: 1, Name: "A", Price: price("10.00"), Stock: 5},
	}, &mockCartRepo{})

	o, items, err := svc.CreateFromItems(ctx, 1, []ItemRequest{{ProductID: 1, Quantity: 3}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.True(t, o.TotalPrice.Equal(price("30.00")), "total = %s", o.TotalPrice)
	assert.True(t, items[0].UnitPrice.Equal(price("10.00")))
}

func TestCreateFromItemsEmpty(t *testing.T) {
	svc, _ := newTestService(nil, &mockCartRepo{})

	_, _, err := svc.CreateFromItems(context.Background(), 1, nil)
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestCreateFromItemsInvalidQuantity(t *testing.T) {
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
	}, &mockCartRepo{})

	for _, qty := range []int{0, -1} {
		_, _, err := svc.CreateFromItems(context.Background(), 1, []ItemRequest{
			{ProductID: 1, Quantity: qty},
		})
		var invalidErr *InvalidQuantityError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, int64(1), invalidErr.ProductID)
	}
	assert.Empty(t, store.orders)
}

func TestCreateFromItemsProductNotFound(t *testing.T) {
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
	}, &mockCartRepo{})

	_, _, err := svc.CreateFromItems(context.Background(), 1, []ItemRequest{
		{ProductID: 1, Quantity: 1},
		{ProductID: 99, Quantity: 1},
	})

	var notFound *ProductNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, int64(99), notFound.ProductID)

	// Nothing committed, stock untouched.
	assert.Empty(t, store.orders)
	assert.Equal(t, 5, store.products.byID[1].Stock)
}

func TestCreateFromItemsInsufficientStock(t *testing.T) {
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 2},
	}, &mockCartRepo{})

	_, _, err := svc.CreateFromItems(context.Background(), 1, []ItemRequest{
		{ProductID: 1, Quantity: 3},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, int64(1), stockErr.ProductID)
	assert.Equal(t, 3, stockErr.Requested)
	assert.Equal(t, 2, stockErr.Available)
	assert.Empty(t, store.orders)
}

func TestCheckoutAllOrNothing(t *testing.T) {
	// Second line fails on stock: the first line's decrement and the order
	// row must both be rolled back.
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("5.00"), Stock: 10},
		2: {ID: 2, Price: price("7.00"), Stock: 10},
	}, &mockCartRepo{})

	// Same product twice drains the staged stock inside the transaction,
	// which the read-only validation pass cannot see.
	_, _, err := svc.CreateFromItems(context.Background(), 1, []ItemRequest{
		{ProductID: 1, Quantity: 6},
		{ProductID: 1, Quantity: 6},
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Empty(t, store.orders)
	assert.Equal(t, 10, store.products.byID[1].Stock)
}

func TestCreateFromCart(t *testing.T) {
	ctx := context.Background()
	carts := &mockCartRepo{
		cart: &cart.Cart{ID: 42, UserID: 7},
		items: []cart.Item{
			{ID: 1, CartID: 42, ProductID: 1, Quantity: 2},
			{ID: 2, CartID: 42, ProductID: 2, Quantity: 1},
		},
	}
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
		2: {ID: 2, Price: price("4.30"), Stock: 5},
	}, carts)

	o, items, err := svc.CreateFromCart(ctx, 7)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.True(t, o.TotalPrice.Equal(price("24.30")), "total = %s", o.TotalPrice)

	// Cart cleared inside the same transaction.
	assert.Equal(t, []int64{42}, store.cleared)
}

func TestCreateFromCartFailureLeavesCart(t *testing.T) {
	carts := &mockCartRepo{
		cart:  &cart.Cart{ID: 42, UserID: 7},
		items: []cart.Item{{ID: 1, CartID: 42, ProductID: 1, Quantity: 99}},
	}
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
	}, carts)

	_, _, err := svc.CreateFromCart(context.Background(), 7)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Empty(t, store.cleared)
}

func TestCreateFromCartEmpty(t *testing.T) {
	carts := &mockCartRepo{cart: &cart.Cart{ID: 42, UserID: 7}}
	svc, _ := newTestService(nil, carts)

	_, _, err := svc.CreateFromCart(context.Background(), 7)
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

func TestSetPaymentStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
	}, &mockCartRepo{})

	o, _, err := svc.CreateFromItems(ctx, 1, []ItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	updated, err := svc.SetPaymentStatus(ctx, o.ID, PaymentPaid, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, StatusConfirmed, updated.Status)
	assert.Equal(t, "cs_123", updated.PaymentRef)

	// Replay of the same transition is a no-op rewrite.
	again, err := svc.SetPaymentStatus(ctx, o.ID, PaymentPaid, "cs_123")
	require.NoError(t, err)
	assert.Equal(t, *updated, *again)

	// The reference is write-once.
	again, err = svc.SetPaymentStatus(ctx, o.ID, PaymentPaid, "cs_other")
	require.NoError(t, err)
	assert.Equal(t, "cs_123", again.PaymentRef)

	assert.Equal(t, StatusConfirmed, store.orders[o.ID].Status)
}

func TestSetPaymentStatusFailed(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
	}, &mockCartRepo{})

	o, _, err := svc.CreateFromItems(ctx, 1, []ItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	updated, err := svc.SetPaymentStatus(ctx, o.ID, PaymentFailed, "pi_9")
	require.NoError(t, err)
	assert.Equal(t, PaymentFailed, updated.PaymentStatus)
	assert.Equal(t, StatusCancelled, updated.Status)
}

func TestSetPaymentStatusPendingKeepsFulfillment(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
	}, &mockCartRepo{})

	o, _, err := svc.CreateFromItems(ctx, 1, []ItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)

	updated, err := svc.SetPaymentStatus(ctx, o.ID, PaymentPending, "cs_abc")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
	assert.Equal(t, "cs_abc", updated.PaymentRef)
}

func TestSetPaymentStatusNotFound(t *testing.T) {
	svc, _ := newTestService(nil, &mockCartRepo{})

	_, err := svc.SetPaymentStatus(context.Background(), 404, PaymentPaid, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByPaymentRef(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(map[int64]*product.Product{
		1: {ID: 1, Price: price("10.00"), Stock: 5},
	}, &mockCartRepo{})

	o, _, err := svc.CreateFromItems(ctx, 1, []ItemRequest{{ProductID: 1, Quantity: 1}})
	require.NoError(t, err)
	_, err = svc.SetPaymentStatus(ctx, o.ID, PaymentPending, "cs_ref")
	require.NoError(t, err)

	found, err := svc.FindByPaymentRef(ctx, "cs_ref")
	require.NoError(t, err)
	assert.Equal(t, o.ID, found.ID)

	_, err = svc.FindByPaymentRef(ctx, "cs_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

var _ Store = (*mockStore)(nil)
var _ Tx = (*mockTx)(nil)
var _ product.Repository = (*mockProductRepo)(nil)
var _ cart.Repository = (*mockCartRepo)(nil)
