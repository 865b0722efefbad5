package cart

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averlane/storefront/internal/domain/product"
)

type mockProductRepo struct {
	byID map[int64]*product.Product
}

func (m *mockProductRepo) Create(context.Context, *product.Product) error { return nil }

func (m *mockProductRepo) GetByID(_ context.Context, id int64) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) List(context.Context, int, int) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) Update(context.Context, int64, product.Patch) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) Delete(context.Context, int64) (bool, error) { return false, nil }

// mockCartRepo keeps carts and items in memory with upsert-on-add semantics
// matching the (cart_id, product_id) uniqueness of the real table.
type mockCartRepo struct {
	nextCartID int64
	nextItemID int64
	byUser     map[int64]*Cart
	items      map[int64]*Item
	touched    map[int64]int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		byUser:  make(map[int64]*Cart),
		items:   make(map[int64]*Item),
		touched: make(map[int64]int),
	}
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, userID int64) (*Cart, error) {
	if c, ok := m.byUser[userID]; ok {
		return c, nil
	}
	m.nextCartID++
	c := &Cart{ID: m.nextCartID, UserID: userID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.byUser[userID] = c
	return c, nil
}

func (m *mockCartRepo) GetByUser(_ context.Context, userID int64) (*Cart, error) {
	c, ok := m.byUser[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCartRepo) UpsertItem(_ context.Context, cartID, productID int64, quantity int) (*Item, error) {
	for _, it := range m.items {
		if it.CartID == cartID && it.ProductID == productID {
			it.Quantity += quantity
			cp := *it
			return &cp, nil
		}
	}
	m.nextItemID++
	it := &Item{ID: m.nextItemID, CartID: cartID, ProductID: productID, Quantity: quantity, AddedAt: time.Now()}
	m.items[it.ID] = it
	cp := *it
	return &cp, nil
}

func (m *mockCartRepo) GetItem(_ context.Context, itemID int64) (*Item, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *mockCartRepo) UpdateItemQuantity(_ context.Context, itemID int64, quantity int) (*Item, error) {
	it, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	it.Quantity = quantity
	cp := *it
	return &cp, nil
}

func (m *mockCartRepo) DeleteItem(_ context.Context, itemID int64) (bool, error) {
	if _, ok := m.items[itemID]; !ok {
		return false, nil
	}
	delete(m.items, itemID)
	return true, nil
}

func (m *mockCartRepo) ClearItems(_ context.Context, cartID int64) error {
	for id, it := range m.items {
		if it.CartID == cartID {
			delete(m.items, id)
		}
	}
	return nil
}

func (m *mockCartRepo) ListItems(_ context.Context, cartID int64) ([]Item, error) {
	var out []Item
	for _, it := range m.items {
		if it.CartID == cartID {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (m *mockCartRepo) Touch(_ context.Context, cartID int64) error {
	m.touched[cartID]++
	return nil
}

var _ Repository = (*mockCartRepo)(nil)
var _ product.Repository = (*mockProductRepo)(nil)

func testService() (*Service, *mockCartRepo) {
	carts := newMockCartRepo()
	products := &mockProductRepo{byID: map[int64]*product.Product{
		1: {ID: 1, Name: "Widget", Price: decimal.RequireFromString("10.00"), Stock: 5},
	}}
	return NewService(carts, products), carts
}

func TestGetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService()

	first, items, err := svc.GetOrCreate(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, items)

	second, _, err := svc.GetOrCreate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestAddItemMergesExisting(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService()

	first, err := svc.AddItem(ctx, 7, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Quantity)

	// Adding the same product again increments the row instead of creating a
	// second one.
	second, err := svc.AddItem(ctx, 7, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5, second.Quantity)

	items, err := repo.ListItems(ctx, first.CartID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestAddItemExceedingStockAllowed(t *testing.T) {
	// Stock is enforced at checkout, not here.
	svc, _ := testService()

	item, err := svc.AddItem(context.Background(), 7, 1, 50)
	require.NoError(t, err)
	assert.Equal(t, 50, item.Quantity)
}

func TestAddItemValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService()

	_, err := svc.AddItem(ctx, 7, 1, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddItem(ctx, 7, 99, 1)
	assert.ErrorIs(t, err, product.ErrNotFound)
}

func TestUpdateItem(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService()

	item, err := svc.AddItem(ctx, 7, 1, 2)
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, 7, item.ID, 9)
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Quantity)

	_, err = svc.UpdateItem(ctx, 7, item.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.UpdateItem(ctx, 7, 404, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestItemOwnership(t *testing.T) {
	ctx := context.Background()
	svc, _ := testService()

	item, err := svc.AddItem(ctx, 7, 1, 2)
	require.NoError(t, err)

	// Another user with their own cart cannot touch it.
	_, err = svc.AddItem(ctx, 8, 1, 1)
	require.NoError(t, err)
	_, err = svc.UpdateItem(ctx, 8, item.ID, 5)
	assert.ErrorIs(t, err, ErrForbidden)
	err = svc.RemoveItem(ctx, 8, item.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// A user without any cart cannot either.
	_, err = svc.UpdateItem(ctx, 9, item.ID, 5)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRemoveItem(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService()

	item, err := svc.AddItem(ctx, 7, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.RemoveItem(ctx, 7, item.ID))
	items, err := repo.ListItems(ctx, item.CartID)
	require.NoError(t, err)
	assert.Empty(t, items)

	err = svc.RemoveItem(ctx, 7, item.ID)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	svc, repo := testService()

	item, err := svc.AddItem(ctx, 7, 1, 2)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, 7))
	items, err := repo.ListItems(ctx, item.CartID)
	require.NoError(t, err)
	assert.Empty(t, items)

	// Clearing an already-empty cart succeeds.
	require.NoError(t, svc.Clear(ctx, 7))

	// A user without a cart gets ErrNotFound.
	assert.ErrorIs(t, svc.Clear(ctx, 42), ErrNotFound)
}
