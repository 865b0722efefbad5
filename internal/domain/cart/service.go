package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/averlane/storefront/internal/domain/product"
)

// Service implements the cart engine on top of the cart Repository and the
// product catalog. Stock is not validated here; only checkout enforces it.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// GetOrCreate returns the user's cart together with its items, creating an
// empty cart on first access.
func (s *Service) GetOrCreate(ctx context.Context, userID int64) (*Cart, []Item, error) {
	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	items, err := s.carts.ListItems(ctx, c.ID)
	if err != nil {
		return nil, nil, errors.Wrap(err, "list items")
	}
	return c, items, nil
}

// AddItem adds quantity of a product to the user's cart, creating the cart
// lazily. Adding a product already present increments the existing row.
func (s *Service) AddItem(ctx context.Context, userID, productID int64, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	c, err := s.carts.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	item, err := s.carts.UpsertItem(ctx, c.ID, productID, quantity)
	if err != nil {
		return nil, errors.Wrap(err, "upsert item")
	}
	return item, nil
}

// UpdateItem replaces a cart item's quantity. The item must belong to the
// user's cart.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID int64, quantity int) (*Item, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.authorizeItem(ctx, userID, itemID); err != nil {
		return nil, err
	}
	item, err := s.carts.UpdateItemQuantity(ctx, itemID, quantity)
	if err != nil {
		return nil, err
	}
	if err := s.carts.Touch(ctx, item.CartID); err != nil {
		return nil, errors.Wrap(err, "touch cart")
	}
	return item, nil
}

// RemoveItem deletes a cart item owned by the user.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID int64) error {
	if err := s.authorizeItem(ctx, userID, itemID); err != nil {
		return err
	}
	item, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	existed, err := s.carts.DeleteItem(ctx, itemID)
	if err != nil {
		return err
	}
	if !existed {
		return ErrItemNotFound
	}
	return s.carts.Touch(ctx, item.CartID)
}

// Clear removes every item from the user's cart. Fails with ErrNotFound when
// the user has never had a cart.
func (s *Service) Clear(ctx context.Context, userID int64) error {
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.carts.ClearItems(ctx, c.ID); err != nil {
		return errors.Wrap(err, "clear items")
	}
	return s.carts.Touch(ctx, c.ID)
}

// authorizeItem verifies that the item exists and its cart belongs to userID.
func (s *Service) authorizeItem(ctx context.Context, userID, itemID int64) error {
	item, err := s.carts.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	c, err := s.carts.GetByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrForbidden
		}
		return err
	}
	if item.CartID != c.ID {
		return ErrForbidden
	}
	return nil
}
