package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase. Stock is
// decremented exclusively by order creation and never goes negative.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Category    string
	MediaURL    string
	Rating      *float64
	NumReviews  *int
	CreatedAt   time.Time
}

// Patch describes a partial product update. Nil fields are left unchanged;
// non-nil fields replace the stored value.
type Patch struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Stock       *int
	Category    *string
	MediaURL    *string
	Rating      *float64
	NumReviews  *int
}

// Empty reports whether the patch carries no changes.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.Stock == nil && p.Category == nil && p.MediaURL == nil &&
		p.Rating == nil && p.NumReviews == nil
}

// Repository defines persistence operations for the product catalog.
type Repository interface {
	Create(ctx context.Context, p *Product) error
	GetByID(ctx context.Context, id int64) (*Product, error)
	List(ctx context.Context, offset, limit int) ([]Product, error)
	Update(ctx context.Context, id int64, patch Patch) (*Product, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
