package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/averlane/storefront/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const insertProductSQL = `INSERT INTO products (name, description, price, stock, category, media_url, rating, num_reviews)
	VALUES ($1, NULLIF($2, ''), $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8)
	RETURNING id, created_at`

// Create persists a new product and assigns its id.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.pool.QueryRow(ctx, insertProductSQL,
		p.Name, p.Description, p.Price, p.Stock, p.Category, p.MediaURL, p.Rating, p.NumReviews,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "insert product")
	}
	return nil
}

const selectProductSQL = `SELECT id, name, COALESCE(description, ''), price, stock,
	COALESCE(category, ''), COALESCE(media_url, ''), rating, num_reviews, created_at
	FROM products`

// GetByID returns a product by id or product.ErrNotFound.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, selectProductSQL+" WHERE id = $1", id))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// List returns a page of products in insertion order.
func (r *ProductRepository) List(ctx context.Context, offset, limit int) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, selectProductSQL+" ORDER BY id OFFSET $1 LIMIT $2", offset, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()

	var products []product.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

const updateProductSQL = `UPDATE products SET
	name        = COALESCE($2, name),
	description = COALESCE($3, description),
	price       = COALESCE($4, price),
	stock       = COALESCE($5, stock),
	category    = COALESCE($6, category),
	media_url   = COALESCE($7, media_url),
	rating      = COALESCE($8, rating),
	num_reviews = COALESCE($9, num_reviews)
	WHERE id = $1
	RETURNING id, name, COALESCE(description, ''), price, stock,
		COALESCE(category, ''), COALESCE(media_url, ''), rating, num_reviews, created_at`

// Update merges the present patch fields into the product row. Nil patch
// fields leave the stored value untouched.
func (r *ProductRepository) Update(ctx context.Context, id int64, patch product.Patch) (*product.Product, error) {
	return scanProduct(r.pool.QueryRow(ctx, updateProductSQL,
		id, patch.Name, patch.Description, patch.Price, patch.Stock,
		patch.Category, patch.MediaURL, patch.Rating, patch.NumReviews))
}

// Delete removes a product row, reporting whether it existed.
func (r *ProductRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tag, err := r.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return false, errors.Wrap(err, "delete product")
	}
	return tag.RowsAffected() > 0, nil
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Stock,
		&p.Category, &p.MediaURL, &p.Rating, &p.NumReviews, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrap(err, "scan product")
	}
	return &p, nil
}
