package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vivbliss/catalogcrawl/internal/domain"
)

// ErrProductNotFound is returned when a product lookup matches nothing.
// Callers should check with errors.Is().
var ErrProductNotFound = errors.New("product not found")

// productSelectColumns lists columns for SELECT queries on products.
const productSelectColumns = `id, url, name, sku, brand, category_path, price,
	original_price, currency, stock_status, description, image_urls, scraped_at`

// ProductRepository handles database operations for extracted products.
type ProductRepository struct {
	db *sqlx.DB
}

// NewProductRepository creates a new product repository.
func NewProductRepository(db *sqlx.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// Upsert inserts the product or refreshes an earlier scrape of the same URL.
func (r *ProductRepository) Upsert(ctx context.Context, product *domain.ProductRecord) error {
	query := `
		INSERT INTO products (id, url, name, sku, brand, category_path, price,
			original_price, currency, stock_status, description, image_urls, scraped_at)
		VALUES (:id, :url, :name, :sku, :brand, :category_path, :price,
			:original_price, :currency, :stock_status, :description, :image_urls, :scraped_at)
		ON CONFLICT (url) DO UPDATE SET
			name = EXCLUDED.name,
			sku = EXCLUDED.sku,
			brand = EXCLUDED.brand,
			category_path = EXCLUDED.category_path,
			price = EXCLUDED.price,
			original_price = EXCLUDED.original_price,
			currency = EXCLUDED.currency,
			stock_status = EXCLUDED.stock_status,
			description = EXCLUDED.description,
			image_urls = EXCLUDED.image_urls,
			scraped_at = EXCLUDED.scraped_at
	`

	if _, err := r.db.NamedExecContext(ctx, query, product); err != nil {
		return fmt.Errorf("upsert product %s: %w", product.URL, err)
	}

	return nil
}

// GetByURL returns the product scraped from the given URL.
func (r *ProductRepository) GetByURL(ctx context.Context, url string) (*domain.ProductRecord, error) {
	query := `SELECT ` + productSelectColumns + ` FROM products WHERE url = $1`

	var product domain.ProductRecord
	if err := r.db.GetContext(ctx, &product, query, url); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, url)
		}
		return nil, fmt.Errorf("get product %s: %w", url, err)
	}

	return &product, nil
}

// ListByCategory returns products in a category path, most recent first.
func (r *ProductRepository) ListByCategory(ctx context.Context, categoryPath string, limit int) ([]domain.ProductRecord, error) {
	query := `
		SELECT ` + productSelectColumns + `
		FROM products
		WHERE category_path = $1
		ORDER BY scraped_at DESC
		LIMIT $2
	`

	var products []domain.ProductRecord
	if err := r.db.SelectContext(ctx, &products, query, categoryPath, limit); err != nil {
		return nil, fmt.Errorf("list products in %s: %w", categoryPath, err)
	}

	return products, nil
}

// CountByCategory returns per-category product counts.
func (r *ProductRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	query := `SELECT category_path, COUNT(*) AS count FROM products GROUP BY category_path`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("count products by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			path  string
			count int
		)
		if scanErr := rows.Scan(&path, &count); scanErr != nil {
			return nil, fmt.Errorf("scan product count: %w", scanErr)
		}
		counts[path] = count
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate product counts: %w", rowsErr)
	}

	return counts, nil
}
