package storage

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vivbliss/catalogcrawl/internal/domain"
)

// DirectoryRepository handles database operations for catalog directories.
type DirectoryRepository struct {
	db *sqlx.DB
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(db *sqlx.DB) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

// Upsert inserts the directory or refreshes its metadata and product count.
func (r *DirectoryRepository) Upsert(ctx context.Context, category *domain.CategoryRecord) error {
	query := `
		INSERT INTO categories (id, path, name, url, level, parent_path, product_count, scraped_at)
		VALUES (:id, :path, :name, :url, :level, :parent_path, :product_count, :scraped_at)
		ON CONFLICT (path) DO UPDATE SET
			name = EXCLUDED.name,
			url = EXCLUDED.url,
			product_count = EXCLUDED.product_count,
			scraped_at = EXCLUDED.scraped_at
	`

	if _, err := r.db.NamedExecContext(ctx, query, category); err != nil {
		return fmt.Errorf("upsert category %s: %w", category.Path, err)
	}

	return nil
}

// List returns all known directories ordered by level, then path.
func (r *DirectoryRepository) List(ctx context.Context) ([]domain.CategoryRecord, error) {
	query := `
		SELECT id, path, name, url, level, parent_path, product_count, scraped_at
		FROM categories
		ORDER BY level, path
	`

	var categories []domain.CategoryRecord
	if err := r.db.SelectContext(ctx, &categories, query); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}

	return categories, nil
}
