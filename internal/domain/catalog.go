package domain

import "time"

// CategoryLink is a sub-directory link discovered on a category or root page.
type CategoryLink struct {
	Name       string
	URL        string
	Path       string
	ParentPath string
	Level      int
}

// ProductLink is a product detail link discovered on a category page.
type ProductLink struct {
	URL           string
	DirectoryPath string
}

// CategoryPage is the result of extracting a fetched category page.
type CategoryPage struct {
	Path          string
	Subcategories []CategoryLink
	Products      []ProductLink
	NextPageURL   string
}

// CategoryRecord is a directory as persisted by the storage layer.
type CategoryRecord struct {
	ID           string    `db:"id" json:"id"`
	Path         string    `db:"path" json:"path"`
	Name         string    `db:"name" json:"name"`
	URL          string    `db:"url" json:"url"`
	Level        int       `db:"level" json:"level"`
	ParentPath   *string   `db:"parent_path" json:"parent_path,omitempty"`
	ProductCount int       `db:"product_count" json:"product_count"`
	ScrapedAt    time.Time `db:"scraped_at" json:"scraped_at"`
}
