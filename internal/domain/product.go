package domain

import "time"

// ProductStatus represents the lifecycle state of a crawl target product.
type ProductStatus string

const (
	// ProductDiscovered means the product link was found but its page has not
	// been resolved yet.
	ProductDiscovered ProductStatus = "discovered"

	// ProductCompleted means the product page was fetched and extracted.
	ProductCompleted ProductStatus = "completed"

	// ProductFailed means the product fetch exhausted its retry policy.
	ProductFailed ProductStatus = "failed"
)

// IsTerminal reports whether the status is final.
func (s ProductStatus) IsTerminal() bool {
	return s == ProductCompleted || s == ProductFailed
}

// Product represents a leaf crawl target belonging to exactly one directory.
// The URL is unique within its directory; global uniqueness is not required.
type Product struct {
	URL           string        `json:"url"`
	DirectoryPath string        `json:"directory_path"`
	Status        ProductStatus `json:"status"`
	DiscoveredAt  time.Time     `json:"discovered_at"`
	ResolvedAt    *time.Time    `json:"resolved_at,omitempty"`
}

// ProductRecord is an extracted product as persisted by the storage layer.
type ProductRecord struct {
	ID            string     `db:"id" json:"id"`
	URL           string     `db:"url" json:"url"`
	Name          string     `db:"name" json:"name"`
	SKU           *string    `db:"sku" json:"sku,omitempty"`
	Brand         *string    `db:"brand" json:"brand,omitempty"`
	CategoryPath  string     `db:"category_path" json:"category_path"`
	Price         *string    `db:"price" json:"price,omitempty"`
	OriginalPrice *string    `db:"original_price" json:"original_price,omitempty"`
	Currency      *string    `db:"currency" json:"currency,omitempty"`
	StockStatus   *string    `db:"stock_status" json:"stock_status,omitempty"`
	Description   *string    `db:"description" json:"description,omitempty"`
	ImageURLs     StringList `db:"image_urls" json:"image_urls,omitempty"`
	ScrapedAt     time.Time  `db:"scraped_at" json:"scraped_at"`
}
