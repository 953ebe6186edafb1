package domain

import "time"

// RequestKind distinguishes what a pending fetch request is for.
type RequestKind string

const (
	// KindCategoryDiscovery fetches a category page to find sub-directories,
	// product links and pagination.
	KindCategoryDiscovery RequestKind = "category_discovery"

	// KindProductFetch fetches a product detail page belonging to a directory.
	KindProductFetch RequestKind = "product_fetch"

	// KindOther covers requests that are neither category nor product pages,
	// e.g. the site root or sitemap pages.
	KindOther RequestKind = "other"
)

// Request is a pending unit of fetch work. The scheduler stores and orders
// requests but never interprets the target beyond Kind and DirectoryPath;
// executing the fetch is the crawl engine's job.
type Request struct {
	// ID identifies this request instance for logging.
	ID string `json:"id"`

	// Fingerprint is the stable dedup key derived from method and normalized
	// URL. Two requests with the same fingerprint target the same resource.
	Fingerprint string `json:"fingerprint"`

	Kind RequestKind `json:"kind"`

	// URL is the target to fetch.
	URL string `json:"url"`

	// Method is the HTTP method, GET unless set otherwise.
	Method string `json:"method"`

	// DirectoryPath is the owning directory for product fetch requests,
	// empty for other kinds.
	DirectoryPath string `json:"directory_path,omitempty"`

	// Depth is the link depth at which the target was discovered.
	Depth int `json:"depth"`

	// ParentURL is the page on which the target was discovered.
	ParentURL string `json:"parent_url,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
