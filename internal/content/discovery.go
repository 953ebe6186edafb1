// Package content extracts catalog structure and product fields from fetched
// HTML pages. Selectors are tried in fallback order because catalog sites
// vary in markup; the first selector that matches wins.
package content

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/frontier"
)

// categorySelectors locate links to catalog directories, most specific first.
var categorySelectors = []string{
	`nav ul li a[href*="category"]`,
	`nav .menu li a[href*="category"]`,
	`.navigation li a[href*="category"]`,
	`a[href*="/category/"]`,
	`a[href*="/categories/"]`,
	`a[href*="/cat/"]`,
	`.category-link`,
	`.category-item a`,
	`.product-category a`,
	`.category-menu a`,
	`a[href*="collection"]`,
}

// productSelectors locate links to product detail pages.
var productSelectors = []string{
	`.product-item a[href*="product"]`,
	`.product-card a`,
	`.product a`,
	`a[href*="/product/"]`,
	`a[href*="/products/"]`,
	`a[href*="/item/"]`,
	`.product-list .product a`,
	`.products-grid .product a`,
	`.shop-items .item a`,
}

// paginationSelectors locate the next page link on a category listing.
var paginationSelectors = []string{
	`div.pagination a.next`,
	`a.next`,
	`a[rel="next"]`,
	`.pagination a[aria-label="Next"]`,
}

// Discoverer finds category links, product links and pagination on a page.
type Discoverer struct {
	allowedHost string
}

// NewDiscoverer creates a discoverer restricted to one host. Links pointing
// off-host are dropped.
func NewDiscoverer(allowedHost string) *Discoverer {
	return &Discoverer{allowedHost: strings.ToLower(allowedHost)}
}

// DiscoverCategories returns the directory links found on the page. Levels
// are derived from the URL path depth; the parent path is the prefix one
// segment up.
func (d *Discoverer) DiscoverCategories(doc *goquery.Document, pageURL string) []domain.CategoryLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []domain.CategoryLink
	seen := make(map[string]struct{})

	for _, selector := range categorySelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}

			absolute, ok := d.resolve(base, href)
			if !ok {
				return
			}

			path, level, pathErr := frontier.CategoryPath(absolute)
			if pathErr != nil || path == "/" {
				return
			}

			// Dedup on the derived path so pagination variants of the same
			// listing do not produce duplicate directories.
			if _, dup := seen[path]; dup {
				return
			}
			seen[path] = struct{}{}

			links = append(links, domain.CategoryLink{
				Name:       strings.TrimSpace(sel.Text()),
				URL:        absolute,
				Path:       path,
				ParentPath: parentOf(path),
				Level:      level,
			})
		})
	}

	return links
}

// DiscoverProducts returns the product detail links found on the page,
// attributed to the given directory.
func (d *Discoverer) DiscoverProducts(doc *goquery.Document, pageURL, directoryPath string) []domain.ProductLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []domain.ProductLink
	seen := make(map[string]struct{})

	for _, selector := range productSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			href, ok := sel.Attr("href")
			if !ok {
				return
			}

			absolute, ok := d.resolve(base, href)
			if !ok {
				return
			}
			if _, dup := seen[absolute]; dup {
				return
			}
			seen[absolute] = struct{}{}

			links = append(links, domain.ProductLink{
				URL:           absolute,
				DirectoryPath: directoryPath,
			})
		})
	}

	return links
}

// NextPageURL returns the absolute URL of the next listing page, or empty
// when the page has no pagination.
func (d *Discoverer) NextPageURL(doc *goquery.Document, pageURL string) string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return ""
	}

	for _, selector := range paginationSelectors {
		href, ok := doc.Find(selector).First().Attr("href")
		if !ok {
			continue
		}
		if absolute, resolved := d.resolve(base, href); resolved {
			return absolute
		}
	}

	return ""
}

// resolve turns href into an absolute URL and enforces the allowed host.
func (d *Discoverer) resolve(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	absolute := base.ResolveReference(ref)
	if absolute.Scheme != "http" && absolute.Scheme != "https" {
		return "", false
	}
	if d.allowedHost != "" && strings.ToLower(absolute.Hostname()) != d.allowedHost {
		return "", false
	}

	return absolute.String(), true
}

// parentOf returns the path one segment up, or empty for top-level paths.
func parentOf(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return ""
	}

	return path[:idx]
}
