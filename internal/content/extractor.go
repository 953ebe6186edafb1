package content

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/vivbliss/catalogcrawl/internal/domain"
)

// Selector fallback chains for product fields.
var (
	nameSelectors = []string{
		`h1.product-title`,
		`.product-name`,
		`h1`,
		`.title`,
	}
	brandSelectors = []string{
		`.brand`,
		`.product-brand`,
		`.manufacturer`,
	}
	skuSelectors = []string{
		`.sku`,
		`.product-sku`,
		`.product-id`,
	}
	priceSelectors = []string{
		`.price .current-price`,
		`.product-price`,
		`.price`,
	}
	originalPriceSelectors = []string{
		`.price .original-price`,
		`.old-price`,
		`.was-price`,
	}
	stockSelectors = []string{
		`.stock-status`,
		`.availability`,
		`.in-stock`,
		`.out-of-stock`,
	}
	descriptionSelectors = []string{
		`.product-description`,
		`.description`,
		`.product-content`,
		`.product-details`,
	}
	imageSelectors = []string{
		`.product-images img`,
		`.product-gallery img`,
		`.product-photo img`,
		`.product img`,
	}
)

// pricePatterns match a currency amount inside arbitrary text, symbol-first,
// symbol-last, then bare number.
var pricePatterns = []*regexp.Regexp{
	regexp.MustCompile(`[¥$€£]\s*\d+(?:[.,]\d+)?`),
	regexp.MustCompile(`\d+(?:[.,]\d+)?\s*[¥$€£]`),
	regexp.MustCompile(`\d+(?:[.,]\d+)?`),
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// ProductExtractor extracts structured product fields from a detail page.
type ProductExtractor struct{}

// NewProductExtractor creates a product extractor.
func NewProductExtractor() *ProductExtractor {
	return &ProductExtractor{}
}

// Extract builds a ProductRecord from the document. The record always gets
// an ID and scrape timestamp; fields whose selectors match nothing stay nil.
// ok is false when not even a product name could be found, meaning the page
// is not a product detail page.
func (e *ProductExtractor) Extract(doc *goquery.Document, pageURL, directoryPath string) (domain.ProductRecord, bool) {
	name := firstText(doc, nameSelectors)
	if name == "" {
		return domain.ProductRecord{}, false
	}

	record := domain.ProductRecord{
		ID:           uuid.NewString(),
		URL:          pageURL,
		Name:         name,
		CategoryPath: directoryPath,
		ScrapedAt:    time.Now().UTC(),
	}

	record.Brand = optionalText(doc, brandSelectors)
	record.SKU = optionalText(doc, skuSelectors)
	record.StockStatus = optionalText(doc, stockSelectors)

	if priceText := firstText(doc, priceSelectors); priceText != "" {
		price := ExtractPrice(priceText)
		record.Price = &price
		if currency := extractCurrency(priceText); currency != "" {
			record.Currency = &currency
		}
	}
	if originalText := firstText(doc, originalPriceSelectors); originalText != "" {
		original := ExtractPrice(originalText)
		record.OriginalPrice = &original
	}

	if description := e.extractDescription(doc); description != "" {
		record.Description = &description
	}

	record.ImageURLs = extractImages(doc)

	return record, true
}

// extractDescription tries single-element selectors first, then joins the
// paragraphs of the description container.
func (e *ProductExtractor) extractDescription(doc *goquery.Document) string {
	if text := firstText(doc, descriptionSelectors); text != "" {
		return CleanText(text)
	}

	for _, selector := range descriptionSelectors {
		var parts []string
		doc.Find(selector + " p").Each(func(_ int, sel *goquery.Selection) {
			if part := strings.TrimSpace(sel.Text()); part != "" {
				parts = append(parts, part)
			}
		})
		if len(parts) > 0 {
			return CleanText(strings.Join(parts, " "))
		}
	}

	return ""
}

// ExtractPrice pulls the first currency amount out of a text fragment.
// Falls back to the trimmed input when no pattern matches.
func ExtractPrice(text string) string {
	for _, pattern := range pricePatterns {
		if match := pattern.FindString(text); match != "" {
			return strings.TrimSpace(match)
		}
	}

	return strings.TrimSpace(text)
}

// CleanText collapses runs of whitespace into single spaces.
func CleanText(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}

func extractCurrency(text string) string {
	for _, symbol := range []string{"¥", "$", "€", "£"} {
		if strings.Contains(text, symbol) {
			return symbol
		}
	}

	return ""
}

func extractImages(doc *goquery.Document) domain.StringList {
	var images domain.StringList
	seen := make(map[string]struct{})

	for _, selector := range imageSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			src, ok := sel.Attr("src")
			if !ok || src == "" {
				src, ok = sel.Attr("data-src")
			}
			if !ok || src == "" {
				return
			}
			if _, dup := seen[src]; dup {
				return
			}
			seen[src] = struct{}{}
			images = append(images, src)
		})
		if len(images) > 0 {
			break
		}
	}

	return images
}

// firstText returns the trimmed text of the first matching selector.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, selector := range selectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(sel.Text()); text != "" {
			return text
		}
	}

	return ""
}

// optionalText is firstText returning nil when nothing matched.
func optionalText(doc *goquery.Document, selectors []string) *string {
	if text := firstText(doc, selectors); text != "" {
		return &text
	}

	return nil
}
