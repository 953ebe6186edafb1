package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/engine"
	"github.com/vivbliss/catalogcrawl/internal/fetcher"
	"github.com/vivbliss/catalogcrawl/internal/logger"
	"github.com/vivbliss/catalogcrawl/internal/scheduler"
)

// fakeFetcher serves an in-memory site keyed by URL. Entries in failures are
// decremented on each fetch and cause an error until they reach zero.
type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	failures map[string]int
	fetches  map[string]int
}

func (f *fakeFetcher) Fetch(_ context.Context, req domain.Request) (*fetcher.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.fetches[req.URL]++

	if remaining := f.failures[req.URL]; remaining > 0 {
		f.failures[req.URL] = remaining - 1
		return nil, errors.New("connection reset")
	}

	html, ok := f.pages[req.URL]
	if !ok {
		return nil, fetcher.ErrHTTPStatus
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	return &fetcher.Result{URL: req.URL, StatusCode: 200, Document: doc}, nil
}

type memProductStore struct {
	mu      sync.Mutex
	records map[string]domain.ProductRecord
}

func (s *memProductStore) Upsert(_ context.Context, product *domain.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[product.URL] = *product
	return nil
}

type memCategoryStore struct {
	mu      sync.Mutex
	records map[string]domain.CategoryRecord
}

func (s *memCategoryStore) Upsert(_ context.Context, category *domain.CategoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[category.Path] = *category
	return nil
}

type memVisited struct {
	mu   sync.Mutex
	urls map[string]bool
}

func (v *memVisited) WasVisited(_ context.Context, url string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.urls[url], nil
}

func (v *memVisited) MarkVisited(_ context.Context, url string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.urls[url] = true
	return nil
}

func productHTML(name, price string) string {
	return `<html><body>
		<h1 class="product-title">` + name + `</h1>
		<div class="product-price">` + price + `</div>
	</body></html>`
}

// testSite is a two-directory catalog: clothing has a paginated listing with
// three products, shoes has one real product and one dead link.
func testSite() map[string]string {
	return map[string]string{
		"https://vivbliss.test/": `<html><body><nav><ul>
			<li><a href="/category/clothing">Clothing</a></li>
			<li><a href="/category/shoes">Shoes</a></li>
		</ul></nav></body></html>`,

		"https://vivbliss.test/category/clothing": `<html><body>
			<a href="/product/shirt">Shirt</a>
			<a href="/product/pants">Pants</a>
			<div class="pagination"><a class="next" href="/category/clothing?page=2">Next</a></div>
		</body></html>`,

		"https://vivbliss.test/category/clothing?page=2": `<html><body>
			<a href="/product/hat">Hat</a>
		</body></html>`,

		"https://vivbliss.test/category/shoes": `<html><body>
			<a href="/product/boots">Boots</a>
			<a href="/product/ghost">Ghost</a>
		</body></html>`,

		"https://vivbliss.test/product/shirt": productHTML("Shirt", "$19.99"),
		"https://vivbliss.test/product/pants": productHTML("Pants", "$29.99"),
		"https://vivbliss.test/product/hat":   productHTML("Hat", "$9.99"),
		"https://vivbliss.test/product/boots": productHTML("Boots", "$59.99"),
	}
}

func newTestEngine(t *testing.T, fake *fakeFetcher, visited engine.VisitedStore) (*engine.Engine, *scheduler.Scheduler, *memProductStore, *memCategoryStore) {
	t.Helper()

	sched := scheduler.New(logger.NewNoOp())
	products := &memProductStore{records: make(map[string]domain.ProductRecord)}
	categories := &memCategoryStore{records: make(map[string]domain.CategoryRecord)}

	eng, err := engine.New(engine.Params{
		Config: engine.Config{
			StartURL:     "https://vivbliss.test/",
			Workers:      3,
			MaxAttempts:  2,
			RetryBackoff: time.Millisecond,
			IdleWait:     time.Millisecond,
		},
		Scheduler:  sched,
		Fetcher:    fake,
		Products:   products,
		Categories: categories,
		Visited:    visited,
		Logger:     logger.NewNoOp(),
	})
	require.NoError(t, err)

	return eng, sched, products, categories
}

func TestEngineCrawlsCatalogToCompletion(t *testing.T) {
	fake := &fakeFetcher{
		pages: testSite(),
		// Boots fails once and succeeds on retry; ghost has no page and
		// exhausts all attempts.
		failures: map[string]int{"https://vivbliss.test/product/boots": 1},
		fetches:  make(map[string]int),
	}

	eng, sched, products, categories := newTestEngine(t, fake, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, eng.Run(ctx))

	assert.Len(t, products.records, 4)
	assert.Contains(t, products.records, "https://vivbliss.test/product/shirt")
	assert.Contains(t, products.records, "https://vivbliss.test/product/boots")

	shirt := products.records["https://vivbliss.test/product/shirt"]
	assert.Equal(t, "Shirt", shirt.Name)
	assert.Equal(t, "/category/clothing", shirt.CategoryPath)
	require.NotNil(t, shirt.Price)
	assert.Equal(t, "$19.99", *shirt.Price)

	assert.Contains(t, categories.records, "/category/clothing")
	assert.Contains(t, categories.records, "/category/shoes")

	// The dead link counts as a failed product, which still closes its
	// directory.
	assert.True(t, sched.IsDirectoryCompleted("/category/clothing"))
	assert.True(t, sched.IsDirectoryCompleted("/category/shoes"))

	stats := sched.Stats()
	assert.Equal(t, 4, stats.Tracker.ProductsCompleted)
	assert.Equal(t, 1, stats.Tracker.ProductsFailed)
	assert.Zero(t, stats.Queue.TotalPending)

	// Pagination and retry behaviour.
	assert.Equal(t, 1, fake.fetches["https://vivbliss.test/category/clothing?page=2"])
	assert.Equal(t, 2, fake.fetches["https://vivbliss.test/product/boots"])
	assert.Equal(t, 2, fake.fetches["https://vivbliss.test/product/ghost"])
}

func TestEngineSkipsVisitedProducts(t *testing.T) {
	fake := &fakeFetcher{
		pages:    testSite(),
		failures: make(map[string]int),
		fetches:  make(map[string]int),
	}
	visited := &memVisited{urls: map[string]bool{
		"https://vivbliss.test/product/shirt": true,
	}}

	eng, sched, products, _ := newTestEngine(t, fake, visited)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, eng.Run(ctx))

	// The pre-visited product is reported complete without a fetch or a
	// store write.
	assert.Zero(t, fake.fetches["https://vivbliss.test/product/shirt"])
	assert.NotContains(t, products.records, "https://vivbliss.test/product/shirt")
	assert.True(t, sched.IsDirectoryCompleted("/category/clothing"))

	// Freshly scraped products are marked for the next run.
	assert.True(t, visited.urls["https://vivbliss.test/product/pants"])
}

func TestEngineRunStopsOnCancel(t *testing.T) {
	fake := &fakeFetcher{
		pages:    testSite(),
		failures: make(map[string]int),
		fetches:  make(map[string]int),
	}

	eng, _, _, _ := newTestEngine(t, fake, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := eng.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestEngineNewValidation(t *testing.T) {
	sched := scheduler.New(logger.NewNoOp())
	fake := &fakeFetcher{pages: map[string]string{}, failures: map[string]int{}, fetches: map[string]int{}}

	tests := []struct {
		name    string
		params  engine.Params
		wantErr error
	}{
		{
			name:    "missing start URL",
			params:  engine.Params{Scheduler: sched, Fetcher: fake},
			wantErr: engine.ErrMissingStartURL,
		},
		{
			name:    "missing scheduler",
			params:  engine.Params{Config: engine.Config{StartURL: "https://vivbliss.test/"}, Fetcher: fake},
			wantErr: engine.ErrMissingScheduler,
		},
		{
			name:    "missing fetcher",
			params:  engine.Params{Config: engine.Config{StartURL: "https://vivbliss.test/"}, Scheduler: sched},
			wantErr: engine.ErrMissingFetcher,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.New(tt.params)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}
