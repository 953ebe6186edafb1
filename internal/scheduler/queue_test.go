package scheduler

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivbliss/catalogcrawl/internal/domain"
)

func newRequest(url string, kind domain.RequestKind) domain.Request {
	return domain.Request{
		Fingerprint: "fp:" + url,
		Kind:        kind,
		URL:         url,
		Method:      "GET",
	}
}

func TestQueueDedup(t *testing.T) {
	queue := NewPriorityRequestQueue()
	req := newRequest("https://example.com/clothing", domain.KindCategoryDiscovery)

	accepted, err := queue.AddCategoryRequest(req)
	require.NoError(t, err)
	assert.True(t, accepted)

	// Same fingerprint is rejected on every segment.
	accepted, err = queue.AddCategoryRequest(req)
	require.NoError(t, err)
	assert.False(t, accepted)

	accepted, err = queue.AddProductRequest(req, "/clothing")
	require.NoError(t, err)
	assert.False(t, accepted)

	accepted, err = queue.AddOtherRequest(req)
	require.NoError(t, err)
	assert.False(t, accepted)

	assert.Equal(t, 1, queue.Len())
}

func TestQueueRejectsEmptyFingerprint(t *testing.T) {
	queue := NewPriorityRequestQueue()

	accepted, err := queue.AddCategoryRequest(domain.Request{URL: "https://example.com"})
	require.ErrorIs(t, err, ErrEmptyFingerprint)
	assert.False(t, accepted)
	assert.Zero(t, queue.Len())
}

func TestQueueFIFOWithinDirectory(t *testing.T) {
	queue := NewPriorityRequestQueue()

	first := newRequest("https://example.com/p/1", domain.KindProductFetch)
	second := newRequest("https://example.com/p/2", domain.KindProductFetch)

	accepted, err := queue.AddProductRequest(first, "/clothing")
	require.NoError(t, err)
	require.True(t, accepted)
	accepted, err = queue.AddProductRequest(second, "/clothing")
	require.NoError(t, err)
	require.True(t, accepted)

	got, ok := queue.NextRequest("/clothing")
	require.True(t, ok)
	assert.Equal(t, first.URL, got.URL)

	got, ok = queue.NextRequest("/clothing")
	require.True(t, ok)
	assert.Equal(t, second.URL, got.URL)
}

func TestQueueRetrievalOrder(t *testing.T) {
	// Populates every segment, then verifies the strict resolution order:
	// pinned directory, categories, other directories in creation order,
	// then other requests.
	queue := NewPriorityRequestQueue()

	mustAddProduct := func(url, dir string) {
		accepted, err := queue.AddProductRequest(newRequest(url, domain.KindProductFetch), dir)
		require.NoError(t, err)
		require.True(t, accepted)
	}

	accepted, err := queue.AddOtherRequest(newRequest("https://example.com/about", domain.KindOther))
	require.NoError(t, err)
	require.True(t, accepted)

	mustAddProduct("https://example.com/bags/p/1", "/bags")
	mustAddProduct("https://example.com/shoes/p/1", "/shoes")

	accepted, err = queue.AddCategoryRequest(newRequest("https://example.com/clothing", domain.KindCategoryDiscovery))
	require.NoError(t, err)
	require.True(t, accepted)

	// Pinned directory first.
	got, ok := queue.NextRequest("/shoes")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/shoes/p/1", got.URL)

	// Pinned directory drained: category discovery before other directories.
	got, ok = queue.NextRequest("/shoes")
	require.True(t, ok)
	assert.Equal(t, domain.KindCategoryDiscovery, got.Kind)

	// Then the remaining directory, then the other segment.
	got, ok = queue.NextRequest("/shoes")
	require.True(t, ok)
	assert.Equal(t, "https://example.com/bags/p/1", got.URL)

	got, ok = queue.NextRequest("/shoes")
	require.True(t, ok)
	assert.Equal(t, domain.KindOther, got.Kind)

	_, ok = queue.NextRequest("/shoes")
	assert.False(t, ok)
}

func TestQueueDirectoryScanUsesCreationOrder(t *testing.T) {
	queue := NewPriorityRequestQueue()

	for i, dir := range []string{"/third", "/first", "/second"} {
		url := fmt.Sprintf("https://example.com%s/p/%d", dir, i)
		accepted, err := queue.AddProductRequest(newRequest(url, domain.KindProductFetch), dir)
		require.NoError(t, err)
		require.True(t, accepted)
	}

	// No pinning: sequences are scanned in the order they were created,
	// not alphabetically.
	got, ok := queue.NextRequest("")
	require.True(t, ok)
	assert.Contains(t, got.URL, "/third")

	got, ok = queue.NextRequest("")
	require.True(t, ok)
	assert.Contains(t, got.URL, "/first")

	got, ok = queue.NextRequest("")
	require.True(t, ok)
	assert.Contains(t, got.URL, "/second")

	_, ok = queue.NextRequest("")
	assert.False(t, ok)
}

func TestQueueStats(t *testing.T) {
	queue := NewPriorityRequestQueue()

	accepted, err := queue.AddCategoryRequest(newRequest("https://example.com/clothing", domain.KindCategoryDiscovery))
	require.NoError(t, err)
	require.True(t, accepted)
	accepted, err = queue.AddProductRequest(newRequest("https://example.com/p/1", domain.KindProductFetch), "/clothing")
	require.NoError(t, err)
	require.True(t, accepted)

	stats := queue.Stats()
	assert.Equal(t, 1, stats.CategoryPending)
	assert.Equal(t, map[string]int{"/clothing": 1}, stats.ProductPending)
	assert.Zero(t, stats.OtherPending)
	assert.Equal(t, 2, stats.TotalPending)
	assert.Equal(t, 2, stats.FingerprintsSeen)

	// Drained directories drop out of the per-directory stats.
	_, ok := queue.NextRequest("/clothing")
	require.True(t, ok)
	assert.Empty(t, queue.Stats().ProductPending)
}
