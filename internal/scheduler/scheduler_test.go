package scheduler

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/logger"
)

func newScheduler(t *testing.T) *Scheduler {
	t.Helper()

	return New(logger.NewNoOp())
}

func addProduct(t *testing.T, s *Scheduler, url, dir string) {
	t.Helper()

	accepted, err := s.AddProductRequest(newRequest(url, domain.KindProductFetch), dir)
	require.NoError(t, err)
	require.True(t, accepted)
}

func TestSchedulerEndToEnd(t *testing.T) {
	// Two level-1 directories; all of the first directory's products must
	// resolve before the second directory's products are dispatched.
	s := newScheduler(t)

	require.NoError(t, s.RegisterDirectory("/clothing", 1, nil))
	require.NoError(t, s.RegisterDirectory("/shoes", 1, nil))

	addProduct(t, s, "https://example.com/clothing/p/1", "/clothing")
	addProduct(t, s, "https://example.com/clothing/p/2", "/clothing")
	addProduct(t, s, "https://example.com/shoes/p/3", "/shoes")

	first, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/clothing/p/1", first.URL)

	second, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/clothing/p/2", second.URL)

	s.ReportSuccess(first.URL)
	s.ReportSuccess(second.URL)

	assert.True(t, s.IsDirectoryCompleted("/clothing"))

	third, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/shoes/p/3", third.URL)
}

func TestSchedulerLevelOrdering(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.RegisterDirectory("/clothing/shirts", 2, nil))
	require.NoError(t, s.RegisterDirectory("/clothing", 1, nil))

	addProduct(t, s, "https://example.com/clothing/shirts/p/1", "/clothing/shirts")
	addProduct(t, s, "https://example.com/clothing/p/2", "/clothing")

	// The level-1 directory is pinned first even though the level-2
	// directory registered and enqueued first.
	got, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/clothing/p/2", got.URL)
}

func TestSchedulerDisabledMode(t *testing.T) {
	s := newScheduler(t)
	s.SetEnabled(false)

	require.NoError(t, s.RegisterDirectory("/clothing", 1, nil))
	addProduct(t, s, "https://example.com/clothing/p/1", "/clothing")

	accepted, err := s.AddCategoryRequest(newRequest("https://example.com/shoes", domain.KindCategoryDiscovery))
	require.NoError(t, err)
	require.True(t, accepted)

	// Without pinning the structural order applies: category requests come
	// before any directory's products, regardless of tracker state.
	got, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, domain.KindCategoryDiscovery, got.Kind)

	got, ok = s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/clothing/p/1", got.URL)
}

func TestSchedulerAutoRegistersDirectory(t *testing.T) {
	s := newScheduler(t)

	// Product discovered before its directory: the directory is registered
	// on the fly with a level derived from the path depth.
	addProduct(t, s, "https://example.com/clothing/shirts/p/1", "/clothing/shirts")

	report := s.ProgressReport()
	require.Len(t, report, 1)
	assert.Equal(t, "/clothing/shirts", report[0].Path)
	assert.Equal(t, 2, report[0].Level)
	assert.Equal(t, 1, report[0].ProductsTotal)
}

func TestSchedulerDuplicateRequestSkipsDiscovery(t *testing.T) {
	s := newScheduler(t)
	req := newRequest("https://example.com/clothing/p/1", domain.KindProductFetch)

	accepted, err := s.AddProductRequest(req, "/clothing")
	require.NoError(t, err)
	require.True(t, accepted)

	accepted, err = s.AddProductRequest(req, "/clothing")
	require.NoError(t, err)
	assert.False(t, accepted)

	assert.Equal(t, 1, s.Stats().Tracker.ProductsDiscovered)
}

func TestSchedulerFaultySelectionDegradesToStructuralPull(t *testing.T) {
	s := newScheduler(t)

	accepted, err := s.AddCategoryRequest(newRequest("https://example.com/shoes", domain.KindCategoryDiscovery))
	require.NoError(t, err)
	require.True(t, accepted)

	addProduct(t, s, "https://example.com/clothing/p/1", "/clothing")

	// An activation entry with no backing directory makes the priority
	// selection dereference a nil map entry.
	s.tracker.activationOrder = append(s.tracker.activationOrder, "/ghost")

	// The panic is recovered and the pull falls back to the structural
	// order: categories before directory products, instead of the pinned
	// /clothing product a healthy selection would return.
	got, ok := s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, domain.KindCategoryDiscovery, got.Kind)

	// The scheduler stays usable on subsequent calls.
	got, ok = s.NextRequest()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/clothing/p/1", got.URL)

	s.ReportSuccess(got.URL)
	assert.True(t, s.IsDirectoryCompleted("/clothing"))

	_, ok = s.NextRequest()
	assert.False(t, ok)
}

func TestSchedulerAcceptedRequestIsTracked(t *testing.T) {
	// Every product request the queue accepts must be known to the tracker,
	// otherwise its outcome report would be dropped as stray.
	s := newScheduler(t)

	addProduct(t, s, "https://example.com/bags/p/1", "/bags")

	stats := s.Stats()
	assert.Equal(t, 1, stats.Tracker.ProductsDiscovered)
	assert.Equal(t, map[string]int{"/bags": 1}, stats.Queue.ProductPending)

	req, ok := s.NextRequest()
	require.True(t, ok)
	s.ReportSuccess(req.URL)

	assert.Equal(t, 1, s.Stats().Tracker.ProductsCompleted)
	assert.True(t, s.IsDirectoryCompleted("/bags"))
}

func TestSchedulerStrayReportIsDropped(t *testing.T) {
	s := newScheduler(t)

	// Reports for products the tracker never saw must not panic or abort.
	s.ReportSuccess("https://example.com/unknown")
	s.ReportFailure("https://example.com/unknown")

	assert.Zero(t, s.Stats().Tracker.ProductsCompleted)
	assert.Zero(t, s.Stats().Tracker.ProductsFailed)
}

func TestSchedulerStats(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.RegisterDirectory("/clothing", 1, nil))
	addProduct(t, s, "https://example.com/clothing/p/1", "/clothing")

	_, ok := s.NextRequest()
	require.True(t, ok)
	s.ReportFailure("https://example.com/clothing/p/1")

	stats := s.Stats()
	assert.True(t, stats.Enabled)
	assert.Equal(t, 1, stats.Tracker.ProductsFailed)
	assert.Equal(t, 1, stats.Tracker.DirectoriesCompleted)
	assert.Zero(t, stats.Queue.TotalPending)
}

func TestSchedulerProgressReportOrdering(t *testing.T) {
	s := newScheduler(t)

	require.NoError(t, s.RegisterDirectory("/clothing/shirts", 2, nil))
	require.NoError(t, s.RegisterDirectory("/shoes", 1, nil))
	require.NoError(t, s.RegisterDirectory("/bags", 1, nil))

	addProduct(t, s, "https://example.com/shoes/p/1", "/shoes")
	s.ReportSuccess("https://example.com/shoes/p/1")

	report := s.ProgressReport()
	require.Len(t, report, 3)

	// Level ascending; within a level the more complete directory first.
	assert.Equal(t, "/shoes", report[0].Path)
	assert.Equal(t, "/bags", report[1].Path)
	assert.Equal(t, "/clothing/shirts", report[2].Path)
}

func TestSchedulerConcurrentCallers(t *testing.T) {
	// Discovery, pulls and outcome reports race from many goroutines, as
	// they do from the engine's completion callbacks. Every discovered
	// product is reported, so every directory must close.
	s := newScheduler(t)

	const (
		dirs           = 4
		productsPerDir = 25
	)

	var wg sync.WaitGroup
	for d := range dirs {
		dir := fmt.Sprintf("/dir-%d", d)
		require.NoError(t, s.RegisterDirectory(dir, 1, nil))

		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range productsPerDir {
				url := fmt.Sprintf("https://example.com%s/p/%d", dir, p)
				_, err := s.AddProductRequest(newRequest(url, domain.KindProductFetch), dir)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	for range dirs * 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				req, ok := s.NextRequest()
				if !ok {
					return
				}
				if req.URL[len(req.URL)-1]%2 == 0 {
					s.ReportSuccess(req.URL)
				} else {
					s.ReportFailure(req.URL)
				}
			}
		}()
	}
	wg.Wait()

	for d := range dirs {
		assert.True(t, s.IsDirectoryCompleted(fmt.Sprintf("/dir-%d", d)))
	}

	stats := s.Stats()
	assert.Equal(t, dirs*productsPerDir, stats.Tracker.ProductsCompleted+stats.Tracker.ProductsFailed)
	assert.Zero(t, stats.Queue.TotalPending)
}
