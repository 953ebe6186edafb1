package scheduler

import (
	"fmt"
	"time"

	"github.com/vivbliss/catalogcrawl/internal/domain"
)

// DirectoryTracker is the single source of truth for directory and product
// progress. It answers which directory should be prioritized next and whether
// a directory has completed.
//
// The tracker is not safe for concurrent use on its own; the Scheduler guards
// tracker and queue together under one mutex so that a directory-completion
// check triggered by a product report is atomic with respect to a concurrent
// priority query.
type DirectoryTracker struct {
	directories map[string]*domain.Directory
	products    map[string]*domain.Product

	// registrationOrder preserves first-registered-wins tie-breaking among
	// directories of equal level.
	registrationOrder []string

	// activationOrder preserves first-activated-first-served ordering among
	// active directories.
	activationOrder []string

	stats TrackerStats
}

// TrackerStats holds cumulative progress counters.
type TrackerStats struct {
	DirectoriesDiscovered int `json:"directories_discovered"`
	DirectoriesCompleted  int `json:"directories_completed"`
	DirectoriesActive     int `json:"directories_active"`
	ProductsDiscovered    int `json:"products_discovered"`
	ProductsCompleted     int `json:"products_completed"`
	ProductsFailed        int `json:"products_failed"`
}

// NewDirectoryTracker creates an empty tracker.
func NewDirectoryTracker() *DirectoryTracker {
	return &DirectoryTracker{
		directories: make(map[string]*domain.Directory),
		products:    make(map[string]*domain.Product),
	}
}

// RegisterDirectory creates the directory as Pending with zero counters the
// first time the path is seen. Re-registration is a no-op: level and parent
// are immutable after first registration, mismatches are ignored.
func (t *DirectoryTracker) RegisterDirectory(path string, level int, parentPath *string) error {
	if level <= 0 {
		return fmt.Errorf("register directory %q: %w", path, ErrInvalidLevel)
	}

	if _, exists := t.directories[path]; exists {
		return nil
	}

	t.directories[path] = &domain.Directory{
		Path:         path,
		Level:        level,
		ParentPath:   parentPath,
		Status:       domain.DirectoryPending,
		DiscoveredAt: time.Now(),
	}
	t.registrationOrder = append(t.registrationOrder, path)
	t.stats.DirectoriesDiscovered++

	return nil
}

// RecordProductDiscovered increments the owning directory's total and creates
// the product in Discovered state. Duplicate discovery of a URL is a no-op.
func (t *DirectoryTracker) RecordProductDiscovered(url, directoryPath string) error {
	dir, exists := t.directories[directoryPath]
	if !exists {
		return fmt.Errorf("record product %q: %w: %s", url, ErrUnknownDirectory, directoryPath)
	}

	if _, seen := t.products[url]; seen {
		return nil
	}

	t.products[url] = &domain.Product{
		URL:           url,
		DirectoryPath: directoryPath,
		Status:        domain.ProductDiscovered,
		DiscoveredAt:  time.Now(),
	}
	dir.ProductsTotal++
	t.stats.ProductsDiscovered++

	return nil
}

// MarkProductCompleted transitions the product to its terminal Completed
// state, increments the directory counter and re-evaluates directory
// completion. A second report for the same product is a no-op.
func (t *DirectoryTracker) MarkProductCompleted(url string) error {
	return t.resolveProduct(url, domain.ProductCompleted)
}

// MarkProductFailed transitions the product to its terminal Failed state.
// Failures count toward directory completion identically to successes, so one
// unreachable product cannot stall a directory forever.
func (t *DirectoryTracker) MarkProductFailed(url string) error {
	return t.resolveProduct(url, domain.ProductFailed)
}

func (t *DirectoryTracker) resolveProduct(url string, status domain.ProductStatus) error {
	product, exists := t.products[url]
	if !exists {
		return fmt.Errorf("resolve product: %w: %s", ErrUnknownProduct, url)
	}

	if product.Status.IsTerminal() {
		return nil
	}

	now := time.Now()
	product.Status = status
	product.ResolvedAt = &now

	dir := t.directories[product.DirectoryPath]
	if status == domain.ProductCompleted {
		dir.ProductsCompleted++
		t.stats.ProductsCompleted++
	} else {
		dir.ProductsFailed++
		t.stats.ProductsFailed++
	}

	t.checkDirectoryCompletion(dir)

	return nil
}

// checkDirectoryCompletion flips the directory to Completed when every
// discovered product has a terminal outcome. Completed never reverts.
func (t *DirectoryTracker) checkDirectoryCompletion(dir *domain.Directory) {
	if dir.Status == domain.DirectoryCompleted {
		return
	}

	if dir.ProductsTotal == 0 || dir.ProductsCompleted+dir.ProductsFailed < dir.ProductsTotal {
		return
	}

	wasActive := dir.Status == domain.DirectoryActive
	now := time.Now()
	dir.Status = domain.DirectoryCompleted
	dir.CompletedAt = &now
	t.stats.DirectoriesCompleted++
	if wasActive {
		t.stats.DirectoriesActive--
	}
}

// IsKnownDirectory reports whether the path has been registered.
func (t *DirectoryTracker) IsKnownDirectory(path string) bool {
	_, exists := t.directories[path]

	return exists
}

// IsDirectoryCompleted reports whether the directory has completed. Unknown
// paths report false.
func (t *DirectoryTracker) IsDirectoryCompleted(path string) bool {
	dir, exists := t.directories[path]

	return exists && dir.Status == domain.DirectoryCompleted
}

// NextPriorityDirectory returns the directory the crawl should focus on,
// evaluated fresh on each call:
//
//  1. The first incomplete directory in activation order, if any. This pins
//     the crawl to one directory until it closes.
//  2. Otherwise the Pending directory with the smallest level, ties broken by
//     registration order. It is transitioned to Active before returning.
//  3. No incomplete directory remains: ok is false, the traversal is done.
func (t *DirectoryTracker) NextPriorityDirectory() (path string, ok bool) {
	for _, active := range t.activationOrder {
		if t.directories[active].Status == domain.DirectoryActive {
			return active, true
		}
	}

	var best *domain.Directory
	for _, candidate := range t.registrationOrder {
		dir := t.directories[candidate]
		if dir.Status != domain.DirectoryPending {
			continue
		}
		if best == nil || dir.Level < best.Level {
			best = dir
		}
	}

	if best == nil {
		return "", false
	}

	best.Status = domain.DirectoryActive
	t.activationOrder = append(t.activationOrder, best.Path)
	t.stats.DirectoriesActive++

	return best.Path, true
}

// DirectoryProgress returns the progress snapshot for one directory.
func (t *DirectoryTracker) DirectoryProgress(path string) (domain.DirectoryProgress, error) {
	dir, exists := t.directories[path]
	if !exists {
		return domain.DirectoryProgress{}, fmt.Errorf("directory progress: %w: %s", ErrUnknownDirectory, path)
	}

	return progressOf(dir), nil
}

// ProgressReport returns progress snapshots for every known directory,
// keyed by path.
func (t *DirectoryTracker) ProgressReport() map[string]domain.DirectoryProgress {
	report := make(map[string]domain.DirectoryProgress, len(t.directories))
	for path, dir := range t.directories {
		report[path] = progressOf(dir)
	}

	return report
}

// Stats returns the cumulative tracker counters.
func (t *DirectoryTracker) Stats() TrackerStats {
	return t.stats
}

func progressOf(dir *domain.Directory) domain.DirectoryProgress {
	return domain.DirectoryProgress{
		Path:              dir.Path,
		Level:             dir.Level,
		Status:            dir.Status,
		ProductsTotal:     dir.ProductsTotal,
		ProductsCompleted: dir.ProductsCompleted,
		ProductsFailed:    dir.ProductsFailed,
		ProductsRemaining: dir.Remaining(),
		CompletionRate:    dir.CompletionRate(),
	}
}
