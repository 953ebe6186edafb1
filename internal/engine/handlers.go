package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/frontier"
)

// handleListing processes a category or root page: it registers discovered
// sub-directories, enqueues their pages, enqueues product fetches and follows
// pagination.
func (e *Engine) handleListing(ctx context.Context, req domain.Request) {
	res, err := e.fetchWithRetry(ctx, req)
	if err != nil {
		e.metrics.RequestFailures.WithLabelValues(string(req.Kind)).Inc()
		e.logger.Warn("listing fetch failed",
			"url", req.URL,
			"error", err.Error(),
		)
		return
	}
	doc := res.Document

	for _, link := range e.discoverer.DiscoverCategories(doc, req.URL) {
		var parentPtr *string
		if link.ParentPath != "" {
			parent := link.ParentPath
			parentPtr = &parent
		}

		if err := e.sched.RegisterDirectory(link.Path, link.Level, parentPtr); err != nil {
			e.logger.Warn("register directory failed",
				"directory", link.Path,
				"error", err.Error(),
			)
			continue
		}
		e.persistCategory(ctx, link)

		if req.Depth+1 > e.cfg.MaxDepth {
			e.logger.Debug("max depth reached, not descending",
				"directory", link.Path,
				"depth", req.Depth+1,
			)
			continue
		}

		sub, err := e.buildRequest(link.URL, domain.KindCategoryDiscovery, req.Depth+1, req.URL)
		if err != nil {
			e.logger.Warn("skipping discovered category",
				"url", link.URL,
				"error", err.Error(),
			)
			continue
		}
		if _, err := e.sched.AddCategoryRequest(sub); err != nil {
			e.logger.Warn("enqueue category failed",
				"url", link.URL,
				"error", err.Error(),
			)
		}
	}

	if pagePath, _, perr := frontier.CategoryPath(req.URL); perr == nil {
		for _, link := range e.discoverer.DiscoverProducts(doc, req.URL, pagePath) {
			preq, err := e.buildRequest(link.URL, domain.KindProductFetch, req.Depth+1, req.URL)
			if err != nil {
				e.logger.Warn("skipping discovered product",
					"url", link.URL,
					"error", err.Error(),
				)
				continue
			}
			preq.DirectoryPath = link.DirectoryPath

			if _, err := e.sched.AddProductRequest(preq, link.DirectoryPath); err != nil {
				e.logger.Warn("enqueue product failed",
					"url", link.URL,
					"error", err.Error(),
				)
			}
		}
	}

	if next := e.discoverer.NextPageURL(doc, req.URL); next != "" {
		// Pagination stays at the same depth: page 2 of a listing is not
		// deeper in the hierarchy than page 1.
		preq, err := e.buildRequest(next, domain.KindCategoryDiscovery, req.Depth, req.URL)
		if err == nil {
			if _, err := e.sched.AddCategoryRequest(preq); err != nil {
				e.logger.Warn("enqueue next page failed",
					"url", next,
					"error", err.Error(),
				)
			}
		}
	}
}

// handleProduct fetches a product page, extracts it, persists the record and
// reports the outcome to the scheduler.
func (e *Engine) handleProduct(ctx context.Context, req domain.Request) {
	if e.visited != nil {
		seen, err := e.visited.WasVisited(ctx, req.URL)
		if err != nil {
			e.logger.Debug("visited lookup failed",
				"url", req.URL,
				"error", err.Error(),
			)
		} else if seen {
			e.logger.Debug("skipping already scraped product", "url", req.URL)
			e.sched.ReportSuccess(req.URL)
			e.metrics.ProductsCompleted.Inc()
			e.noteDirectory(req.DirectoryPath)
			return
		}
	}

	res, err := e.fetchWithRetry(ctx, req)
	if err != nil {
		e.failProduct(req, err)
		return
	}

	record, ok := e.extractor.Extract(res.Document, req.URL, req.DirectoryPath)
	if !ok {
		e.failProduct(req, ErrNotAProductPage)
		return
	}

	if e.products != nil {
		if err := e.products.Upsert(ctx, &record); err != nil {
			e.failProduct(req, fmt.Errorf("persist product: %w", err))
			return
		}
	}
	e.productsStored.Add(1)

	if e.visited != nil {
		if err := e.visited.MarkVisited(ctx, req.URL); err != nil {
			e.logger.Debug("mark visited failed",
				"url", req.URL,
				"error", err.Error(),
			)
		}
	}

	e.sched.ReportSuccess(req.URL)
	e.metrics.ProductsCompleted.Inc()
	e.noteDirectory(req.DirectoryPath)
}

func (e *Engine) failProduct(req domain.Request, err error) {
	e.logger.Warn("product processing failed",
		"url", req.URL,
		"directory", req.DirectoryPath,
		"error", err.Error(),
	)
	e.sched.ReportFailure(req.URL)
	e.metrics.ProductsFailed.Inc()
	e.metrics.RequestFailures.WithLabelValues(string(req.Kind)).Inc()
	e.noteDirectory(req.DirectoryPath)
}

func (e *Engine) persistCategory(ctx context.Context, link domain.CategoryLink) {
	if e.categories == nil {
		return
	}

	rec := &domain.CategoryRecord{
		ID:        uuid.NewString(),
		Path:      link.Path,
		Name:      link.Name,
		URL:       link.URL,
		Level:     link.Level,
		ScrapedAt: time.Now().UTC(),
	}
	if link.ParentPath != "" {
		parent := link.ParentPath
		rec.ParentPath = &parent
	}

	if err := e.categories.Upsert(ctx, rec); err != nil {
		e.logger.Error("persist category failed",
			"directory", link.Path,
			"error", err.Error(),
		)
	}
}

// noteDirectory logs and counts a directory the moment it completes.
func (e *Engine) noteDirectory(path string) {
	if path == "" || !e.sched.IsDirectoryCompleted(path) {
		return
	}
	if _, counted := e.completedDirs.LoadOrStore(path, struct{}{}); !counted {
		e.metrics.DirectoriesDone.Inc()
		e.logger.Info("directory completed", "directory", path)
	}
}
