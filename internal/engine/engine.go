// Package engine runs the crawl: it pulls requests from the scheduler,
// fetches pages with a bounded worker pool, feeds discovered directories and
// products back into the scheduler, and persists extracted records.
package engine

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vivbliss/catalogcrawl/internal/content"
	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/fetcher"
	"github.com/vivbliss/catalogcrawl/internal/frontier"
	"github.com/vivbliss/catalogcrawl/internal/logger"
	"github.com/vivbliss/catalogcrawl/internal/metrics"
	"github.com/vivbliss/catalogcrawl/internal/scheduler"
)

// ProductStore persists extracted product records.
type ProductStore interface {
	Upsert(ctx context.Context, product *domain.ProductRecord) error
}

// CategoryStore persists discovered category records.
type CategoryStore interface {
	Upsert(ctx context.Context, category *domain.CategoryRecord) error
}

// VisitedStore remembers product URLs that were already scraped so repeated
// runs skip them.
type VisitedStore interface {
	WasVisited(ctx context.Context, url string) (bool, error)
	MarkVisited(ctx context.Context, url string) error
}

// Params collects the engine's dependencies.
type Params struct {
	Config    Config
	Scheduler *scheduler.Scheduler
	Fetcher   fetcher.Interface

	// Products and Categories are optional; without them extracted records
	// are discarded after reporting.
	Products   ProductStore
	Categories CategoryStore

	// Visited is optional; without it every product URL is fetched.
	Visited VisitedStore

	// Metrics is optional; a throwaway registry is used when nil.
	Metrics *metrics.Metrics

	Logger logger.Interface
}

// Engine drives the crawl loop.
type Engine struct {
	cfg        Config
	sched      *scheduler.Scheduler
	fetcher    fetcher.Interface
	discoverer *content.Discoverer
	extractor  *content.ProductExtractor
	products   ProductStore
	categories CategoryStore
	visited    VisitedStore
	metrics    *metrics.Metrics
	logger     logger.Interface

	sem           chan struct{} // bounds concurrent fetches
	wg            sync.WaitGroup
	inflight      atomic.Int64
	completedDirs sync.Map

	pagesFetched   atomic.Int64
	productsStored atomic.Int64
	fetchFailures  atomic.Int64
}

// New builds an engine from its dependencies.
func New(p Params) (*Engine, error) {
	cfg := p.Config.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if p.Scheduler == nil {
		return nil, ErrMissingScheduler
	}
	if p.Fetcher == nil {
		return nil, ErrMissingFetcher
	}

	log := p.Logger
	if log == nil {
		log = logger.NewNoOp()
	}

	m := p.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}

	seed, err := url.Parse(cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("parse start URL: %w", err)
	}

	return &Engine{
		cfg:        cfg,
		sched:      p.Scheduler,
		fetcher:    p.Fetcher,
		discoverer: content.NewDiscoverer(seed.Host),
		extractor:  content.NewProductExtractor(),
		products:   p.Products,
		categories: p.Categories,
		visited:    p.Visited,
		metrics:    m,
		logger:     log.WithComponent("engine"),
		sem:        make(chan struct{}, cfg.Workers),
	}, nil
}

// Run crawls from the start URL until no requests remain or ctx is
// cancelled. It returns ctx.Err() on cancellation, nil on a drained crawl.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.seed(); err != nil {
		return err
	}

	e.logger.Info("crawl started",
		"start_url", e.cfg.StartURL,
		"workers", e.cfg.Workers,
	)
	start := time.Now()

	if e.cfg.ProgressInterval > 0 {
		stopProgress := e.startProgressLoop(ctx)
		defer stopProgress()
	}

	err := e.dispatchLoop(ctx)
	e.wg.Wait()

	e.logSummary(time.Since(start))
	return err
}

// seed enqueues the first request. The start URL's own directory is not
// registered here; directories enter tracking when products are attributed
// to them.
func (e *Engine) seed() error {
	req, err := e.buildRequest(e.cfg.StartURL, domain.KindCategoryDiscovery, 0, "")
	if err != nil {
		return fmt.Errorf("seed request: %w", err)
	}

	if _, err := e.sched.AddCategoryRequest(req); err != nil {
		return fmt.Errorf("enqueue seed request: %w", err)
	}
	return nil
}

// dispatchLoop pulls requests until the scheduler drains. An empty queue with
// workers still in flight means more requests may yet be enqueued, so the
// loop waits instead of exiting.
func (e *Engine) dispatchLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		req, ok := e.sched.NextRequest()
		if !ok {
			if e.inflight.Load() == 0 {
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.cfg.IdleWait):
			}
			continue
		}

		select {
		case e.sem <- struct{}{}:
		case <-ctx.Done():
			return ctx.Err()
		}

		e.inflight.Add(1)
		e.wg.Add(1)
		e.metrics.RequestsDispatched.WithLabelValues(string(req.Kind)).Inc()
		e.metrics.ActiveWorkers.Inc()

		go func(req domain.Request) {
			defer func() {
				e.metrics.ActiveWorkers.Dec()
				<-e.sem
				// Decrement after the handler has enqueued any follow-up
				// requests, so the drain check in dispatchLoop cannot fire
				// while follow-ups are still pending.
				e.inflight.Add(-1)
				e.wg.Done()
			}()
			e.handle(ctx, req)
		}(req)
	}
}

func (e *Engine) handle(ctx context.Context, req domain.Request) {
	switch req.Kind {
	case domain.KindProductFetch:
		e.handleProduct(ctx, req)
	case domain.KindCategoryDiscovery, domain.KindOther:
		e.handleListing(ctx, req)
	default:
		e.logger.Warn("dropping request of unknown kind",
			"kind", string(req.Kind),
			"url", req.URL,
		)
	}
}

// fetchWithRetry tries a fetch up to MaxAttempts times with doubling backoff.
func (e *Engine) fetchWithRetry(ctx context.Context, req domain.Request) (*fetcher.Result, error) {
	var lastErr error
	backoff := e.cfg.RetryBackoff

	for attempt := 1; attempt <= e.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		res, err := e.fetcher.Fetch(ctx, req)
		e.metrics.FetchDuration.Observe(time.Since(start).Seconds())

		if err == nil {
			e.pagesFetched.Add(1)
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			break
		}
		e.logger.Debug("fetch attempt failed",
			"url", req.URL,
			"attempt", attempt,
			"error", err.Error(),
		)

		if attempt < e.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	e.fetchFailures.Add(1)
	return nil, fmt.Errorf("fetch %s after %d attempts: %w", req.URL, e.cfg.MaxAttempts, lastErr)
}

func (e *Engine) buildRequest(rawURL string, kind domain.RequestKind, depth int, parentURL string) (domain.Request, error) {
	fp, err := frontier.Fingerprint("GET", rawURL)
	if err != nil {
		return domain.Request{}, fmt.Errorf("fingerprint %s: %w", rawURL, err)
	}

	return domain.Request{
		ID:          uuid.NewString(),
		Fingerprint: fp,
		Kind:        kind,
		URL:         rawURL,
		Method:      "GET",
		Depth:       depth,
		ParentURL:   parentURL,
		CreatedAt:   time.Now(),
	}, nil
}

func (e *Engine) startProgressLoop(ctx context.Context) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(e.cfg.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				e.logProgress()
			}
		}
	}()
	return func() { close(done) }
}

func (e *Engine) logProgress() {
	stats := e.sched.Stats()
	e.metrics.PendingRequests.Set(float64(stats.Queue.TotalPending))

	e.logger.Info("crawl progress",
		"directories_discovered", stats.Tracker.DirectoriesDiscovered,
		"directories_completed", stats.Tracker.DirectoriesCompleted,
		"products_discovered", stats.Tracker.ProductsDiscovered,
		"products_completed", stats.Tracker.ProductsCompleted,
		"products_failed", stats.Tracker.ProductsFailed,
		"pending_requests", stats.Queue.TotalPending,
		"pages_fetched", e.pagesFetched.Load(),
	)
}

func (e *Engine) logSummary(elapsed time.Duration) {
	stats := e.sched.Stats()
	e.logger.Info("crawl finished",
		"elapsed", elapsed.String(),
		"pages_fetched", e.pagesFetched.Load(),
		"fetch_failures", e.fetchFailures.Load(),
		"products_stored", e.productsStored.Load(),
		"directories_completed", stats.Tracker.DirectoriesCompleted,
		"products_completed", stats.Tracker.ProductsCompleted,
		"products_failed", stats.Tracker.ProductsFailed,
	)
}
