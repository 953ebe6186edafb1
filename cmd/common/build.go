// Package common wires shared infrastructure for the CLI commands: logger,
// database, redis cache, metrics and the crawl engine itself.
package common

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vivbliss/catalogcrawl/internal/config"
	"github.com/vivbliss/catalogcrawl/internal/engine"
	"github.com/vivbliss/catalogcrawl/internal/fetcher"
	"github.com/vivbliss/catalogcrawl/internal/logger"
	"github.com/vivbliss/catalogcrawl/internal/metrics"
	"github.com/vivbliss/catalogcrawl/internal/scheduler"
	"github.com/vivbliss/catalogcrawl/internal/storage"
)

// NewLogger builds the application logger from config, forcing debug level
// when the --debug flag is set.
func NewLogger(cfg *config.Config, debug bool) (logger.Interface, error) {
	logCfg := cfg.Logger
	if debug {
		logCfg.Level = "debug"
		logCfg.Development = true
	}

	log, err := logger.New(&logCfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return log, nil
}

// Infra holds the long-lived dependencies a crawl needs. It is built once per
// process; engines are built per crawl run on top of it.
type Infra struct {
	Products   engine.ProductStore
	Categories engine.CategoryStore
	Visited    engine.VisitedStore
	Metrics    *metrics.Metrics

	closers []func() error
}

// NewInfra connects to the stores the config enables. Both postgres and redis
// are optional; a crawl without them extracts but does not persist.
func NewInfra(ctx context.Context, cfg *config.Config, log logger.Interface) (*Infra, error) {
	infra := &Infra{
		Metrics: metrics.New(prometheus.DefaultRegisterer),
	}

	if cfg.Persistence() {
		db, err := storage.NewPostgresConnection(ctx, cfg.Postgres, log)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		infra.closers = append(infra.closers, db.Close)
		infra.Products = storage.NewProductRepository(db)
		infra.Categories = storage.NewDirectoryRepository(db)
	} else {
		log.Warn("no database configured, extracted records will not be persisted")
	}

	if cfg.Redis.Enabled {
		cache := storage.NewVisitedCache(cfg.Redis)
		if err := cache.Ping(ctx); err != nil {
			_ = cache.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		infra.closers = append(infra.closers, cache.Close)
		infra.Visited = cache
	}

	return infra, nil
}

// Close releases the infra connections.
func (i *Infra) Close() {
	for _, close := range i.closers {
		_ = close()
	}
}

// NewCrawl builds a fresh scheduler and engine on top of the shared infra.
// Each crawl run gets its own pair so fingerprints and directory state do not
// leak between runs.
func NewCrawl(cfg *config.Config, infra *Infra, log logger.Interface) (*engine.Engine, *scheduler.Scheduler, error) {
	sched := scheduler.New(log)

	f, err := fetcher.New(cfg.Fetcher, log)
	if err != nil {
		return nil, nil, fmt.Errorf("build fetcher: %w", err)
	}

	eng, err := engine.New(engine.Params{
		Config:     cfg.Crawler,
		Scheduler:  sched,
		Fetcher:    f,
		Products:   infra.Products,
		Categories: infra.Categories,
		Visited:    infra.Visited,
		Metrics:    infra.Metrics,
		Logger:     log,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("build engine: %w", err)
	}

	return eng, sched, nil
}
