// Package fetcher executes fetch requests handed out by the scheduler and
// returns parsed documents. It owns the network transport; the scheduler
// never touches it.
package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	colly "github.com/gocolly/colly/v2"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/logger"
)

// Collector defaults.
const (
	defaultUserAgent      = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultRequestTimeout = 30 * time.Second
	defaultRateLimit      = 1 * time.Second
	defaultParallelism    = 2

	// randomDelayDivisor derives the random delay from the rate limit.
	randomDelayDivisor = 2
)

// Error types for the fetcher package.
var (
	// ErrEmptyResponse is returned when the server replied without a body.
	ErrEmptyResponse = errors.New("empty response body")

	// ErrHTTPStatus is returned for non-success HTTP status codes.
	ErrHTTPStatus = errors.New("unexpected HTTP status")
)

// Config holds fetcher configuration.
type Config struct {
	// AllowedDomain restricts fetches to one host. Empty allows any.
	AllowedDomain string `mapstructure:"allowed_domain"`
	// UserAgent is sent with every request.
	UserAgent string `mapstructure:"user_agent"`
	// RequestTimeout bounds a single fetch.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RateLimit is the minimum delay between requests to the same host.
	RateLimit time.Duration `mapstructure:"rate_limit"`
	// Parallelism is the per-host concurrent request limit.
	Parallelism int `mapstructure:"parallelism"`
}

// withDefaults fills zero fields with defaults.
func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.RateLimit <= 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.Parallelism <= 0 {
		c.Parallelism = defaultParallelism
	}

	return c
}

// Result is a fetched and parsed page.
type Result struct {
	// URL is the final URL after redirects.
	URL string
	// StatusCode is the HTTP status of the response.
	StatusCode int
	// Document is the parsed HTML.
	Document *goquery.Document
}

// Interface is what the crawl engine needs from a fetcher.
type Interface interface {
	Fetch(ctx context.Context, req domain.Request) (*Result, error)
}

// Fetcher fetches pages through a rate-limited colly collector.
type Fetcher struct {
	base *colly.Collector
	cfg  Config
	log  logger.Interface
}

// New creates a fetcher.
func New(cfg Config, log logger.Interface) (*Fetcher, error) {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNoOp()
	}

	opts := []colly.CollectorOption{
		colly.UserAgent(cfg.UserAgent),
		colly.ParseHTTPErrorResponse(),
		colly.AllowURLRevisit(),
	}
	if cfg.AllowedDomain != "" {
		opts = append(opts, colly.AllowedDomains(cfg.AllowedDomain))
	}

	base := colly.NewCollector(opts...)
	base.SetRequestTimeout(cfg.RequestTimeout)

	if err := base.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       cfg.RateLimit,
		RandomDelay: cfg.RateLimit / randomDelayDivisor,
		Parallelism: cfg.Parallelism,
	}); err != nil {
		return nil, fmt.Errorf("set rate limit: %w", err)
	}

	return &Fetcher{
		base: base,
		cfg:  cfg,
		log:  log.WithComponent("fetcher"),
	}, nil
}

// Fetch executes one request synchronously and parses the response body.
// Redirects are followed; non-success statuses and transport errors are
// returned as errors so the engine can apply its retry policy.
func (f *Fetcher) Fetch(ctx context.Context, req domain.Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clone shares the limit rules and transport but not the callbacks, so
	// each call captures only its own response.
	c := f.base.Clone()
	c.Context = ctx

	var (
		mu       sync.Mutex
		result   *Result
		fetchErr error
	)

	c.OnResponse(func(resp *colly.Response) {
		mu.Lock()
		defer mu.Unlock()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			fetchErr = fmt.Errorf("%w: %d for %s", ErrHTTPStatus, resp.StatusCode, req.URL)
			return
		}
		if len(resp.Body) == 0 {
			fetchErr = fmt.Errorf("%w: %s", ErrEmptyResponse, req.URL)
			return
		}

		doc, parseErr := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if parseErr != nil {
			fetchErr = fmt.Errorf("parse response for %s: %w", req.URL, parseErr)
			return
		}

		result = &Result{
			URL:        resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Document:   doc,
		}
	})

	c.OnError(func(resp *colly.Response, err error) {
		mu.Lock()
		defer mu.Unlock()

		if fetchErr == nil {
			fetchErr = fmt.Errorf("fetch %s: %w", req.URL, err)
		}
	})

	started := time.Now()
	if err := c.Visit(req.URL); err != nil {
		return nil, fmt.Errorf("visit %s: %w", req.URL, err)
	}
	c.Wait()

	mu.Lock()
	defer mu.Unlock()

	if fetchErr != nil {
		return nil, fetchErr
	}
	if result == nil {
		return nil, fmt.Errorf("%w: %s", ErrEmptyResponse, req.URL)
	}

	f.log.Debug("fetched page",
		"url", req.URL,
		"status", result.StatusCode,
		"duration", time.Since(started),
	)

	return result, nil
}
