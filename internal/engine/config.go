package engine

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

const (
	defaultWorkers          = 4
	defaultMaxAttempts      = 3
	defaultMaxDepth         = 5
	defaultRetryBackoff     = 500 * time.Millisecond
	defaultIdleWait         = 50 * time.Millisecond
	defaultProgressInterval = 30 * time.Second
)

var (
	// ErrMissingStartURL is returned when the engine is built without a seed.
	ErrMissingStartURL = errors.New("start URL is required")

	// ErrMissingScheduler is returned when no scheduler is provided.
	ErrMissingScheduler = errors.New("scheduler is required")

	// ErrMissingFetcher is returned when no fetcher is provided.
	ErrMissingFetcher = errors.New("fetcher is required")

	// ErrNotAProductPage marks a fetched page the extractor could not
	// recognize as a product.
	ErrNotAProductPage = errors.New("page is not a product page")
)

// Config controls the crawl engine.
type Config struct {
	// StartURL seeds the crawl. Its host becomes the allowed host for
	// discovered links.
	StartURL string `mapstructure:"start_url"`

	// Workers bounds the number of concurrent fetches.
	Workers int `mapstructure:"workers"`

	// MaxAttempts is how many times a fetch is tried before the request is
	// reported as failed.
	MaxAttempts int `mapstructure:"max_attempts"`

	// MaxDepth stops category discovery below this link depth. Product
	// fetches are not depth-limited.
	MaxDepth int `mapstructure:"max_depth"`

	// RetryBackoff is the base delay between fetch attempts, doubled per
	// attempt.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`

	// IdleWait is how long the dispatch loop sleeps when the queue is empty
	// but workers are still in flight.
	IdleWait time.Duration `mapstructure:"idle_wait"`

	// ProgressInterval is how often a progress summary is logged.
	// Zero disables the summary.
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultMaxAttempts
	}
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultMaxDepth
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.IdleWait <= 0 {
		c.IdleWait = defaultIdleWait
	}
	return c
}

// Validate checks that the config can seed a crawl.
func (c Config) Validate() error {
	if c.StartURL == "" {
		return ErrMissingStartURL
	}

	u, err := url.Parse(c.StartURL)
	if err != nil {
		return fmt.Errorf("parse start URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("start URL %q: scheme must be http or https", c.StartURL)
	}
	if u.Host == "" {
		return fmt.Errorf("start URL %q: host is required", c.StartURL)
	}

	return nil
}
