// Package api serves crawl status over HTTP: health, scheduler statistics,
// per-directory progress and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vivbliss/catalogcrawl/internal/domain"
	"github.com/vivbliss/catalogcrawl/internal/logger"
	"github.com/vivbliss/catalogcrawl/internal/scheduler"
)

const (
	defaultAddress         = ":8080"
	defaultShutdownTimeout = 5 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// StatusSource exposes the scheduler state the API reads. *scheduler.Scheduler
// satisfies it.
type StatusSource interface {
	Stats() scheduler.Stats
	ProgressReport() []domain.DirectoryProgress
}

// Config controls the status server.
type Config struct {
	// Enabled turns the server on. Off by default.
	Enabled bool `mapstructure:"enabled"`

	// Address is the listen address, host:port.
	Address string `mapstructure:"address"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

func (c Config) withDefaults() Config {
	if c.Address == "" {
		c.Address = defaultAddress
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return c
}

// Server is the crawl status HTTP server.
type Server struct {
	cfg    Config
	source StatusSource
	logger logger.Interface
	srv    *http.Server
}

// New builds the server and its routes. source must not be nil.
func New(cfg Config, source StatusSource, log logger.Interface) *Server {
	cfg = cfg.withDefaults()
	if log == nil {
		log = logger.NewNoOp()
	}

	s := &Server{
		cfg:    cfg,
		source: source,
		logger: log.WithComponent("api"),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealth)
	router.GET("/stats", s.handleStats)
	router.GET("/progress", s.handleProgress)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.srv = &http.Server{
		Addr:              cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully. It blocks.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", "address", s.cfg.Address)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("status server shutting down")
	return s.srv.Shutdown(shutdownCtx)
}

// Handler returns the underlying HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.source.Stats())
}

func (s *Server) handleProgress(c *gin.Context) {
	report := s.source.ProgressReport()
	c.JSON(http.StatusOK, gin.H{
		"directories": report,
		"count":       len(report),
	})
}
