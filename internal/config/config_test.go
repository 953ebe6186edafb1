package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vivbliss/catalogcrawl/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "app:\n  name: catalogcrawl\n"))
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, 4, cfg.Crawler.Workers)
	assert.Equal(t, 3, cfg.Crawler.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Fetcher.RequestTimeout)
	assert.Equal(t, "5432", cfg.Postgres.Port)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL)
	assert.False(t, cfg.API.Enabled)
	assert.Equal(t, "@daily", cfg.Schedule.Spec)
	assert.False(t, cfg.Persistence())
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
crawler:
  start_url: https://vivbliss.com/
  workers: 8
  max_depth: 3
fetcher:
  rate_limit: 500ms
postgres:
  host: db.internal
  user: crawler
  password: secret
  dbname: catalog
redis:
  enabled: true
  addr: localhost:6379
api:
  enabled: true
  address: ":9090"
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://vivbliss.com/", cfg.Crawler.StartURL)
	assert.Equal(t, 8, cfg.Crawler.Workers)
	assert.Equal(t, 3, cfg.Crawler.MaxDepth)
	assert.Equal(t, 500*time.Millisecond, cfg.Fetcher.RateLimit)
	assert.Equal(t, ":9090", cfg.API.Address)
	assert.True(t, cfg.Redis.Enabled)
	assert.True(t, cfg.Persistence())

	// The allowed domain follows the start URL when not set explicitly.
	assert.Equal(t, "vivbliss.com", cfg.Fetcher.AllowedDomain)

	dsn := cfg.Postgres.DSN()
	assert.Contains(t, dsn, "host=db.internal")
	assert.Contains(t, dsn, "dbname=catalog")
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("CATALOGCRAWL_CRAWLER_START_URL", "https://vivbliss.com/catalog")
	t.Setenv("CATALOGCRAWL_CRAWLER_WORKERS", "16")
	t.Setenv("CATALOGCRAWL_LOGGER_LEVEL", "debug")

	cfg, err := config.Load(writeConfig(t, "app:\n  name: catalogcrawl\n"))
	require.NoError(t, err)

	assert.Equal(t, "https://vivbliss.com/catalog", cfg.Crawler.StartURL)
	assert.Equal(t, 16, cfg.Crawler.Workers)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "app:\n  name: catalogcrawl\n"))
	require.NoError(t, err)
	require.ErrorIs(t, cfg.Validate(), config.ErrMissingStartURL)

	cfg.Crawler.StartURL = "https://vivbliss.com/"
	require.NoError(t, cfg.Validate())

	cfg.Crawler.StartURL = "ftp://vivbliss.com/"
	require.Error(t, cfg.Validate())
}
