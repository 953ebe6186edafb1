// Package config loads the application configuration from a YAML file,
// environment variables and an optional .env file. Precedence, highest
// first: environment, config file, defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vivbliss/catalogcrawl/internal/api"
	"github.com/vivbliss/catalogcrawl/internal/engine"
	"github.com/vivbliss/catalogcrawl/internal/fetcher"
	"github.com/vivbliss/catalogcrawl/internal/logger"
	"github.com/vivbliss/catalogcrawl/internal/storage"
)

const envPrefix = "CATALOGCRAWL"

// ErrMissingStartURL is returned when no crawl seed is configured.
var ErrMissingStartURL = errors.New("crawler.start_url is required")

// Config is the root application configuration.
type Config struct {
	App      AppConfig              `mapstructure:"app"`
	Logger   logger.Config          `mapstructure:"logger"`
	Crawler  engine.Config          `mapstructure:"crawler"`
	Fetcher  fetcher.Config         `mapstructure:"fetcher"`
	Postgres storage.PostgresConfig `mapstructure:"postgres"`
	Redis    storage.RedisConfig    `mapstructure:"redis"`
	API      api.Config             `mapstructure:"api"`
	Schedule ScheduleConfig         `mapstructure:"schedule"`
}

// AppConfig identifies the running instance.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// ScheduleConfig controls recurring crawls.
type ScheduleConfig struct {
	// Enabled turns scheduled crawling on.
	Enabled bool `mapstructure:"enabled"`

	// Spec is the cron expression for the crawl task.
	Spec string `mapstructure:"spec"`
}

// Persistence reports whether a database is configured.
func (c *Config) Persistence() bool {
	return c.Postgres.Host != ""
}

// Load reads configuration. path selects an explicit config file; when empty
// a config.yaml in the working directory is used if present.
func Load(path string) (*Config, error) {
	// A missing .env is fine; it only exists in development setups.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")

		var notFound viper.ConfigFileNotFoundError
		if err := v.ReadInConfig(); err != nil && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The fetcher stays on the crawl host unless told otherwise.
	if cfg.Fetcher.AllowedDomain == "" && cfg.Crawler.StartURL != "" {
		cfg.Fetcher.AllowedDomain = hostOf(cfg.Crawler.StartURL)
	}

	return &cfg, nil
}

// Validate checks the parts every command needs. Commands with extra
// requirements (a start URL, a database) check those themselves.
func (c *Config) Validate() error {
	if c.Crawler.StartURL == "" {
		return ErrMissingStartURL
	}
	return c.Crawler.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "catalogcrawl")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.development", false)

	// Keys without a natural default still get one registered; viper only
	// resolves environment overrides during Unmarshal for keys it knows.
	v.SetDefault("crawler.start_url", "")
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.max_attempts", 3)
	v.SetDefault("crawler.max_depth", 5)
	v.SetDefault("crawler.retry_backoff", "500ms")
	v.SetDefault("crawler.progress_interval", "30s")

	v.SetDefault("fetcher.allowed_domain", "")
	v.SetDefault("fetcher.user_agent", "")
	v.SetDefault("fetcher.request_timeout", "30s")
	v.SetDefault("fetcher.rate_limit", "2s")
	v.SetDefault("fetcher.parallelism", 2)

	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.port", "5432")
	v.SetDefault("postgres.user", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.dbname", "")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", "24h")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.address", ":8080")

	v.SetDefault("schedule.enabled", false)
	v.SetDefault("schedule.spec", "@daily")
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
