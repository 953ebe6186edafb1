// Package storage persists extracted catalog data. It is a collaborator of
// the crawl engine; the scheduling core never performs I/O.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/vivbliss/catalogcrawl/internal/logger"
)

const (
	// defaultMaxOpenConns is the default maximum number of open connections.
	defaultMaxOpenConns = 25
	// defaultMaxIdleConns is the default maximum number of idle connections.
	defaultMaxIdleConns = 5
	// defaultConnMaxLifetime is the default maximum connection lifetime.
	defaultConnMaxLifetime = 5 * time.Minute
	// defaultPingTimeout is the timeout for the connection probe.
	defaultPingTimeout = 5 * time.Second
	// connectMaxRetries is how many times to retry the initial connection.
	connectMaxRetries = 3
	// connectBackoffBase is the first retry delay; doubled on each attempt.
	connectBackoffBase = 1 * time.Second
)

// PostgresConfig holds database connection configuration.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// NewPostgresConnection connects to PostgreSQL with exponential backoff on
// the initial attempts. Transient startup races against the database
// container are the common case, not a reason to abort the session.
func NewPostgresConnection(ctx context.Context, cfg PostgresConfig, log logger.Interface) (*sqlx.DB, error) {
	if log == nil {
		log = logger.NewNoOp()
	}

	var lastErr error
	backoff := connectBackoffBase

	for attempt := 1; attempt <= connectMaxRetries; attempt++ {
		db, err := connect(ctx, cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err

		log.Warn("database connection attempt failed",
			"attempt", attempt,
			"max_attempts", connectMaxRetries,
			"error", err,
		)

		if attempt < connectMaxRetries {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}
	}

	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectMaxRetries, lastErr)
}

func connect(ctx context.Context, cfg PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return db, nil
}
