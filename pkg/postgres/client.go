// Package postgres wraps a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config controls the pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
	PingTimeout     time.Duration
}

// Option mutates Config.
type Option func(*Config)

func WithMaxConns(n int32) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxConns = n
		}
	}
}

func WithMaxConnLifetime(d time.Duration) Option {
	return func(c *Config) { c.MaxConnLifetime = d }
}

func WithPingTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PingTimeout = d
		}
	}
}

// Client owns a *pgxpool.Pool.
type Client struct {
	pool *pgxpool.Pool
}

// NewClient parses dsn, opens the pool and pings it once.
func NewClient(ctx context.Context, dsn string, opts ...Option) (*Client, error) {
	cfg := Config{
		DSN:             dsn,
		MaxConns:        5,
		MaxConnLifetime: 30 * time.Minute,
		PingTimeout:     5 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres parse dsn: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Client{pool: pool}, nil
}

// Pool exposes the underlying pool for repositories.
func (c *Client) Pool() *pgxpool.Pool { return c.pool }

// Health pings the database.
func (c *Client) Health(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

func (c *Client) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}
