package clickhouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	_ "github.com/ClickHouse/clickhouse-go/v2"
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Client owns the database/sql pool used by the archive stores.
type Client struct {
	db   *sql.DB
	opts Options
}

// NewClient opens the pool and pings once within ctx.
func NewClient(ctx context.Context, opts ...Option) (*Client, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Host == "" {
		return nil, errors.New("clickhouse: host is required")
	}
	if !identifier.MatchString(o.Database) {
		return nil, fmt.Errorf("clickhouse: invalid database name %q", o.Database)
	}

	db, err := sql.Open("clickhouse", o.dsn())
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxIdleConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	return &Client{db: db, opts: o}, nil
}

func (c *Client) DB() *sql.DB      { return c.db }
func (c *Client) Database() string { return c.opts.Database }

func (c *Client) Health(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Bootstrap runs idempotent DDL in order. Each statement gets its own
// WriteTimeout.
func (c *Client) Bootstrap(ctx context.Context, stmts ...string) error {
	for i, stmt := range stmts {
		if err := c.exec(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap statement %d: %w", i, err)
		}
	}
	return nil
}

func (c *Client) exec(ctx context.Context, stmt string) error {
	ctx, cancel := context.WithTimeout(ctx, c.opts.WriteTimeout)
	defer cancel()
	_, err := c.db.ExecContext(ctx, stmt)
	return err
}

func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
