// Package postgres manages the connection to the article corpus database.
// The DB handle is exposed directly: the corpus reader needs transaction
// and cursor control that a thin wrapper would only obscure.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/newsroom-io/syndication-detector/pkg/config"
)

// Client holds the pooled connection to the corpus database.
type Client struct {
	DB  *sql.DB
	cfg config.PostgresConfig
}

// New opens a connection pool and verifies it with a ping.
func New(cfg config.PostgresConfig) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Client{DB: db, cfg: cfg}, nil
}

// Close closes the pool.
func (c *Client) Close() error {
	return c.DB.Close()
}

// Ping probes connectivity, for the readiness check.
func (c *Client) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}
