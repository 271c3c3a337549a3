// Package redis implements the artwork cache, indexer lock, applied-event
// bus and API rate limiter on go-redis/v9.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const connectTimeout = 5 * time.Second

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// StreamMaxLen caps the applied-event stream; 0 uses DefaultStreamMaxLen.
	StreamMaxLen int64
	// CacheTTL bounds how long an artwork stays cached; 0 uses DefaultCacheTTL.
	CacheTTL time.Duration
}

func (cfg ClientConfig) options() *redis.Options {
	opts := &redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		MaxRetries:  cfg.MaxRetries,
		DialTimeout: connectTimeout,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// Client is the shared connection the cache, lock, bus and limiter use.
type Client struct {
	rdb *redis.Client
	cfg ClientConfig
}

// New connects and pings once so a wrong address fails at startup rather
// than on the first cache lookup.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	rdb := redis.NewClient(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: connect %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, cfg: cfg}, nil
}

// NewFromRedis wraps an already constructed driver client.
func NewFromRedis(rdb *redis.Client, cfg ClientConfig) *Client {
	return &Client{rdb: rdb, cfg: cfg}
}

func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Health is Ping under the name the health endpoint expects.
func (c *Client) Health(ctx context.Context) error { return c.Ping(ctx) }

func (c *Client) Close() error { return c.rdb.Close() }

// Underlying exposes the driver for the package's components.
func (c *Client) Underlying() *redis.Client { return c.rdb }
