// Package redis implements the shared cache, bus, quota and lock interfaces
// on go-redis/v9 so several scanner and API processes can cooperate.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces every key and channel this package touches.
const keyPrefix = "tokenarb:"

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// Mode is the process's run mode. It tags the connection with CLIENT
	// SETNAME so scanner and API processes are told apart in CLIENT LIST.
	Mode string
}

// Client wraps a go-redis client.
type Client struct {
	rdb  *redis.Client
	addr string
}

// New connects and pings. The returned Client is shared by every component
// in this package.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts := &redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		PoolSize:   cfg.PoolSize,
		MaxRetries: cfg.MaxRetries,
		ClientName: clientName(cfg.Mode),
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", cfg.Addr, err)
	}
	return &Client{rdb: rdb, addr: cfg.Addr}, nil
}

func clientName(mode string) string {
	if mode == "" {
		return "tokenarb"
	}
	return "tokenarb-" + mode
}

// InstanceID names this process as "<host>:<pid>" for lock values.
func InstanceID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// Ping checks the connection for the health endpoint. Slow round trips are
// reported too, since a lagging Redis stalls the leader lock and quotas.
func (c *Client) Ping(ctx context.Context) error {
	start := time.Now()
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping %s: %w", c.addr, err)
	}
	if rtt := time.Since(start); rtt > slowPing {
		return fmt.Errorf("redis: ping %s took %v", c.addr, rtt.Round(time.Millisecond))
	}
	return nil
}

const slowPing = time.Second

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Underlying returns the raw driver client.
func (c *Client) Underlying() *redis.Client {
	return c.rdb
}
