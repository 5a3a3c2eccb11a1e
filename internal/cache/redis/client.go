// Package redis implements the cycle lock and the decision bus on
// go-redis/v9. Every key and channel lives under the client's namespace, so
// oracles for different markets can share one Redis without taking each
// other's cycle locks.
package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// ClientConfig holds connection parameters for the Redis client. Addr is
// either host:port or a redis:// / rediss:// URL; a URL's credentials and
// database override Password and DB.
type ClientConfig struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	MaxRetries int
	TLSEnabled bool
	// Namespace prefixes every key and channel, e.g. "localoracle:11155111:0xabc".
	Namespace string
	// StreamMaxLen caps the decision stream via XADD MAXLEN ~.
	StreamMaxLen int64
}

// Client wraps a go-redis Client with the oracle's key namespace.
type Client struct {
	rdb          *redis.Client
	namespace    string
	streamMaxLen int64
}

// New connects and pings Redis.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	opts, err := options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	return newClient(rdb, cfg), nil
}

func newClient(rdb *redis.Client, cfg ClientConfig) *Client {
	maxLen := cfg.StreamMaxLen
	if maxLen <= 0 {
		maxLen = defaultStreamMaxLen
	}
	return &Client{
		rdb:          rdb,
		namespace:    strings.TrimSuffix(cfg.Namespace, ":"),
		streamMaxLen: maxLen,
	}
}

func options(cfg ClientConfig) (*redis.Options, error) {
	var opts *redis.Options
	if strings.HasPrefix(cfg.Addr, "redis://") || strings.HasPrefix(cfg.Addr, "rediss://") {
		parsed, err := redis.ParseURL(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("redis: parse url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	opts.ClientName = "localoracle"
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MaxRetries != 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.TLSEnabled && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts, nil
}

// Key joins parts under the namespace: Key("lock", "cycle:agent") is
// "<namespace>:lock:cycle:agent".
func (c *Client) Key(parts ...string) string {
	if c.namespace == "" {
		return strings.Join(parts, ":")
	}
	return c.namespace + ":" + strings.Join(parts, ":")
}

// Ping checks the Redis connection.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}
