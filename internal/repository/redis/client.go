package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces the cache keys of a deployment.
const DefaultPrefix = "warroom"

const dialTimeout = 5 * time.Second

// Client is the live state cache of running games. All keys start with
// its prefix, so deployments sharing a Redis database stay apart.
type Client struct {
	rdb    *redis.Client
	prefix string
}

// NewClient connects to redisURL and fails unless the server answers
// within a few seconds.
func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return NewClientFromPool(rdb, DefaultPrefix), nil
}

// NewClientFromPool wraps rdb. An empty prefix means DefaultPrefix.
func NewClientFromPool(rdb *redis.Client, prefix string) *Client {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Client{rdb: rdb, prefix: prefix}
}

func (c *Client) stateKey(gameID string) string {
	return c.prefix + ":game:" + gameID + ":state"
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping backs the /healthz check.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
