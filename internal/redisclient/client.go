package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheAvailability stores a ticket type's available quantity for fast
// catalog reads. The database row stays authoritative.
func (c *Client) CacheAvailability(ctx context.Context, ticketTypeID string, available int, ttl time.Duration) error {
	key := fmt.Sprintf("availability:%s", ticketTypeID)
	return c.rdb.Set(ctx, key, available, ttl).Err()
}

// GetAvailability reads a cached availability count. The second return
// value reports a cache hit.
func (c *Client) GetAvailability(ctx context.Context, ticketTypeID string) (int, bool, error) {
	key := fmt.Sprintf("availability:%s", ticketTypeID)
	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability value for %s: %w", ticketTypeID, err)
	}
	return available, true, nil
}

// InvalidateAvailability drops cached counts after stock mutates
func (c *Client) InvalidateAvailability(ctx context.Context, ticketTypeIDs ...string) error {
	if len(ticketTypeIDs) == 0 {
		return nil
	}
	keys := make([]string, len(ticketTypeIDs))
	for i, id := range ticketTypeIDs {
		keys[i] = fmt.Sprintf("availability:%s", id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// AcquireLock acquires a named lock so overlapping reconciler passes
// across instances skip instead of double-running
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a named lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
