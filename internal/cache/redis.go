// Package cache is the Redis-backed fast path: positive URL cache, click
// counters, rate-limit windows, and auth sessions. The durable store stays
// authoritative; everything here may disappear and the system must survive it.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent. Callers treat it as a cache
// miss, never as a failure.
var ErrMiss = errors.New("cache miss")

const (
	// URLTTL is how long owned links stay cached after a write-through or
	// populate-on-read.
	URLTTL = time.Hour

	// GuestTTL is the whole lifetime of a guest link. There is no durable
	// row behind it.
	GuestTTL = 24 * time.Hour

	// ClickTTL bounds click-counter growth. Counters idle longer than this
	// reset to absent; the durable clicks column keeps history.
	ClickTTL = 30 * 24 * time.Hour
)

func urlKey(code string) string      { return "url:" + code }
func clicksKey(code string) string   { return "clicks:" + code }
func sessionKey(token string) string { return "session:" + token }

type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, addr, password string, db int) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Cache{client: client}, nil
}

func (c *Cache) GetURL(ctx context.Context, code string) (string, error) {
	longURL, err := c.client.Get(ctx, urlKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("get cached url: %w", err)
	}
	return longURL, nil
}

func (c *Cache) SetURL(ctx context.Context, code, longURL string, ttl time.Duration) error {
	if err := c.client.Set(ctx, urlKey(code), longURL, ttl).Err(); err != nil {
		return fmt.Errorf("cache url: %w", err)
	}
	return nil
}

func (c *Cache) DeleteURL(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, urlKey(code)).Err(); err != nil {
		return fmt.Errorf("evict cached url: %w", err)
	}
	return nil
}

// AddClicks adds n to the click counter for code. The expiry is set only
// when the counter is created, so an active counter keeps its window.
func (c *Cache) AddClicks(ctx context.Context, code string, n int64) (int64, error) {
	total, err := c.client.IncrBy(ctx, clicksKey(code), n).Result()
	if err != nil {
		return 0, fmt.Errorf("increment clicks: %w", err)
	}
	if total == n {
		if err := c.client.Expire(ctx, clicksKey(code), ClickTTL).Err(); err != nil {
			return total, fmt.Errorf("set clicks expiry: %w", err)
		}
	}
	return total, nil
}

// GetClicks returns the counter value, 0 when absent.
func (c *Cache) GetClicks(ctx context.Context, code string) (int64, error) {
	n, err := c.client.Get(ctx, clicksKey(code)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get clicks: %w", err)
	}
	return n, nil
}

// GetClicksBatch fetches counters for many codes in one pipelined round trip.
// Absent counters come back as 0.
func (c *Cache) GetClicksBatch(ctx context.Context, codes []string) (map[string]int64, error) {
	result := make(map[string]int64, len(codes))
	if len(codes) == 0 {
		return result, nil
	}

	pipe := c.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(codes))
	for i, code := range codes {
		cmds[i] = pipe.Get(ctx, clicksKey(code))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("batch get clicks: %w", err)
	}

	for i, cmd := range cmds {
		n, err := cmd.Int64()
		if err != nil {
			continue
		}
		result[codes[i]] = n
	}
	return result, nil
}

func (c *Cache) DeleteClicks(ctx context.Context, code string) error {
	if err := c.client.Del(ctx, clicksKey(code)).Err(); err != nil {
		return fmt.Errorf("evict clicks counter: %w", err)
	}
	return nil
}

func (c *Cache) SetSession(ctx context.Context, token, accountID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, sessionKey(token), accountID, ttl).Err(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (c *Cache) GetSession(ctx context.Context, token string) (string, error) {
	accountID, err := c.client.Get(ctx, sessionKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("get session: %w", err)
	}
	return accountID, nil
}

func (c *Cache) DeleteSession(ctx context.Context, token string) error {
	if err := c.client.Del(ctx, sessionKey(token)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Allow implements a fixed-window rate limit counter and reports whether the
// request under key fits within max per window.
func (c *Cache) Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, error) {
	current, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}
	if current == 1 {
		if err := c.client.Expire(ctx, key, window).Err(); err != nil {
			return current <= max, fmt.Errorf("rate limit expiry: %w", err)
		}
	}
	return current <= max, nil
}

func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Cache) Close() error {
	return c.client.Close()
}
