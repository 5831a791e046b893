package inbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/marketplace-messaging/domain/message"
	"github.com/redis/go-redis/v9"
)

// Cache stores inbox pages in Redis. Each receiver has a generation counter
// that is part of every page key; bumping it retires all cached pages of that
// receiver, including pages written by reads that started before the bump.
//
// Key layout under prefix:
//
//	gen:<receiver>                    generation counter, no TTL
//	page:<receiver>:<gen>:<limit>     JSON []message.Frame, TTL
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  Stats
}

// Stats tracks cache statistics.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Sets          uint64 `json:"sets"`
	Invalidations uint64 `json:"invalidations"`
	Errors        uint64 `json:"errors"`
}

// NewCache creates a new cache instance.
func NewCache(client *redis.Client, prefix string, ttl time.Duration) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (c *Cache) genKey(receiverID int64) string {
	return fmt.Sprintf("%sgen:%d", c.prefix, receiverID)
}

func (c *Cache) pageKey(receiverID, gen int64, limit int) string {
	return fmt.Sprintf("%spage:%d:%d:%d", c.prefix, receiverID, gen, limit)
}

// Generation returns the current generation of receiverID's inbox.
func (c *Cache) Generation(ctx context.Context, receiverID int64) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(receiverID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return 0, fmt.Errorf("cache generation error: %w", err)
	}
	return gen, nil
}

// Bump advances receiverID's generation and drops its cached pages.
func (c *Cache) Bump(ctx context.Context, receiverID int64) error {
	if err := c.client.Incr(ctx, c.genKey(receiverID)).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache bump error: %w", err)
	}
	atomic.AddUint64(&c.stats.Invalidations, 1)

	// Old pages are unreachable now; deleting them only frees memory early.
	return c.deletePattern(ctx, fmt.Sprintf("%spage:%d:*", c.prefix, receiverID))
}

// GetFrames returns a cached inbox page and reports whether it was found.
func (c *Cache) GetFrames(ctx context.Context, receiverID, gen int64, limit int) ([]message.Frame, bool, error) {
	data, err := c.client.Get(ctx, c.pageKey(receiverID, gen, limit)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return nil, false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}

	var frames []message.Frame
	if err := json.Unmarshal(data, &frames); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	return frames, true, nil
}

// SetFrames stores an inbox page read at generation gen.
func (c *Cache) SetFrames(ctx context.Context, receiverID, gen int64, limit int, frames []message.Frame) error {
	data, err := json.Marshal(frames)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.pageKey(receiverID, gen, limit), data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}

	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

func (c *Cache) deletePattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			atomic.AddUint64(&c.stats.Errors, 1)
			return fmt.Errorf("cache scan error: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				atomic.AddUint64(&c.stats.Errors, 1)
				return fmt.Errorf("cache delete error: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

// GetStats returns a snapshot of the cache statistics.
func (c *Cache) GetStats() Stats {
	return Stats{
		Hits:          atomic.LoadUint64(&c.stats.Hits),
		Misses:        atomic.LoadUint64(&c.stats.Misses),
		Sets:          atomic.LoadUint64(&c.stats.Sets),
		Invalidations: atomic.LoadUint64(&c.stats.Invalidations),
		Errors:        atomic.LoadUint64(&c.stats.Errors),
	}
}

// Ping checks if the Redis connection is healthy.
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
