package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkpost/internal/observability"

	"github.com/redis/go-redis/v9"
)

const (
	PostsListKey  = "posts:all"
	PostKeyPrefix = "post:%s"
)

// PostsTTL bounds how long a read can lag behind a write made by another
// process. Writes in this process invalidate the keys they touch.
const PostsTTL = time.Minute

func PostKey(id string) string {
	return fmt.Sprintf(PostKeyPrefix, id)
}

// PostCache is a read-through cache for post lookups. A nil *PostCache, or
// one without a client, caches nothing.
type PostCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewPostCache wraps rdb. A nil client yields a pass-through cache.
func NewPostCache(rdb redis.Cmdable, logger *slog.Logger) *PostCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostCache{rdb: rdb, ttl: PostsTTL, logger: logger}
}

func (c *PostCache) enabled() bool {
	return c != nil && c.rdb != nil
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func (c *PostCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "get")
	defer span.End()

	s, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(s), dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with the cache TTL.
func (c *PostCache) SetJSON(ctx context.Context, key string, v any) error {
	if !c.enabled() {
		return nil
	}
	ctx, span := observability.StartRedisSpan(ctx, "set")
	defer span.End()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

// Aside tries Redis first, on miss it calls fetch (which must populate dest),
// then stores the result with the cache TTL. Redis failures degrade to a
// direct fetch.
func (c *PostCache) Aside(ctx context.Context, key string, dest any, fetch func() error) error {
	found, err := c.GetJSON(ctx, key, dest)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed", "key", key, "error", err.Error())
	}
	if found {
		observability.CacheLookups.WithLabelValues("hit").Inc()
		return nil
	}
	if c.enabled() {
		observability.CacheLookups.WithLabelValues("miss").Inc()
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := c.SetJSON(ctx, key, dest); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", "key", key, "error", err.Error())
	}
	return nil
}

// InvalidatePost drops the collection and the given post ids from the cache.
func (c *PostCache) InvalidatePost(ctx context.Context, ids ...string) {
	if !c.enabled() {
		return
	}
	keys := []string{PostsListKey}
	for _, id := range ids {
		keys = append(keys, PostKey(id))
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "cache invalidation failed", "keys", keys, "error", err.Error())
	}
}
