package redisdb

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"bookbrain/internal/domain/library"
	applog "bookbrain/internal/platform/log"
)

// QueryCache 查询响应 Redis 缓存。默认关闭（TTL=0 时不应创建），
// 开启与否是运维选择：开启后重复查询不再重新 embed。
type QueryCache struct {
	redis  *redis.Client
	ttl    time.Duration
	prefix string
}

// NewQueryCache 创建查询缓存。
func NewQueryCache(rdb *redis.Client, ttlSeconds int) *QueryCache {
	ttl := 5 * time.Minute
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &QueryCache{
		redis:  rdb,
		ttl:    ttl,
		prefix: "library:cache:",
	}
}

// Get 读取缓存的查询响应。
func (c *QueryCache) Get(ctx context.Context, query string, topK int) (*library.QueryResponse, bool) {
	key := c.cacheKey(query, topK)
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var resp library.QueryResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		applog.Warn("[Library/Cache] Failed to unmarshal cached response", "error", err)
		return nil, false
	}

	applog.Debug("[Library/Cache] Hit", "key", key)
	return &resp, true
}

// Set 写入查询响应。
func (c *QueryCache) Set(ctx context.Context, query string, topK int, resp *library.QueryResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		return
	}

	key := c.cacheKey(query, topK)
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		applog.Warn("[Library/Cache] Failed to set cache", "key", key, "error", err)
	}
}

// InvalidateAll 清除全部查询缓存（入库重建后调用）。
func (c *QueryCache) InvalidateAll(ctx context.Context) {
	iter := c.redis.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if len(keys) > 0 {
		c.redis.Del(ctx, keys...)
		applog.Info("[Library/Cache] All cache invalidated", "keys_deleted", len(keys))
	}
}

// cacheKey = hash(query + topK)。
func (c *QueryCache) cacheKey(query string, topK int) string {
	raw := fmt.Sprintf("%s|%d", query, topK)
	hash := sha256.Sum256([]byte(raw))
	return c.prefix + fmt.Sprintf("%x", hash[:12])
}
