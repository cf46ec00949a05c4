package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/devarispbrown/gtsd/observability"
	"github.com/devarispbrown/gtsd/utils"
)

// StreakCache keeps the streak and badge read models coherent with the ledger.
// Failures are logged and swallowed: the database stays the system of record.
type StreakCache struct {
	cache utils.ResultCache
	ttl   time.Duration
	log   *zap.Logger
}

// NewStreakCache wraps cache. A nil cache disables caching.
func NewStreakCache(cache utils.ResultCache, ttl time.Duration, log *zap.Logger) *StreakCache {
	if cache == nil {
		cache = utils.NoopCache{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &StreakCache{cache: cache, ttl: ttl, log: log}
}

// StreakKey is the cache key for a user's streak snapshot.
func StreakKey(userID uint) string {
	return fmt.Sprintf("streak:v1:user:%d", userID)
}

// BadgesKey is the cache key for a user's badge list.
func BadgesKey(userID uint) string {
	return fmt.Sprintf("badges:v1:user:%d", userID)
}

// Invalidate drops both keys together so the two views never disagree for longer than a miss.
func (c *StreakCache) Invalidate(ctx context.Context, userID uint) {
	if err := c.cache.Delete(ctx, StreakKey(userID), BadgesKey(userID)); err != nil {
		observability.RecordCacheError("delete")
		c.log.Warn("cache invalidation failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (c *StreakCache) get(ctx context.Context, key string, dest interface{}) bool {
	hit, err := c.cache.GetJSON(ctx, key, dest)
	if err != nil {
		observability.RecordCacheError("get")
		c.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !hit {
		c.log.Debug("cache miss", zap.String("key", key))
	}
	return hit
}

func (c *StreakCache) set(ctx context.Context, key string, v interface{}) {
	if err := c.cache.SetJSON(ctx, key, v, c.ttl); err != nil {
		observability.RecordCacheError("set")
		c.log.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
