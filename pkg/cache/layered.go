package cache

import (
	"context"
	"time"
)

// LayeredCache puts a small in-process L1 in front of Redis. L1 entries live at
// most l1TTL so writes from other replicas become visible quickly.
type LayeredCache struct {
	memCache   *MemoryCache
	redisCache *RedisCache
	l1TTL      time.Duration
}

func NewLayeredCache(redisCache *RedisCache, memorySize int, l1TTL time.Duration) *LayeredCache {
	if memorySize <= 0 {
		memorySize = 1000
	}
	if l1TTL <= 0 {
		l1TTL = 30 * time.Second
	}
	return &LayeredCache{
		memCache:   NewMemoryCache(WithMemoryMaxSize(memorySize)),
		redisCache: redisCache,
		l1TTL:      l1TTL,
	}
}

func (lc *LayeredCache) l1Expiry(expiration time.Duration) time.Duration {
	if expiration > 0 && expiration < lc.l1TTL {
		return expiration
	}
	return lc.l1TTL
}

func (lc *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	// write-through, Redis first
	if err := lc.redisCache.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = lc.memCache.Set(ctx, key, value, lc.l1Expiry(expiration))
	return nil
}

func (lc *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := lc.memCache.Get(ctx, key, dest); err == nil {
		return nil
	}

	// Refill L1 with the stored bytes, not a re-encoding of dest.
	data, err := lc.redisCache.getRaw(ctx, key)
	if err != nil {
		return err
	}
	if err := decode(data, dest); err != nil {
		return err
	}
	lc.memCache.store(key, data, lc.l1TTL)
	return nil
}

func (lc *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = lc.memCache.Delete(ctx, keys...)
	return lc.redisCache.Delete(ctx, keys...)
}

func (lc *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return lc.redisCache.Exists(ctx, keys...)
}

// Locks must be shared across replicas, so they bypass L1.
func (lc *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return lc.redisCache.TryLock(ctx, key, ttl)
}

func (lc *LayeredCache) Unlock(ctx context.Context, key string) error {
	return lc.redisCache.Unlock(ctx, key)
}

func (lc *LayeredCache) Close() error {
	_ = lc.memCache.Close()
	return lc.redisCache.Close()
}
