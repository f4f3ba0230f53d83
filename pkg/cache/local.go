package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// localCache wraps patrickmn/go-cache as the in-process backend.
type localCache struct {
	cache *gocache.Cache
}

// NewLocalCache creates the in-process cache backend.
func NewLocalCache(config LocalConfig) Cache {
	exp := config.DefaultExpiration
	if exp <= 0 {
		exp = 5 * time.Minute
	}
	cleanup := config.CleanupInterval
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &localCache{cache: gocache.New(exp, cleanup)}
}

func (lc *localCache) Get(ctx context.Context, key string) (interface{}, bool) {
	return lc.cache.Get(key)
}

func (lc *localCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	lc.cache.Set(key, value, expiration)
	return nil
}

func (lc *localCache) Delete(ctx context.Context, key string) error {
	lc.cache.Delete(key)
	return nil
}

func (lc *localCache) Exists(ctx context.Context, key string) bool {
	_, found := lc.cache.Get(key)
	return found
}

func (lc *localCache) Clear(ctx context.Context) error {
	lc.cache.Flush()
	return nil
}

func (lc *localCache) Close() error { return nil }
