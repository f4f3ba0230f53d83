package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCache is the distributed backend. Values are stored JSON-encoded, so
// callers get back string/float64/map shapes rather than the original Go
// types; the engine only caches strings.
type redisCache struct {
	client *redis.Client
}

// NewRedisCache creates the redis-backed cache and verifies connectivity.
func NewRedisCache(config RedisConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redisCache{client: client}, nil
}

func (rc *redisCache) Get(ctx context.Context, key string) (interface{}, bool) {
	raw, err := rc.client.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var value interface{}
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		return nil, false
	}
	return value, true
}

func (rc *redisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, key, raw, expiration).Err()
}

func (rc *redisCache) Delete(ctx context.Context, key string) error {
	return rc.client.Del(ctx, key).Err()
}

func (rc *redisCache) Exists(ctx context.Context, key string) bool {
	n, err := rc.client.Exists(ctx, key).Result()
	return err == nil && n > 0
}

func (rc *redisCache) Clear(ctx context.Context) error {
	return rc.client.FlushDB(ctx).Err()
}

func (rc *redisCache) Close() error { return rc.client.Close() }
