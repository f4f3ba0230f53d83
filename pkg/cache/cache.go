package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is the shared cache contract. The engine uses it for hot role
// lookups; implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) (interface{}, bool)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) bool
	Clear(ctx context.Context) error
	Close() error
}

// Config selects and configures the cache backend.
type Config struct {
	// "local" or "redis"
	Type string `env:"CACHE_TYPE"`

	Redis RedisConfig
	Local LocalConfig
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`

	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"`
}

type LocalConfig struct {
	DefaultExpiration time.Duration `env:"LOCAL_CACHE_DEFAULT_EXPIRATION"`
	CleanupInterval   time.Duration `env:"LOCAL_CACHE_CLEANUP_INTERVAL"`
}

// New creates a cache instance for the configured backend.
func New(config Config) (Cache, error) {
	switch strings.ToLower(config.Type) {
	case "", "local":
		return NewLocalCache(config.Local), nil
	case "redis":
		return NewRedisCache(config.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", config.Type)
	}
}
