package config

import (
	"log"
	"os"
	"time"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/cache"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/logger"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/notification"
	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/util"
)

// Config is assembled once at process start and passed to the components
// that need it; the engine itself never reads it globally.
type Config struct {
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	APIPrefix string `env:"API_PREFIX"`

	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`

	Log   logger.LogConfig
	Cache cache.Config
	Push  notification.JPushConfig

	RateLimit string `env:"RATE_LIMIT"` // limiter format, e.g. "30-M"

	Dispatch   DispatchConfig
	Escalation EscalationConfig
}

// DispatchConfig bounds the alert fan-out.
type DispatchConfig struct {
	Concurrency    int           `env:"DISPATCH_CONCURRENCY"`
	Attempts       int           `env:"DISPATCH_ATTEMPTS"`
	AttemptTimeout time.Duration `env:"DISPATCH_ATTEMPT_TIMEOUT"`
	BackoffBase    time.Duration `env:"DISPATCH_BACKOFF_BASE"`
	Timeout        time.Duration `env:"DISPATCH_TIMEOUT"` // aggregate per dispatch
}

type EscalationConfig struct {
	ScanInterval time.Duration `env:"ESCALATION_SCAN_INTERVAL"`
	// When true (the default), the required acknowledger set is frozen at
	// first dispatch; escalation never adds new required acknowledgers.
	AckSetFrozen bool `env:"ACK_SET_FROZEN"`
}

func Load() (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}
	if err := util.LoadEnv(env); err != nil && !os.IsNotExist(err) {
		log.Printf("Failed to load .env file: %v", err)
	}

	return &Config{
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnvDefault("MODE", "debug"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api/v1"),
		DBDriver:  util.GetEnv("DB_DRIVER"),
		DSN:       util.GetEnv("DSN"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		Cache: cache.Config{
			Type: util.GetEnvDefault("CACHE_TYPE", "local"),
			Redis: cache.RedisConfig{
				Addr:         util.GetEnv("REDIS_ADDR"),
				Password:     util.GetEnv("REDIS_PASSWORD"),
				DB:           int(util.GetIntEnv("REDIS_DB")),
				DialTimeout:  util.GetDurationEnvDefault("REDIS_DIAL_TIMEOUT", 5*time.Second),
				ReadTimeout:  util.GetDurationEnvDefault("REDIS_READ_TIMEOUT", 3*time.Second),
				WriteTimeout: util.GetDurationEnvDefault("REDIS_WRITE_TIMEOUT", 3*time.Second),
			},
			Local: cache.LocalConfig{
				DefaultExpiration: util.GetDurationEnvDefault("LOCAL_CACHE_DEFAULT_EXPIRATION", 5*time.Minute),
				CleanupInterval:   util.GetDurationEnvDefault("LOCAL_CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			},
		},
		Push: notification.JPushConfig{
			AppKey:       util.GetEnv("JPUSH_APP_KEY"),
			MasterSecret: util.GetEnv("JPUSH_MASTER_SECRET"),
		},
		RateLimit: util.GetEnvDefault("RATE_LIMIT", "30-M"),
		Dispatch: DispatchConfig{
			Concurrency:    int(util.GetIntEnvDefault("DISPATCH_CONCURRENCY", 50)),
			Attempts:       int(util.GetIntEnvDefault("DISPATCH_ATTEMPTS", 3)),
			AttemptTimeout: util.GetDurationEnvDefault("DISPATCH_ATTEMPT_TIMEOUT", 5*time.Second),
			BackoffBase:    util.GetDurationEnvDefault("DISPATCH_BACKOFF_BASE", 250*time.Millisecond),
			Timeout:        util.GetDurationEnvDefault("DISPATCH_TIMEOUT", 30*time.Second),
		},
		Escalation: EscalationConfig{
			ScanInterval: util.GetDurationEnvDefault("ESCALATION_SCAN_INTERVAL", time.Minute),
			AckSetFrozen: util.GetBoolEnvDefault("ACK_SET_FROZEN", true),
		},
	}, nil
}
