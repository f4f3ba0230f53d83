package util

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// LoadEnv reads .env.<env> (falling back to .env) from the working directory
// and sets any keys not already present in the environment. Real environment
// variables always win.
func LoadEnv(env string) error {
	for _, name := range []string{".env." + env, ".env"} {
		f, err := os.Open(name)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			k, v, ok := strings.Cut(line, "=")
			if !ok {
				continue
			}
			k = strings.TrimSpace(k)
			v = strings.Trim(strings.TrimSpace(v), `"`)
			if _, exists := os.LookupEnv(k); !exists {
				os.Setenv(k, v)
			}
		}
		f.Close()
		return scanner.Err()
	}
	return os.ErrNotExist
}

func GetEnv(key string) string { return os.Getenv(key) }

func GetEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func GetIntEnv(key string) int64 { return cast.ToInt64(os.Getenv(key)) }

func GetIntEnvDefault(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		return cast.ToInt64(v)
	}
	return def
}

func GetBoolEnv(key string) bool { return cast.ToBool(os.Getenv(key)) }

func GetBoolEnvDefault(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return cast.ToBool(v)
	}
	return def
}

func GetDurationEnvDefault(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d := cast.ToDuration(v); d > 0 {
			return d
		}
	}
	return def
}
