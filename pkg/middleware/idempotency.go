package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Dmccarty30/Journeyman-Jobs-sub014/pkg/cache"
)

type IdempotencyConfig struct {
	HeaderName string        // defaults to Idempotency-Key
	TTL        time.Duration // rejection window for duplicate submissions
	Store      cache.Cache   // defaults to an in-process cache
}

// Idempotency rejects duplicate submissions inside the TTL window. Clients
// send an Idempotency-Key header; without one the request body hash is the
// key, so an identical retry of the same alert is still caught.
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.HeaderName == "" {
		cfg.HeaderName = "Idempotency-Key"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	store := cfg.Store
	if store == nil {
		store = cache.NewLocalCache(cache.LocalConfig{
			DefaultExpiration: cfg.TTL,
			CleanupInterval:   time.Minute,
		})
	}
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(cfg.HeaderName))
		if key == "" {
			b, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(strings.NewReader(string(b)))
			h := sha256.Sum256(b)
			key = hex.EncodeToString(h[:])
		}
		key = "idem:" + c.FullPath() + ":" + key
		if store.Exists(c, key) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "duplicate request"})
			return
		}
		_ = store.Set(c, key, true, cfg.TTL)
		c.Next()
	}
}
