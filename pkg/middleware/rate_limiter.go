package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// RateLimiterConfig throttles the alert-creation surface. Rate uses the
// limiter format, e.g. "30-M" for thirty per minute per key.
type RateLimiterConfig struct {
	Rate       string   `json:"rate"`
	SkipPaths  []string `json:"skip_paths"` // prefix match
	AddHeaders bool     `json:"add_headers"`
	Store      limiter.Store
}

var (
	rateAllow = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_allow_total",
		Help: "Allowed requests by rate limiter",
	}, []string{"route"})
	rateDeny = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rate_limit_deny_total",
		Help: "Denied requests by rate limiter",
	}, []string{"route"})
)

// RateLimiter returns the gin middleware. Keys on the authenticated user
// when present, otherwise client IP.
func RateLimiter(cfg RateLimiterConfig) gin.HandlerFunc {
	store := cfg.Store
	if store == nil {
		store = memory.NewStore()
	}
	rate, err := limiter.NewRateFromFormatted(cfg.Rate)
	if err != nil {
		rate = limiter.Rate{Period: time.Second, Limit: 10}
	}
	lim := limiter.New(store, rate)

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		for _, pref := range cfg.SkipPaths {
			if pref != "" && strings.HasPrefix(route, pref) {
				c.Next()
				return
			}
		}

		key := "ip:" + c.ClientIP()
		if user := strings.TrimSpace(c.GetHeader("X-User-ID")); user != "" {
			key = "user:" + user
		}

		lctx, err := lim.Get(c, key)
		if err != nil {
			c.Next()
			return
		}
		if cfg.AddHeaders {
			c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
			c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		}
		if lctx.Reached {
			retry := int(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
			if retry < 0 {
				retry = 0
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			rateDeny.WithLabelValues(route).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too Many Requests"})
			return
		}
		rateAllow.WithLabelValues(route).Inc()
		c.Next()
	}
}
