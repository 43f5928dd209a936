package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const keyTokenEndpoint = "ratelimit:token:"

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Client  *redis.Client    `optional:"true"`
	Metrics *metrics.Metrics `optional:"true"`
}

// TokenEndpointLimiter applies a per-client token bucket on the token
// endpoint. Disabled or unconfigured, it passes everything through.
type TokenEndpointLimiter struct {
	log     *zap.Logger
	bucket  *TokenBucket
	metrics *metrics.Metrics
	rate    float64
	burst   int
	enabled bool
}

func NewTokenEndpointLimiter(p Params) *TokenEndpointLimiter {
	limiter := &TokenEndpointLimiter{
		log:     p.Log.Named("ratelimit"),
		metrics: p.Metrics,
		rate:    p.Cfg.TokenEndpointRate,
		burst:   p.Cfg.TokenEndpointBurst,
	}
	if !p.Cfg.RateLimitEnabled || p.Client == nil {
		return limiter
	}
	limiter.bucket = NewTokenBucket(p.Client)
	limiter.enabled = limiter.rate > 0 && limiter.burst > 0
	return limiter
}

// Middleware keys the bucket by client_id; unauthenticated requests fall
// back to the caller IP so a broken client cannot starve everyone.
func (l *TokenEndpointLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || !l.enabled {
			c.Next()
			return
		}

		clientID := c.PostForm("client_id")
		if clientID == "" {
			clientID, _, _ = c.Request.BasicAuth()
		}
		if clientID == "" {
			clientID = c.ClientIP()
		}

		result, err := l.bucket.Allow(c.Request.Context(), keyTokenEndpoint+clientID, l.rate, l.burst)
		if err != nil {
			// Fail open: a limiter outage must not block all grants.
			l.log.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}

		if !result.Allowed {
			l.metrics.RecordRateLimitDenied(c.Request.Context(), clientID, c.FullPath(), "token_bucket")
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":             "slow_down",
				"error_description": "too many token requests",
			})
			return
		}

		l.metrics.RecordRateLimitAllowed(c.Request.Context(), clientID, c.FullPath())
		c.Next()
	}
}

var Module = fx.Module("rate.limit",
	fx.Provide(NewLocker),
	fx.Provide(NewTokenEndpointLimiter),
)
