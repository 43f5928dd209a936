package cache

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/meridian/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewRedisClient opens the shared redis connection used by the rate
// limiter, the sweeper lock and the cleanup queue. Returns nil when no
// address is configured; consumers degrade accordingly.
func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	addr := strings.TrimSpace(cfg.RedisAddr)
	if addr == "" {
		log.Named("cache").Info("redis not configured, queue and limiter features disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.RedisPassword),
		DB:       cfg.RedisDB,
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	return client
}

var Module = fx.Module("cache",
	fx.Provide(NewRedisClient),
	fx.Provide(NewClientCache),
)
