package main

import (
	"hash/fnv"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/meridian/internal/audit"
	"github.com/smallbiznis/meridian/internal/authorization"
	"github.com/smallbiznis/meridian/internal/cache"
	"github.com/smallbiznis/meridian/internal/cleanup"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/consent"
	"github.com/smallbiznis/meridian/internal/observability"
	"github.com/smallbiznis/meridian/internal/ratelimit"
	"github.com/smallbiznis/meridian/pkg/db"
)

// The worker runs the cleanup consumer and the expiry sweeper without
// the HTTP surface, so token serving and background deletion scale
// independently.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		fx.Provide(clock.New),
		db.Module,
		cache.Module,
		ratelimit.Module,
		audit.Module,
		authorization.Module,
		consent.Module,
		cleanup.Module,
		cleanup.WorkerModule,
	)
	app.Run()
}

func registerSnowflake(cfg config.Config) (*snowflake.Node, error) {
	h := fnv.New32a()
	h.Write([]byte(cfg.Region))
	// Offset keeps worker ids clear of the serving nodes.
	return snowflake.NewNode(int64(h.Sum32()%1023) + 1)
}
