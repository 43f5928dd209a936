package regionmetrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/smallbiznis/meridian/internal/config"
)

func provideRecorder(cfg config.Config, registry *prometheus.Registry) *Recorder {
	if !cfg.RegionMetricsEnabled {
		return nil
	}
	return NewRecorder(cfg.Region, registry)
}

func runPushLoop(lc fx.Lifecycle, cfg config.Config, pusher Pusher, registry *prometheus.Registry, log *zap.Logger) {
	if pusher == nil {
		return
	}
	interval := time.Duration(cfg.RegionMetricsInterval) * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						pushCtx, pushCancel := context.WithTimeout(ctx, defaultPushTimeout)
						if err := pusher.Push(pushCtx, registry); err != nil {
							log.Warn("region metrics push failed", zap.Error(err))
						}
						pushCancel()
					case <-ctx.Done():
						return
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			// Final push so the collector sees the last counters before
			// shutdown.
			if err := pusher.Push(stopCtx, registry); err != nil {
				log.Warn("final region metrics push failed", zap.Error(err))
			}
			cancel()
			return nil
		},
	})
}

var Module = fx.Module("region.metrics",
	fx.Provide(func() *prometheus.Registry { return prometheus.NewRegistry() }),
	fx.Provide(NewPusher),
	fx.Provide(provideRecorder),
	fx.Invoke(runPushLoop),
)
