package cleanup

import (
	"context"

	"go.uber.org/fx"

	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
)

func provideRemovalPublisher(p *Publisher) clientdomain.RemovalPublisher {
	return p
}

// Module wires the cleanup queue and the removal publisher used by the
// client service. The consumer and sweeper loops live in WorkerModule so
// only the worker binary runs them.
var Module = fx.Module("cleanup.service",
	fx.Provide(NewQueue),
	fx.Provide(NewPublisher),
	fx.Provide(provideRemovalPublisher),
)

func runConsumer(lc fx.Lifecycle, c *Consumer) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			c.Stop()
			return nil
		},
	})
}

func runSweeper(lc fx.Lifecycle, s *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.Start()
			return nil
		},
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
}

// WorkerModule runs the background loops.
var WorkerModule = fx.Module("cleanup.worker",
	fx.Provide(NewConsumer),
	fx.Provide(NewSweeper),
	fx.Invoke(runConsumer),
	fx.Invoke(runSweeper),
)
