package gateway

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideClient(log *zap.Logger) Client {
	return NewClient(DefaultClientConfig(), log)
}

var Module = fx.Module("gateway.service",
	fx.Provide(provideClient),
	fx.Provide(NewResolver),
	fx.Provide(NewHandler),
)
