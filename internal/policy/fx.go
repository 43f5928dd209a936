package policy

import "go.uber.org/fx"

var Module = fx.Module("policy.service",
	fx.Provide(NewEnforcer),
	fx.Provide(NewService),
)
