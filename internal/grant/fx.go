package grant

import (
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/gateway"
	"github.com/smallbiznis/meridian/internal/grant/assertion"
	"github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/internal/grant/service"
	"go.uber.org/fx"
)

func provideVerifier(cfg config.Config) *assertion.Verifier {
	if cfg.AssertionSecret == "" {
		return nil
	}
	return assertion.NewVerifier(cfg.AssertionSecret)
}

func provideResolver(resolver *gateway.Resolver) domain.TokenResolver {
	return resolver
}

var Module = fx.Module("grant.service",
	fx.Provide(provideVerifier),
	fx.Provide(provideResolver),
	fx.Provide(service.NewCodeProvider),
	fx.Provide(service.NewRefreshProvider),
	fx.Provide(service.NewPATProvider),
	fx.Provide(service.New),
)
