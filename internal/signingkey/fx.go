package signingkey

import (
	"github.com/smallbiznis/meridian/internal/signingkey/repository"
	"github.com/smallbiznis/meridian/internal/signingkey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("signingkey.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
