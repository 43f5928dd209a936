package authorization

import (
	"github.com/smallbiznis/meridian/internal/authorization/repository"
	"github.com/smallbiznis/meridian/internal/authorization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("authorization.store",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
