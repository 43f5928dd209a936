package secrets

import (
	"github.com/smallbiznis/meridian/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("secrets",
	fx.Provide(func(cfg config.Config) (*Cipher, error) {
		return NewCipher(cfg.SecretsPassphrase)
	}),
)
