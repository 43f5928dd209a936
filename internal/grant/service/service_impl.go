package service

import (
	"context"

	"github.com/smallbiznis/meridian/internal/grant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Code    *CodeProvider
	Refresh *RefreshProvider
	PAT     *PATProvider
}

// Service routes requests to the grant providers.
type Service struct {
	log       *zap.Logger
	code      *CodeProvider
	providers map[string]domain.Provider
}

func New(p Params) domain.Service {
	providers := map[string]domain.Provider{}
	for _, provider := range []domain.Provider{p.Code, p.Refresh, p.PAT} {
		providers[provider.GrantType()] = provider
	}
	return &Service{
		log:       p.Log.Named("grant.service"),
		code:      p.Code,
		providers: providers,
	}
}

func (s *Service) Authorize(ctx context.Context, req domain.AuthorizeRequest) (*domain.AuthorizeResult, error) {
	return s.code.Authorize(ctx, req)
}

func (s *Service) Token(ctx context.Context, req domain.TokenRequest) (*domain.TokenResult, error) {
	provider, ok := s.providers[req.GrantType]
	if !ok {
		return nil, domain.UnsupportedGrantType(req.GrantType)
	}
	return provider.Grant(ctx, req)
}
