package service

import (
	"context"
	"errors"

	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
	"github.com/smallbiznis/meridian/internal/regionmetrics"
	"github.com/smallbiznis/meridian/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type RefreshProviderParams struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Clients  clientdomain.Service
	Store    authzdomain.Store
	Resolver domain.TokenResolver
	Tokens   *token.Service
	Audit    auditdomain.Publisher
	Metrics  *metrics.Metrics        `optional:"true"`
	Region   *regionmetrics.Recorder `optional:"true"`
}

// RefreshProvider renews an access token against a live refresh token and
// rotates the refresh token itself.
type RefreshProvider struct {
	log      *zap.Logger
	clock    clock.Clock
	clients  clientdomain.Service
	store    authzdomain.Store
	resolver domain.TokenResolver
	tokens   *token.Service
	audit    auditdomain.Publisher
	metrics  *metrics.Metrics
	region   *regionmetrics.Recorder
}

func NewRefreshProvider(p RefreshProviderParams) *RefreshProvider {
	return &RefreshProvider{
		log:      p.Log.Named("grant.refresh"),
		clock:    p.Clock,
		clients:  p.Clients,
		store:    p.Store,
		resolver: p.Resolver,
		tokens:   p.Tokens,
		audit:    p.Audit,
		metrics:  p.Metrics,
		region:   p.Region,
	}
}

func (p *RefreshProvider) GrantType() string {
	return authzdomain.GrantTypeRefreshToken
}

func (p *RefreshProvider) Grant(ctx context.Context, req domain.TokenRequest) (*domain.TokenResult, error) {
	client, perr := authenticateClient(ctx, p.clients, req)
	if perr != nil {
		return nil, perr
	}
	if !client.HasGrantType(authzdomain.GrantTypeRefreshToken) {
		return nil, domain.UnauthorizedClient("refresh_token grant is not enabled for this client")
	}
	if req.RefreshToken == "" {
		return nil, domain.InvalidRequest("missing refresh_token")
	}

	auth, err := p.resolver.LookupByToken(ctx, req.RefreshToken)
	if err != nil {
		if errors.Is(err, authzdomain.ErrAuthorizationNotFound) {
			return nil, domain.InvalidGrant("refresh token is not recognized")
		}
		p.log.Error("authorization lookup failed", zap.Error(err))
		return nil, domain.ServerError("authorization lookup failed")
	}

	now := p.clock.Now()
	switch {
	case auth.ClientID != client.ClientID:
		return nil, domain.InvalidGrant("refresh token was issued to another client")
	case !auth.Active():
		return nil, domain.InvalidGrant("authorization has been invalidated")
	case auth.RefreshTokenValue != req.RefreshToken:
		return nil, domain.InvalidGrant("refresh token is not recognized")
	case auth.RefreshTokenExpiresAt != nil && now.After(*auth.RefreshTokenExpiresAt):
		return nil, domain.InvalidGrant("refresh token has expired")
	}

	tokenCtx := signingContext(ctx, auth, client.ClientID)

	access, err := p.tokens.SignAccessToken(ctx, tokenCtx, auth.AuthorizedScopes)
	if err != nil {
		p.log.Error("failed to sign access token",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, domain.ServerError("could not issue access token")
	}

	// A renewal falls back to the local region; only code exchange
	// inherits a foreign tag.
	refresh, err := p.tokens.GenerateRefreshToken(ctx, token.RefreshContext{
		PublicClient: client.Public,
		GrantType:    authzdomain.GrantTypeRefreshToken,
	})
	if err != nil {
		p.log.Error("failed to rotate refresh token", zap.Error(err))
		return nil, domain.ServerError("could not issue refresh token")
	}

	auth.AccessTokenValue = access.Value
	auth.AccessTokenType = "Bearer"
	auth.AccessTokenIssuedAt = &access.IssuedAt
	auth.AccessTokenExpiresAt = &access.ExpiresAt
	auth.AccessTokenScopes = auth.AuthorizedScopes
	if refresh != nil {
		auth.RefreshTokenValue = refresh.Value
		auth.RefreshTokenIssuedAt = &refresh.IssuedAt
		auth.RefreshTokenExpiresAt = &refresh.ExpiresAt
	}
	auth.ModifiedAt = now

	if err := p.store.Save(ctx, auth); err != nil {
		p.log.Error("failed to persist refreshed authorization", zap.Error(err))
		return nil, domain.ServerError("could not persist authorization")
	}

	p.metrics.RecordGrantIssued(ctx, authzdomain.GrantTypeRefreshToken)
	p.metrics.RecordTokenIssued(ctx, "access_token", "")
	p.region.RecordGrantIssued(authzdomain.GrantTypeRefreshToken)
	p.region.RecordTokenIssued("access_token")
	p.audit.Publish(ctx, auditdomain.Event{
		Initiator:  auth.PrincipalName,
		Target:     auth.ClientID,
		UserName:   auth.PrincipalName,
		ActionCode: auditdomain.ActionTokenRefreshed,
	})

	result := &domain.TokenResult{
		AccessToken: access.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(access.ExpiresAt.Sub(access.IssuedAt).Seconds()),
		Scope:       auth.AuthorizedScopes,
	}
	if refresh != nil {
		result.RefreshToken = refresh.Value
	}
	return result, nil
}
