package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/grant/assertion"
	"github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
	"github.com/smallbiznis/meridian/internal/regionmetrics"
	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"github.com/smallbiznis/meridian/internal/token"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type PATProviderParams struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Clients  clientdomain.Service
	Store    authzdomain.Store
	Tokens   *token.Service
	Verifier *assertion.Verifier
	Audit    auditdomain.Publisher
	Metrics  *metrics.Metrics        `optional:"true"`
	Region   *regionmetrics.Recorder `optional:"true"`
}

// PATProvider issues personal access tokens. Every grant creates an
// independent authorization record; the (client, principal) composite key
// of the code family is never reused.
type PATProvider struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	clients  clientdomain.Service
	store    authzdomain.Store
	tokens   *token.Service
	verifier *assertion.Verifier
	audit    auditdomain.Publisher
	metrics  *metrics.Metrics
	region   *regionmetrics.Recorder
	ttl      time.Duration
}

func NewPATProvider(p PATProviderParams) *PATProvider {
	return &PATProvider{
		log:      p.Log.Named("grant.pat"),
		genID:    p.GenID,
		clock:    p.Clock,
		clients:  p.Clients,
		store:    p.Store,
		tokens:   p.Tokens,
		verifier: p.Verifier,
		audit:    p.Audit,
		metrics:  p.Metrics,
		region:   p.Region,
		ttl:      time.Duration(p.Cfg.PersonalAccessTokenTTL) * time.Second,
	}
}

func (p *PATProvider) GrantType() string {
	return authzdomain.GrantTypePersonalAccessToken
}

func (p *PATProvider) Grant(ctx context.Context, req domain.TokenRequest) (*domain.TokenResult, error) {
	client, perr := authenticateClient(ctx, p.clients, req)
	if perr != nil {
		return nil, perr
	}
	if !client.HasGrantType(authzdomain.GrantTypePersonalAccessToken) {
		return nil, domain.UnauthorizedClient("personal_access_token grant is not enabled for this client")
	}

	scopes, perr := resolveScopes(client, req.Scopes)
	if perr != nil {
		return nil, perr
	}

	if p.verifier == nil {
		p.log.Error("personal access token grant requested without an assertion secret configured")
		return nil, domain.ServerError("assertion verification unavailable")
	}
	if req.Assertion == "" {
		return nil, domain.InvalidRequest("missing assertion")
	}
	payload, err := p.verifier.Verify(req.Assertion, p.clock.Now())
	if err != nil {
		p.log.Warn("rejected personal access token assertion",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, domain.UnauthorizedClient("assertion could not be verified")
	}

	tokenCtx := signingdomain.TokenContext{
		Authority:     payload.TenantBaseURL,
		PrincipalID:   payload.PrincipalID,
		PrincipalName: payload.PrincipalName,
		ClientID:      client.ClientID,
	}

	access, err := p.tokens.SignAccessTokenWithTTL(ctx, tokenCtx, scopes, p.ttl)
	if err != nil {
		p.log.Error("failed to sign personal access token",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, domain.ServerError("could not issue access token")
	}

	now := p.clock.Now()
	expiresAt := access.ExpiresAt
	auth := &authzdomain.Authorization{
		ID:                   p.genID.Generate(),
		ClientID:             client.ClientID,
		PrincipalName:        payload.PrincipalName,
		GrantType:            authzdomain.GrantTypePersonalAccessToken,
		AccessTokenValue:     access.Value,
		AccessTokenType:      "Bearer",
		AccessTokenIssuedAt:  &access.IssuedAt,
		AccessTokenExpiresAt: &expiresAt,
		AccessTokenScopes:    scopes,
		AuthorizedScopes:     scopes,
		Attributes: map[string]any{
			attrPrincipalID: payload.PrincipalID,
			attrAuthority:   payload.TenantBaseURL,
			attrTenantID:    payload.TenantID,
		},
		ModifiedAt: now,
		CreatedAt:  now,
	}

	if err := p.store.Save(ctx, auth); err != nil {
		p.log.Error("failed to persist personal access token",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, domain.ServerError("could not persist authorization")
	}

	p.metrics.RecordGrantIssued(ctx, authzdomain.GrantTypePersonalAccessToken)
	p.metrics.RecordTokenIssued(ctx, "personal_access_token", "")
	p.region.RecordGrantIssued(authzdomain.GrantTypePersonalAccessToken)
	p.region.RecordTokenIssued("personal_access_token")
	p.audit.Publish(ctx, auditdomain.Event{
		Initiator:  payload.PrincipalName,
		Target:     client.ClientID,
		TenantID:   payload.TenantID,
		UserID:     payload.PrincipalID,
		UserName:   payload.PrincipalName,
		UserEmail:  payload.Email,
		ActionCode: auditdomain.ActionPersonalTokenIssue,
		Metadata:   map[string]any{"scopes": scopes},
	})

	return &domain.TokenResult{
		AccessToken: access.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(expiresAt.Sub(now).Seconds()),
		Scope:       scopes,
	}, nil
}
