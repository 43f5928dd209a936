package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"github.com/smallbiznis/meridian/internal/clock"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
	"github.com/smallbiznis/meridian/internal/regionmetrics"
	"github.com/smallbiznis/meridian/internal/token"
	"github.com/smallbiznis/meridian/pkg/tenantctx"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Attribute keys persisted on the authorization so code exchange can stamp
// claims even when it runs in a different region than the authorize step.
const (
	attrPrincipalID = "principal_id"
	attrAuthority   = "authority"
	attrTenantID    = "tenant_id"
)

const scopeOpenID = "openid"

type CodeProviderParams struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Clients  clientdomain.Service
	Store    authzdomain.Store
	Resolver domain.TokenResolver
	Tokens   *token.Service
	Consents consentdomain.Service
	Audit    auditdomain.Publisher
	Metrics  *metrics.Metrics        `optional:"true"`
	Region   *regionmetrics.Recorder `optional:"true"`
}

// CodeProvider drives the authorization-code grant: Authorize issues the
// code, Grant exchanges it for tokens.
type CodeProvider struct {
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	clients  clientdomain.Service
	store    authzdomain.Store
	resolver domain.TokenResolver
	tokens   *token.Service
	consents consentdomain.Service
	audit    auditdomain.Publisher
	metrics  *metrics.Metrics
	region   *regionmetrics.Recorder
}

func NewCodeProvider(p CodeProviderParams) *CodeProvider {
	return &CodeProvider{
		log:      p.Log.Named("grant.code"),
		genID:    p.GenID,
		clock:    p.Clock,
		clients:  p.Clients,
		store:    p.Store,
		resolver: p.Resolver,
		tokens:   p.Tokens,
		consents: p.Consents,
		audit:    p.Audit,
		metrics:  p.Metrics,
		region:   p.Region,
	}
}

func (p *CodeProvider) GrantType() string {
	return authzdomain.GrantTypeAuthorizationCode
}

// Authorize validates the request and issues an authorization code into
// the (client, principal) record.
func (p *CodeProvider) Authorize(ctx context.Context, req domain.AuthorizeRequest) (*domain.AuthorizeResult, error) {
	if req.PrincipalName == "" {
		return nil, domain.InvalidRequest("missing authenticated principal")
	}

	client, err := p.clients.Resolve(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, clientdomain.ErrClientNotFound) {
			return nil, domain.InvalidClient("unknown client")
		}
		return nil, domain.ServerError("client lookup failed")
	}
	if !client.HasGrantType(authzdomain.GrantTypeAuthorizationCode) {
		return nil, domain.UnauthorizedClient("authorization_code grant is not enabled for this client")
	}

	redirectURI := req.RedirectURI
	if redirectURI == "" {
		if len(client.RedirectURIs) == 0 {
			return nil, domain.InvalidRequest("client has no registered redirect uri")
		}
		redirectURI = client.RedirectURIs[0]
	} else if !client.HasRedirectURI(redirectURI) {
		return nil, domain.InvalidRequest("redirect_uri is not registered")
	}

	scopes, perr := resolveScopes(client, req.Scopes)
	if perr != nil {
		return nil, perr
	}

	code, err := p.tokens.GenerateCode(ctx)
	if err != nil {
		p.log.Error("failed to generate authorization code",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, domain.ServerError("could not issue authorization code")
	}

	attrs := map[string]any{attrPrincipalID: req.PrincipalID}
	if authority, ok := tenantctx.Authority(ctx); ok {
		attrs[attrAuthority] = authority.BaseURL
		attrs[attrTenantID] = authority.ID
	}

	auth := &authzdomain.Authorization{
		ID:               p.genID.Generate(),
		ClientID:         client.ClientID,
		PrincipalName:    req.PrincipalName,
		GrantType:        authzdomain.GrantTypeAuthorizationCode,
		State:            req.State,
		CodeValue:        code.Value,
		CodeIssuedAt:     &code.IssuedAt,
		CodeExpiresAt:    &code.ExpiresAt,
		AuthorizedScopes: scopes,
		Attributes:       attrs,
		ModifiedAt:       p.clock.Now(),
		CreatedAt:        p.clock.Now(),
	}

	if consent, err := p.consents.Get(ctx, client.ClientID, req.PrincipalName); err == nil {
		auth.ConsentID = &consent.ID
	}

	if err := p.store.Save(ctx, auth); err != nil {
		p.log.Error("failed to persist authorization",
			zap.String("client_id", client.ClientID),
			zap.String("principal", req.PrincipalName),
			zap.Error(err))
		return nil, domain.ServerError("could not persist authorization")
	}

	p.metrics.RecordGrantIssued(ctx, authzdomain.GrantTypeAuthorizationCode)
	p.region.RecordGrantIssued(authzdomain.GrantTypeAuthorizationCode)
	p.publishAudit(ctx, auth, auditdomain.ActionCodeIssued, map[string]any{
		"scopes": scopes,
	})

	return &domain.AuthorizeResult{
		Code:        code.Value,
		State:       req.State,
		RedirectURI: redirectURI,
		Scopes:      scopes,
	}, nil
}

// Grant exchanges an authorization code for an access token, an optional
// refresh token and, with the openid scope, an id token.
func (p *CodeProvider) Grant(ctx context.Context, req domain.TokenRequest) (*domain.TokenResult, error) {
	client, perr := authenticateClient(ctx, p.clients, req)
	if perr != nil {
		return nil, perr
	}
	if req.Code == "" {
		return nil, domain.InvalidRequest("missing code")
	}

	auth, err := p.resolver.LookupByToken(ctx, req.Code)
	if err != nil {
		if errors.Is(err, authzdomain.ErrAuthorizationNotFound) {
			return nil, domain.InvalidGrant("authorization code is not recognized")
		}
		p.log.Error("authorization lookup failed", zap.Error(err))
		return nil, domain.ServerError("authorization lookup failed")
	}

	now := p.clock.Now()
	switch {
	case auth.ClientID != client.ClientID:
		return nil, domain.InvalidGrant("authorization code was issued to another client")
	case !auth.Active():
		return nil, domain.InvalidGrant("authorization has been invalidated")
	case auth.CodeValue != req.Code:
		return nil, domain.InvalidGrant("authorization code is not recognized")
	case auth.CodeExpiresAt != nil && now.After(*auth.CodeExpiresAt):
		return nil, domain.InvalidGrant("authorization code has expired")
	}
	if req.RedirectURI != "" && !client.HasRedirectURI(req.RedirectURI) {
		return nil, domain.InvalidRequest("redirect_uri is not registered")
	}

	used, err := p.store.MarkCodeUsed(ctx, auth.ID, now)
	if err != nil {
		p.log.Error("failed to mark code used", zap.Error(err))
		return nil, domain.ServerError("authorization update failed")
	}
	if !used {
		return nil, domain.InvalidGrant("authorization code has already been used")
	}
	// Keep the in-memory record in step with the conditional update; the
	// final Save writes every column and would otherwise null it back out.
	auth.CodeUsedAt = &now

	tokenCtx := signingContext(ctx, auth, client.ClientID)

	access, err := p.tokens.SignAccessToken(ctx, tokenCtx, auth.AuthorizedScopes)
	if err != nil {
		p.log.Error("failed to sign access token",
			zap.String("client_id", client.ClientID),
			zap.Error(err))
		return nil, domain.ServerError("could not issue access token")
	}

	refresh, err := p.tokens.GenerateRefreshToken(ctx, token.RefreshContext{
		ExchangedCode: auth.CodeValue,
		PublicClient:  client.Public,
		GrantType:     authzdomain.GrantTypeAuthorizationCode,
	})
	if err != nil {
		p.log.Error("failed to generate refresh token", zap.Error(err))
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

	result := &domain.TokenResult{
		AccessToken: access.Value,
		TokenType:   "Bearer",
		ExpiresIn:   int64(access.ExpiresAt.Sub(access.IssuedAt).Seconds()),
		Scope:       auth.AuthorizedScopes,
	}
	if refresh != nil {
		result.RefreshToken = refresh.Value
	}

	if hasScope(auth.AuthorizedScopes, scopeOpenID) {
		idToken, err := p.tokens.SignIDToken(ctx, tokenCtx, idTokenClaims(ctx))
		if err != nil {
			p.log.Error("failed to sign id token", zap.Error(err))
			return nil, domain.ServerError("could not issue id token")
		}
		auth.IDTokenValue = idToken.Value
		auth.IDTokenIssuedAt = &idToken.IssuedAt
		auth.IDTokenExpiresAt = &idToken.ExpiresAt
		result.IDToken = idToken.Value
	}

	auth.ModifiedAt = now
	if err := p.store.Save(ctx, auth); err != nil {
		p.log.Error("failed to persist exchanged authorization", zap.Error(err))
		return nil, domain.ServerError("could not persist authorization")
	}

	p.metrics.RecordGrantIssued(ctx, authzdomain.GrantTypeAuthorizationCode)
	p.metrics.RecordTokenIssued(ctx, "access_token", "")
	p.region.RecordGrantIssued(authzdomain.GrantTypeAuthorizationCode)
	p.region.RecordTokenIssued("access_token")
	if refresh != nil {
		p.metrics.RecordTokenIssued(ctx, "refresh_token", "")
		p.region.RecordTokenIssued("refresh_token")
	}
	p.publishAudit(ctx, auth, auditdomain.ActionCodeExchanged, map[string]any{
		"scopes": auth.AuthorizedScopes,
	})

	return result, nil
}

func (p *CodeProvider) publishAudit(ctx context.Context, auth *authzdomain.Authorization, actionCode string, metadata map[string]any) {
	event := auditdomain.Event{
		Initiator:  auth.PrincipalName,
		Target:     auth.ClientID,
		UserName:   auth.PrincipalName,
		ActionCode: actionCode,
		Metadata:   metadata,
	}
	if id, ok := auth.Attributes[attrPrincipalID].(string); ok {
		event.UserID = id
	}
	if tenantID, ok := auth.Attributes[attrTenantID].(string); ok {
		event.TenantID = tenantID
	}
	if principal, ok := tenantctx.PrincipalFrom(ctx); ok {
		event.UserEmail = principal.Email
	}
	p.audit.Publish(ctx, event)
}
