package service

import (
	"context"
	"errors"

	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"github.com/smallbiznis/meridian/internal/grant/domain"
	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"github.com/smallbiznis/meridian/pkg/tenantctx"
)

// resolveScopes validates the requested scopes against the client's
// registered set. An empty request grants the full registered set rather
// than failing or granting nothing.
func resolveScopes(client *clientdomain.RegisteredClient, requested []string) ([]string, *domain.Error) {
	if len(requested) == 0 {
		scopes := make([]string, len(client.Scopes))
		copy(scopes, client.Scopes)
		return scopes, nil
	}

	scopes := make([]string, 0, len(requested))
	for _, scope := range requested {
		if scope == "" {
			continue
		}
		if !client.HasScope(scope) {
			return nil, domain.InvalidScope("scope " + scope + " is not registered for this client")
		}
		scopes = append(scopes, scope)
	}
	if len(scopes) == 0 {
		scopes = make([]string, len(client.Scopes))
		copy(scopes, client.Scopes)
	}
	return scopes, nil
}

func authenticateClient(ctx context.Context, clients clientdomain.Service, req domain.TokenRequest) (*clientdomain.RegisteredClient, *domain.Error) {
	if req.ClientID == "" {
		return nil, domain.InvalidRequest("missing client_id")
	}
	client, err := clients.Authenticate(ctx, req.ClientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, clientdomain.ErrClientNotFound) || errors.Is(err, clientdomain.ErrInvalidSecret) {
			return nil, domain.InvalidClient("client authentication failed")
		}
		return nil, domain.ServerError("client lookup failed")
	}
	return client, nil
}

// signingContext builds the claim inputs for token signing. The authority
// persisted on the authorization wins over the request context so exchange
// in a foreign region stamps the issuer the code was created under.
func signingContext(ctx context.Context, auth *authzdomain.Authorization, clientID string) signingdomain.TokenContext {
	tokenCtx := signingdomain.TokenContext{
		PrincipalName: auth.PrincipalName,
		ClientID:      clientID,
	}
	if id, ok := auth.Attributes[attrPrincipalID].(string); ok {
		tokenCtx.PrincipalID = id
	}
	if authority, ok := auth.Attributes[attrAuthority].(string); ok {
		tokenCtx.Authority = authority
	} else if authority, ok := tenantctx.Authority(ctx); ok {
		tokenCtx.Authority = authority.BaseURL
	}
	return tokenCtx
}

func idTokenClaims(ctx context.Context) map[string]any {
	principal, ok := tenantctx.PrincipalFrom(ctx)
	if !ok {
		return nil
	}
	claims := map[string]any{}
	if principal.Username != "" {
		claims["name"] = principal.Username
	}
	if principal.Email != "" {
		claims["email"] = principal.Email
	}
	if len(claims) == 0 {
		return nil
	}
	return claims
}

func hasScope(scopes []string, scope string) bool {
	for _, s := range scopes {
		if s == scope {
			return true
		}
	}
	return false
}
