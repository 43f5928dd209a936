package domain

import (
	"context"

	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
)

// TokenResolver locates an authorization by any of its token values,
// crossing regions when the value carries a foreign tag.
type TokenResolver interface {
	LookupByToken(ctx context.Context, token string) (*authzdomain.Authorization, error)
}

// AuthorizeRequest is a validated authorization request. The principal has
// already been authenticated by the surrounding identity layer; this core
// turns the request into an issued code.
type AuthorizeRequest struct {
	ClientID      string
	RedirectURI   string
	State         string
	Scopes        []string
	PrincipalID   string
	PrincipalName string
}

type AuthorizeResult struct {
	Code        string
	State       string
	RedirectURI string
	Scopes      []string
}

// TokenRequest covers every grant on the token endpoint. Which fields are
// read depends on GrantType.
type TokenRequest struct {
	GrantType    string
	ClientID     string
	ClientSecret string

	// authorization_code
	Code        string
	RedirectURI string

	// refresh_token
	RefreshToken string

	// personal_access_token
	Assertion string
	Scopes    []string
}

type TokenResult struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	RefreshToken string   `json:"refresh_token,omitempty"`
	IDToken      string   `json:"id_token,omitempty"`
	Scope        []string `json:"scope,omitempty"`
}

// Provider implements one grant type's state machine on the token endpoint.
type Provider interface {
	GrantType() string
	Grant(ctx context.Context, req TokenRequest) (*TokenResult, error)
}

// Service is the grant orchestrator: Authorize issues codes, Token
// dispatches to the provider registered for the request's grant type.
type Service interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
	Token(ctx context.Context, req TokenRequest) (*TokenResult, error)
}
