package token

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/region"
	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Codec *region.Codec
	Keys  signingdomain.Manager
	Clock clock.Clock
}

// Service mints authorization codes, refresh tokens and signed access
// tokens. It owns the region-prefix policy for opaque values; signing
// material comes from the key manager, never from crypto primitives here.
type Service struct {
	log        *zap.Logger
	codec      *region.Codec
	keys       signingdomain.Manager
	clock      clock.Clock
	gen        Generator
	accessTTL  time.Duration
	refreshTTL time.Duration
	codeTTL    time.Duration
}

func New(p Params) *Service {
	return &Service{
		log:        p.Log.Named("token.service"),
		codec:      p.Codec,
		keys:       p.Keys,
		clock:      p.Clock,
		gen:        NewGenerator(),
		accessTTL:  time.Duration(p.Cfg.AccessTokenTTL) * time.Second,
		refreshTTL: time.Duration(p.Cfg.RefreshTokenTTL) * time.Second,
		codeTTL:    time.Duration(p.Cfg.CodeTTL) * time.Second,
	}
}

// Issued is an opaque value with its validity window.
type Issued struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// GenerateCode mints an authorization code prefixed with the local region.
func (s *Service) GenerateCode(ctx context.Context) (*Issued, error) {
	raw, err := s.gen.NewToken()
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	return &Issued{
		Value:     s.codec.Apply(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(s.codeTTL),
	}, nil
}

// RefreshContext describes the mint path for a refresh token.
type RefreshContext struct {
	// ExchangedCode is the authorization code being exchanged, when the
	// refresh token is minted during code exchange. The refresh token
	// inherits that code's region so the token family stays routable to
	// wherever the code originated.
	ExchangedCode string
	// PublicClient suppresses refresh tokens on the code grant.
	PublicClient bool
	GrantType    string
}

// GenerateRefreshToken mints a refresh token, or returns nil when the
// client must not receive one.
func (s *Service) GenerateRefreshToken(ctx context.Context, rc RefreshContext) (*Issued, error) {
	if rc.PublicClient {
		return nil, nil
	}

	raw, err := s.gen.NewToken()
	if err != nil {
		return nil, err
	}

	value := ""
	if rc.ExchangedCode != "" {
		tag, _ := region.Extract(rc.ExchangedCode)
		value = s.codec.ApplyTag(tag, raw)
	} else {
		value = s.codec.Apply(raw)
	}

	now := s.clock.Now()
	return &Issued{
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.refreshTTL),
	}, nil
}

// SignedToken is a signed JWT with its validity window and scopes.
type SignedToken struct {
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Scopes    []string
}

// SignAccessToken produces the access token JWT. Access tokens carry no
// region prefix; issuer and audience identify the tenant, not the region.
func (s *Service) SignAccessToken(ctx context.Context, tokenCtx signingdomain.TokenContext, scopes []string) (*SignedToken, error) {
	return s.sign(ctx, tokenCtx, scopes, s.accessTTL, nil)
}

// SignAccessTokenWithTTL signs an access token with an explicit lifetime,
// for grants whose tokens outlive the standard access window.
func (s *Service) SignAccessTokenWithTTL(ctx context.Context, tokenCtx signingdomain.TokenContext, scopes []string, ttl time.Duration) (*SignedToken, error) {
	return s.sign(ctx, tokenCtx, scopes, ttl, nil)
}

// SignIDToken produces an OIDC id token carrying extra identity claims.
func (s *Service) SignIDToken(ctx context.Context, tokenCtx signingdomain.TokenContext, extra map[string]any) (*SignedToken, error) {
	return s.sign(ctx, tokenCtx, nil, s.accessTTL, extra)
}

func (s *Service) sign(ctx context.Context, tokenCtx signingdomain.TokenContext, scopes []string, ttl time.Duration, extra map[string]any) (*SignedToken, error) {
	decision, err := s.keys.SigningMaterial(ctx, tokenCtx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	expiresAt := now.Add(ttl)

	claims := jwt.MapClaims{
		"jti": ulid.Make().String(),
		"iat": now.Unix(),
		"exp": expiresAt.Unix(),
	}
	for k, v := range decision.Claims {
		claims[k] = v
	}
	if len(scopes) > 0 {
		claims["scope"] = scopes
	}
	for k, v := range extra {
		claims[k] = v
	}

	method := jwt.GetSigningMethod(decision.Key.Algorithm)
	tok := jwt.NewWithClaims(method, claims)
	for k, v := range decision.Headers {
		tok.Header[k] = v
	}

	signed, err := tok.SignedString(decision.Key.Signer)
	if err != nil {
		s.log.Error("failed to sign token",
			zap.String("kid", decision.Key.ID),
			zap.Error(err),
		)
		return nil, err
	}

	return &SignedToken{
		Value:     signed,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		Scopes:    scopes,
	}, nil
}

var Module = fx.Module("token.service",
	fx.Provide(New),
)
