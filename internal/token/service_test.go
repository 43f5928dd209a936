package token

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/region"
	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"github.com/smallbiznis/meridian/internal/signingkey/keyalg"
	"go.uber.org/zap"
)

type staticTokenGen struct {
	values []string
	idx    int
}

func (g *staticTokenGen) NewToken() (string, error) {
	if g.idx >= len(g.values) {
		return "opaque-token", nil
	}
	val := g.values[g.idx]
	g.idx++
	return val, nil
}

type staticKeyManager struct {
	key *signingdomain.SigningKey
}

func (m *staticKeyManager) SelectKeys(context.Context, signingdomain.Selector) ([]signingdomain.JWK, error) {
	return nil, nil
}

func (m *staticKeyManager) SigningMaterial(_ context.Context, tokenCtx signingdomain.TokenContext) (*signingdomain.SigningDecision, error) {
	if m.key == nil {
		return nil, signingdomain.ErrNoUsableKey
	}
	return &signingdomain.SigningDecision{
		Key: m.key,
		Claims: map[string]any{
			"sub": tokenCtx.PrincipalID,
			"iss": tokenCtx.Authority + "/oauth2",
			"aud": []string{tokenCtx.Authority},
		},
		Headers: map[string]any{
			"kid": m.key.ID,
			"alg": m.key.Algorithm,
		},
	}, nil
}

func newECKey(t *testing.T) *signingdomain.SigningKey {
	t.Helper()
	alg, err := keyalg.ForType(signingdomain.KeyTypeEC)
	if err != nil {
		t.Fatalf("failed to resolve algorithm: %v", err)
	}
	material, err := alg.Generate()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	key, err := alg.Build("test-kid", material.PublicPEM, material.PrivatePEM)
	if err != nil {
		t.Fatalf("failed to build key: %v", err)
	}
	return key
}

func newTestService(localRegion string, multiRegion bool, key *signingdomain.SigningKey) *Service {
	codec := region.NewCodec(config.Config{Region: localRegion, MultiRegion: multiRegion})
	return &Service{
		log:        zap.NewNop(),
		codec:      codec,
		keys:       &staticKeyManager{key: key},
		clock:      clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		gen:        &staticTokenGen{},
		accessTTL:  time.Hour,
		refreshTTL: 30 * 24 * time.Hour,
		codeTTL:    5 * time.Minute,
	}
}

func TestGenerateCodeCarriesLocalRegion(t *testing.T) {
	svc := newTestService("eu", true, nil)

	code, err := svc.GenerateCode(context.Background())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.HasPrefix(code.Value, "eu:") {
		t.Fatalf("expected eu: prefix, got %q", code.Value)
	}
	if code.ExpiresAt.Sub(code.IssuedAt) != 5*time.Minute {
		t.Fatalf("unexpected code window %v", code.ExpiresAt.Sub(code.IssuedAt))
	}
}

func TestGenerateCodeSingleRegionHasNoPrefix(t *testing.T) {
	svc := newTestService("eu", false, nil)

	code, err := svc.GenerateCode(context.Background())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if tag, ok := region.Extract(code.Value); ok {
		t.Fatalf("expected no region tag, got %q", tag)
	}
}

func TestRefreshTokenInheritsCodeRegion(t *testing.T) {
	// Code minted in eu, exchanged on a us node: the refresh token must
	// stay routable to eu.
	svc := newTestService("us", true, nil)

	refresh, err := svc.GenerateRefreshToken(context.Background(), RefreshContext{
		ExchangedCode: "eu:some-code-value",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if refresh == nil {
		t.Fatal("expected a refresh token")
	}
	if !strings.HasPrefix(refresh.Value, "eu:") {
		t.Fatalf("expected inherited eu: prefix, got %q", refresh.Value)
	}
}

func TestRefreshTokenFallsBackToLocalRegion(t *testing.T) {
	svc := newTestService("us", true, nil)

	refresh, err := svc.GenerateRefreshToken(context.Background(), RefreshContext{})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.HasPrefix(refresh.Value, "us:") {
		t.Fatalf("expected local us: prefix, got %q", refresh.Value)
	}

	unprefixedCode, err := svc.GenerateRefreshToken(context.Background(), RefreshContext{
		ExchangedCode: "bare-code-without-region",
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.HasPrefix(unprefixedCode.Value, "us:") {
		t.Fatalf("expected local fallback for unprefixed code, got %q", unprefixedCode.Value)
	}
}

func TestPublicClientGetsNoRefreshToken(t *testing.T) {
	svc := newTestService("eu", true, nil)

	refresh, err := svc.GenerateRefreshToken(context.Background(), RefreshContext{
		ExchangedCode: "eu:some-code-value",
		PublicClient:  true,
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if refresh != nil {
		t.Fatalf("expected no refresh token for public client, got %q", refresh.Value)
	}
}

func TestSignAccessTokenHasNoRegionPrefixAndVerifies(t *testing.T) {
	key := newECKey(t)
	svc := newTestService("eu", true, key)

	signed, err := svc.SignAccessToken(context.Background(), signingdomain.TokenContext{
		Authority:   "https://acme.meridian.dev",
		PrincipalID: "alice",
	}, []string{"profile"})
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}
	if tag, ok := region.Extract(signed.Value); ok {
		t.Fatalf("access token must not carry a region tag, got %q", tag)
	}

	// Claim validation has to run against the clock the token was minted
	// with, not the wall clock.
	parsed, err := jwt.Parse(signed.Value, func(tok *jwt.Token) (any, error) {
		return key.Public, nil
	}, jwt.WithValidMethods([]string{"ES256"}),
		jwt.WithAudience("https://acme.meridian.dev"),
		jwt.WithTimeFunc(func() time.Time {
			return time.Date(2026, 1, 1, 0, 30, 0, 0, time.UTC)
		}))
	if err != nil {
		t.Fatalf("verification failed: %v", err)
	}
	claims := parsed.Claims.(jwt.MapClaims)
	if claims["sub"] != "alice" {
		t.Fatalf("unexpected sub %v", claims["sub"])
	}
	if claims["iss"] != "https://acme.meridian.dev/oauth2" {
		t.Fatalf("unexpected iss %v", claims["iss"])
	}
	if parsed.Header["kid"] != "test-kid" {
		t.Fatalf("unexpected kid %v", parsed.Header["kid"])
	}
}

func TestSignAccessTokenWithoutKeysFails(t *testing.T) {
	svc := newTestService("eu", true, nil)

	_, err := svc.SignAccessToken(context.Background(), signingdomain.TokenContext{
		Authority:   "https://acme.meridian.dev",
		PrincipalID: "alice",
	}, nil)
	if err != signingdomain.ErrNoUsableKey {
		t.Fatalf("expected ErrNoUsableKey, got %v", err)
	}
}

func TestOpaqueTokenLength(t *testing.T) {
	gen := NewGenerator()
	value, err := gen.NewToken()
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	// 96 bytes base64url without padding encodes to 128 characters.
	if len(value) != 128 {
		t.Fatalf("expected 128 chars, got %d", len(value))
	}
}
