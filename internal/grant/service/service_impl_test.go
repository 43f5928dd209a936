package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	authzrepo "github.com/smallbiznis/meridian/internal/authorization/repository"
	authzservice "github.com/smallbiznis/meridian/internal/authorization/service"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/config"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"github.com/smallbiznis/meridian/internal/grant/assertion"
	"github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/internal/region"
	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"github.com/smallbiznis/meridian/internal/signingkey/keyalg"
	"github.com/smallbiznis/meridian/internal/token"
	"github.com/smallbiznis/meridian/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fakeClients struct {
	clients map[string]*clientdomain.RegisteredClient
	secrets map[string]string
}

func (f *fakeClients) Register(context.Context, clientdomain.RegisterRequest) (*clientdomain.SecretResponse, error) {
	return nil, nil
}
func (f *fakeClients) Get(context.Context, string) (*clientdomain.Response, error) { return nil, nil }
func (f *fakeClients) List(context.Context) ([]clientdomain.Response, error)       { return nil, nil }
func (f *fakeClients) Delete(context.Context, string) error                        { return nil }

func (f *fakeClients) Authenticate(_ context.Context, clientID, secret string) (*clientdomain.RegisteredClient, error) {
	client, ok := f.clients[clientID]
	if !ok {
		return nil, clientdomain.ErrClientNotFound
	}
	if client.Public && secret == "" {
		return client, nil
	}
	if f.secrets[clientID] != secret {
		return nil, clientdomain.ErrInvalidSecret
	}
	return client, nil
}

func (f *fakeClients) Resolve(_ context.Context, clientID string) (*clientdomain.RegisteredClient, error) {
	client, ok := f.clients[clientID]
	if !ok {
		return nil, clientdomain.ErrClientNotFound
	}
	return client, nil
}

type fakeConsents struct{}

func (fakeConsents) Grant(context.Context, string, string, []string) (*consentdomain.Consent, error) {
	return nil, nil
}
func (fakeConsents) Get(context.Context, string, string) (*consentdomain.Consent, error) {
	return nil, consentdomain.ErrConsentNotFound
}
func (fakeConsents) ListByPrincipal(context.Context, string, int, time.Time) (*consentdomain.Page, error) {
	return &consentdomain.Page{}, nil
}
func (fakeConsents) Revoke(context.Context, string, string) error { return nil }
func (fakeConsents) DeleteByClientID(context.Context, string) (int64, error) {
	return 0, nil
}

type recordingAudit struct {
	events []auditdomain.Event
}

func (r *recordingAudit) Publish(_ context.Context, event auditdomain.Event) {
	r.events = append(r.events, event)
}

// localResolver answers from the local store only; the cross-region path
// has its own tests in the gateway package.
type localResolver struct {
	store authzdomain.Store
}

func (r *localResolver) LookupByToken(ctx context.Context, value string) (*authzdomain.Authorization, error) {
	return r.store.FindByAnyToken(ctx, value)
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

type grantFixture struct {
	service  domain.Service
	code     *CodeProvider
	pat      *PATProvider
	store    authzdomain.Store
	audit    *recordingAudit
	clients  *fakeClients
	verifier *assertion.Verifier
	clock    *clock.FakeClock
	db       *gorm.DB
}

func newGrantFixture(t *testing.T) *grantFixture {
	t.Helper()

	gdb, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := gdb.AutoMigrate(&authzdomain.Authorization{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to create snowflake node: %v", err)
	}

	store := authzservice.New(authzservice.Params{
		DB:   gdb,
		Log:  zap.NewNop(),
		Repo: authzrepo.Provide(),
	})

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

	fc := clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	tokens := token.New(token.Params{
		Cfg: config.Config{
			AccessTokenTTL:  3600,
			RefreshTokenTTL: 30 * 24 * 3600,
			CodeTTL:         300,
		},
		Log:   zap.NewNop(),
		Codec: region.NewCodec(config.Config{Region: "eu", MultiRegion: true}),
		Keys:  &staticKeyManager{key: key},
		Clock: fc,
	})

	clients := &fakeClients{
		clients: map[string]*clientdomain.RegisteredClient{
			"acme": {
				ID:           node.Generate(),
				ClientID:     "acme",
				Scopes:       []string{"openid", "profile", "orders"},
				GrantTypes:   []string{"authorization_code", "refresh_token", "personal_access_token"},
				RedirectURIs: []string{"https://acme.example.com/callback"},
			},
			"kiosk": {
				ID:           node.Generate(),
				ClientID:     "kiosk",
				Scopes:       []string{"profile"},
				GrantTypes:   []string{"authorization_code"},
				RedirectURIs: []string{"https://kiosk.example.com/cb"},
				Public:       true,
			},
		},
		secrets: map[string]string{"acme": "s3cret"},
	}

	audit := &recordingAudit{}
	resolver := &localResolver{store: store}

	code := NewCodeProvider(CodeProviderParams{
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		Clients:  clients,
		Store:    store,
		Resolver: resolver,
		Tokens:   tokens,
		Consents: fakeConsents{},
		Audit:    audit,
	})
	refresh := NewRefreshProvider(RefreshProviderParams{
		Log:      zap.NewNop(),
		Clock:    fc,
		Clients:  clients,
		Store:    store,
		Resolver: resolver,
		Tokens:   tokens,
		Audit:    audit,
	})
	verifier := assertion.NewVerifier("shared-secret")
	pat := NewPATProvider(PATProviderParams{
		Cfg:      config.Config{PersonalAccessTokenTTL: 90 * 24 * 3600},
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    fc,
		Clients:  clients,
		Store:    store,
		Tokens:   tokens,
		Verifier: verifier,
		Audit:    audit,
	})

	svc := New(Params{
		Log:     zap.NewNop(),
		Code:    code,
		Refresh: refresh,
		PAT:     pat,
	})

	return &grantFixture{
		service:  svc,
		code:     code,
		pat:      pat,
		store:    store,
		audit:    audit,
		clients:  clients,
		verifier: verifier,
		clock:    fc,
		db:       gdb,
	}
}

func protocolCode(t *testing.T, err error) string {
	t.Helper()
	var perr *domain.Error
	if !errors.As(err, &perr) {
		t.Fatalf("want protocol error, got %v", err)
	}
	return perr.Code
}

func TestAuthorizeDefaultsToRegisteredScopes(t *testing.T) {
	f := newGrantFixture(t)

	result, err := f.service.Authorize(context.Background(), domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
		State:         "xyz",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	want := []string{"openid", "profile", "orders"}
	if len(result.Scopes) != len(want) {
		t.Fatalf("got scopes %v, want %v", result.Scopes, want)
	}
	for i, scope := range want {
		if result.Scopes[i] != scope {
			t.Fatalf("got scopes %v, want %v", result.Scopes, want)
		}
	}

	auth, err := f.store.FindByAnyToken(context.Background(), result.Code)
	if err != nil {
		t.Fatalf("FindByAnyToken: %v", err)
	}
	if len(auth.AuthorizedScopes) != len(want) {
		t.Fatalf("persisted scopes %v, want %v", auth.AuthorizedScopes, want)
	}
}

func TestAuthorizeRejectsUnregisteredScope(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Authorize(context.Background(), domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
		Scopes:        []string{"admin"},
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidScope {
		t.Fatalf("want invalid_scope, got %s", code)
	}
}

func TestAuthorizeRejectsUnregisteredRedirect(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Authorize(context.Background(), domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
		RedirectURI:   "https://evil.example.com/cb",
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidRequest {
		t.Fatalf("want invalid_request, got %s", code)
	}
}

func TestAuthorizeRejectsUnknownClient(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Authorize(context.Background(), domain.AuthorizeRequest{
		ClientID:      "ghost",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidClient {
		t.Fatalf("want invalid_client, got %s", code)
	}
}

func TestExchangeIssuesTokensAndConsumesCode(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	authorized, err := f.service.Authorize(ctx, domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
		Scopes:        []string{"openid", "profile"},
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	result, err := f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Code:         authorized.Code,
	})
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("want access token")
	}
	if result.RefreshToken == "" {
		t.Fatal("confidential client must receive a refresh token")
	}
	if result.IDToken == "" {
		t.Fatal("openid scope must produce an id token")
	}
	if result.TokenType != "Bearer" {
		t.Fatalf("got token type %q", result.TokenType)
	}

	// Refresh token inherits the code's region tag.
	if got, ok := region.Extract(result.RefreshToken); !ok || got != "eu" {
		t.Fatalf("refresh token region = %q, ok=%v", got, ok)
	}

	// The code is single use.
	_, err = f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Code:         authorized.Code,
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidGrant {
		t.Fatalf("second exchange: want invalid_grant, got %s", code)
	}
}

func TestExchangeRejectsForeignClient(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	authorized, err := f.service.Authorize(ctx, domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	_, err = f.service.Token(ctx, domain.TokenRequest{
		GrantType: "authorization_code",
		ClientID:  "kiosk",
		Code:      authorized.Code,
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidGrant {
		t.Fatalf("want invalid_grant, got %s", code)
	}
}

func TestExchangePublicClientGetsNoRefreshToken(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	authorized, err := f.service.Authorize(ctx, domain.AuthorizeRequest{
		ClientID:      "kiosk",
		PrincipalID:   "p-2",
		PrincipalName: "bob",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	result, err := f.service.Token(ctx, domain.TokenRequest{
		GrantType: "authorization_code",
		ClientID:  "kiosk",
		Code:      authorized.Code,
	})
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if result.RefreshToken != "" {
		t.Fatal("public client must not receive a refresh token")
	}
}

func TestExchangeRejectsExpiredCode(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	authorized, err := f.service.Authorize(ctx, domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	f.clock.Advance(6 * time.Minute)

	_, err = f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Code:         authorized.Code,
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidGrant {
		t.Fatalf("want invalid_grant, got %s", code)
	}
}

func TestRefreshGrantRotatesTokens(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	authorized, err := f.service.Authorize(ctx, domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	exchanged, err := f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Code:         authorized.Code,
	})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}

	refreshed, err := f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		RefreshToken: exchanged.RefreshToken,
	})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if refreshed.AccessToken == "" || refreshed.AccessToken == exchanged.AccessToken {
		t.Fatal("refresh must mint a new access token")
	}
	if refreshed.RefreshToken == "" || refreshed.RefreshToken == exchanged.RefreshToken {
		t.Fatal("refresh must rotate the refresh token")
	}

	// The old refresh token no longer resolves.
	_, err = f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "refresh_token",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		RefreshToken: exchanged.RefreshToken,
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidGrant {
		t.Fatalf("stale refresh: want invalid_grant, got %s", code)
	}
}

func TestTokenRejectsUnsupportedGrantType(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Token(context.Background(), domain.TokenRequest{
		GrantType: "client_credentials",
		ClientID:  "acme",
	})
	if code := protocolCode(t, err); code != domain.CodeUnsupportedGrantType {
		t.Fatalf("want unsupported_grant_type, got %s", code)
	}
}

func TestTokenRejectsBadClientSecret(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Token(context.Background(), domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "wrong",
		Code:         "whatever",
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidClient {
		t.Fatalf("want invalid_client, got %s", code)
	}
}

func signedAssertion(t *testing.T, f *grantFixture, principal string) string {
	t.Helper()
	signed, err := f.verifier.Sign(assertion.Payload{
		TenantID:      "tenant-1",
		TenantBaseURL: "https://acme.example.com",
		PrincipalID:   "p-9",
		PrincipalName: principal,
		Email:         principal + "@example.com",
		IssuedAt:      f.clock.Now(),
	})
	if err != nil {
		t.Fatalf("Sign assertion: %v", err)
	}
	return signed
}

func TestPersonalAccessTokensAreIndependentRecords(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	var results []*domain.TokenResult
	for i := 0; i < 2; i++ {
		result, err := f.service.Token(ctx, domain.TokenRequest{
			GrantType:    "personal_access_token",
			ClientID:     "acme",
			ClientSecret: "s3cret",
			Assertion:    signedAssertion(t, f, "alice"),
			Scopes:       []string{"orders"},
		})
		if err != nil {
			t.Fatalf("PAT grant %d: %v", i, err)
		}
		results = append(results, result)
	}

	var count int64
	if err := f.db.Model(&authzdomain.Authorization{}).
		Where("grant_type = ?", authzdomain.GrantTypePersonalAccessToken).
		Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("want 2 independent PAT records, got %d", count)
	}

	first, err := f.store.FindByAnyToken(ctx, results[0].AccessToken)
	if err != nil {
		t.Fatalf("find first PAT: %v", err)
	}
	if err := f.store.Invalidate(ctx, first.ID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	second, err := f.store.FindByAnyToken(ctx, results[1].AccessToken)
	if err != nil {
		t.Fatalf("find second PAT: %v", err)
	}
	if !second.Active() {
		t.Fatal("invalidating one PAT must not affect the other")
	}
}

func TestPersonalAccessTokenEmitsAuditEvent(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Token(context.Background(), domain.TokenRequest{
		GrantType:    "personal_access_token",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Assertion:    signedAssertion(t, f, "alice"),
	})
	if err != nil {
		t.Fatalf("PAT grant: %v", err)
	}

	var found bool
	for _, event := range f.audit.events {
		if event.ActionCode == auditdomain.ActionPersonalTokenIssue {
			found = true
			if event.Target != "acme" || event.UserName != "alice" || event.TenantID != "tenant-1" {
				t.Fatalf("audit event fields: %+v", event)
			}
		}
	}
	if !found {
		t.Fatal("want a personal_access_token_issued audit event")
	}
}

func TestPersonalAccessTokenRejectsBadAssertion(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Token(context.Background(), domain.TokenRequest{
		GrantType:    "personal_access_token",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Assertion:    "bogus.assertion",
	})
	if code := protocolCode(t, err); code != domain.CodeUnauthorizedClient {
		t.Fatalf("want unauthorized_client, got %s", code)
	}
}

func TestPersonalAccessTokenRejectsDisabledGrant(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Token(context.Background(), domain.TokenRequest{
		GrantType: "personal_access_token",
		ClientID:  "kiosk",
		Assertion: signedAssertion(t, f, "bob"),
	})
	if code := protocolCode(t, err); code != domain.CodeUnauthorizedClient {
		t.Fatalf("want unauthorized_client, got %s", code)
	}
}

func TestPersonalAccessTokenRejectsUnregisteredScope(t *testing.T) {
	f := newGrantFixture(t)

	_, err := f.service.Token(context.Background(), domain.TokenRequest{
		GrantType:    "personal_access_token",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Assertion:    signedAssertion(t, f, "alice"),
		Scopes:       []string{"admin"},
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidScope {
		t.Fatalf("want invalid_scope, got %s", code)
	}
}

// adoptingResolver mimics the gateway contract for cross-region lookups:
// a record fetched from a foreign region is persisted into the local store
// before it is returned, so follow-up writes have a row to update.
type adoptingResolver struct {
	store  authzdomain.Store
	remote map[string]*authzdomain.Authorization
}

func (r *adoptingResolver) LookupByToken(ctx context.Context, value string) (*authzdomain.Authorization, error) {
	if auth, err := r.store.FindByAnyToken(ctx, value); err == nil {
		return auth, nil
	}
	auth, ok := r.remote[value]
	if !ok {
		return nil, authzdomain.ErrAuthorizationNotFound
	}
	if err := r.store.Save(ctx, auth); err != nil {
		return nil, err
	}
	return auth, nil
}

func TestExchangeRedeemsForeignCode(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	issued := f.clock.Now()
	expires := issued.Add(5 * time.Minute)
	foreign := &authzdomain.Authorization{
		ID:               f.code.genID.Generate(),
		ClientID:         "acme",
		PrincipalName:    "alice",
		GrantType:        authzdomain.GrantTypeAuthorizationCode,
		CodeValue:        "us:foreign-code",
		CodeIssuedAt:     &issued,
		CodeExpiresAt:    &expires,
		AuthorizedScopes: []string{"profile"},
	}
	f.code.resolver = &adoptingResolver{
		store:  f.store,
		remote: map[string]*authzdomain.Authorization{"us:foreign-code": foreign},
	}

	result, err := f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Code:         "us:foreign-code",
	})
	if err != nil {
		t.Fatalf("foreign code exchange: %v", err)
	}
	if result.AccessToken == "" {
		t.Fatal("want access token from foreign code")
	}

	// The refresh token stays homed in the code's region.
	if got, ok := region.Extract(result.RefreshToken); !ok || got != "us" {
		t.Fatalf("refresh token region = %q, ok=%v", got, ok)
	}

	// Single use holds across regions once the record is adopted.
	_, err = f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Code:         "us:foreign-code",
	})
	if code := protocolCode(t, err); code != domain.CodeInvalidGrant {
		t.Fatalf("second foreign exchange: want invalid_grant, got %s", code)
	}
}

func TestExchangePersistsCodeConsumption(t *testing.T) {
	f := newGrantFixture(t)
	ctx := context.Background()

	authorized, err := f.service.Authorize(ctx, domain.AuthorizeRequest{
		ClientID:      "acme",
		PrincipalID:   "p-1",
		PrincipalName: "alice",
		Scopes:        []string{"profile"},
	})
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}

	if _, err := f.service.Token(ctx, domain.TokenRequest{
		GrantType:    "authorization_code",
		ClientID:     "acme",
		ClientSecret: "s3cret",
		Code:         authorized.Code,
	}); err != nil {
		t.Fatalf("Token: %v", err)
	}

	// The post-exchange save must not null out the consumption marker.
	persisted, err := f.store.FindByClientAndPrincipal(ctx, "acme", "alice")
	if err != nil {
		t.Fatalf("FindByClientAndPrincipal: %v", err)
	}
	if persisted.CodeUsedAt == nil {
		t.Fatal("code_used_at was lost on save; the code would be reusable")
	}
}
