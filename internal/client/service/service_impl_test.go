package service

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	clientrepo "github.com/smallbiznis/meridian/internal/client/repository"
	"github.com/smallbiznis/meridian/internal/secrets"
	"github.com/smallbiznis/meridian/pkg/db"
	"go.uber.org/zap"
)

type recordingRemoval struct {
	removed []string
	err     error
}

func (r *recordingRemoval) PublishClientRemoved(ctx context.Context, clientID string) error {
	if r.err != nil {
		return r.err
	}
	r.removed = append(r.removed, clientID)
	return nil
}

func newTestService(t *testing.T, removal clientdomain.RemovalPublisher) clientdomain.Service {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&clientdomain.RegisteredClient{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to build snowflake node: %v", err)
	}
	cipher, err := secrets.NewCipher("test-passphrase")
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}

	return New(Params{
		DB:      dbConn,
		Log:     zap.NewNop(),
		GenID:   node,
		Repo:    clientrepo.Provide(),
		Cipher:  cipher,
		Removal: removal,
	})
}

func TestRegisterIssuesSecretOnce(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	resp, err := svc.Register(ctx, clientdomain.RegisterRequest{
		DisplayName:  "Acme Dashboard",
		Scopes:       []string{"profile", "email"},
		GrantTypes:   []string{"authorization_code"},
		RedirectURIs: []string{"https://acme.example/cb"},
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if resp.ClientID != "acme-dashboard" {
		t.Fatalf("unexpected client_id %q", resp.ClientID)
	}
	if resp.ClientSecret == "" {
		t.Fatal("expected a generated secret for a confidential client")
	}

	// The plaintext secret never appears on the read surface.
	got, err := svc.Get(ctx, resp.ClientID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.DisplayName != "Acme Dashboard" {
		t.Fatalf("unexpected display name %q", got.DisplayName)
	}
}

func TestRegisterRejectsDuplicateName(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	if _, err := svc.Register(ctx, clientdomain.RegisterRequest{DisplayName: "web app"}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	_, err := svc.Register(ctx, clientdomain.RegisterRequest{DisplayName: "Web App"})
	if !errors.Is(err, clientdomain.ErrClientExists) {
		t.Fatalf("expected ErrClientExists, got %v", err)
	}
}

func TestRegisterRejectsBlankName(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.Register(context.Background(), clientdomain.RegisterRequest{DisplayName: "   "})
	if !errors.Is(err, clientdomain.ErrInvalidDisplayName) {
		t.Fatalf("expected ErrInvalidDisplayName, got %v", err)
	}
}

func TestAuthenticateVerifiesSecret(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	resp, err := svc.Register(ctx, clientdomain.RegisterRequest{DisplayName: "backend"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if _, err := svc.Authenticate(ctx, resp.ClientID, resp.ClientSecret); err != nil {
		t.Fatalf("authenticate with issued secret failed: %v", err)
	}
	if _, err := svc.Authenticate(ctx, resp.ClientID, "wrong"); !errors.Is(err, clientdomain.ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
}

func TestAuthenticatePublicClient(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	resp, err := svc.Register(ctx, clientdomain.RegisterRequest{DisplayName: "spa", Public: true})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if resp.ClientSecret != "" {
		t.Fatalf("public client got a secret: %q", resp.ClientSecret)
	}

	if _, err := svc.Authenticate(ctx, resp.ClientID, ""); err != nil {
		t.Fatalf("public client with empty secret failed: %v", err)
	}
	// A public client presenting a secret is a misconfigured caller.
	if _, err := svc.Authenticate(ctx, resp.ClientID, "anything"); !errors.Is(err, clientdomain.ErrInvalidSecret) {
		t.Fatalf("expected ErrInvalidSecret, got %v", err)
	}
}

func TestDeletePublishesRemoval(t *testing.T) {
	removal := &recordingRemoval{}
	svc := newTestService(t, removal)
	ctx := context.Background()

	resp, err := svc.Register(ctx, clientdomain.RegisterRequest{DisplayName: "stale client"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := svc.Delete(ctx, resp.ClientID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(removal.removed) != 1 || removal.removed[0] != resp.ClientID {
		t.Fatalf("expected removal event for %q, got %v", resp.ClientID, removal.removed)
	}

	if _, err := svc.Get(ctx, resp.ClientID); !errors.Is(err, clientdomain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound after delete, got %v", err)
	}
}

func TestDeleteToleratesPublishFailure(t *testing.T) {
	removal := &recordingRemoval{err: errors.New("queue down")}
	svc := newTestService(t, removal)
	ctx := context.Background()

	resp, err := svc.Register(ctx, clientdomain.RegisterRequest{DisplayName: "doomed"})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := svc.Delete(ctx, resp.ClientID); err != nil {
		t.Fatalf("delete should not surface publish failure, got %v", err)
	}
}

func TestDeleteUnknownClient(t *testing.T) {
	svc := newTestService(t, nil)

	err := svc.Delete(context.Background(), "no-such-client")
	if !errors.Is(err, clientdomain.ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}
