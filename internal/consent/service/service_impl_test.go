package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	authzrepo "github.com/smallbiznis/meridian/internal/authorization/repository"
	authzservice "github.com/smallbiznis/meridian/internal/authorization/service"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	consentrepo "github.com/smallbiznis/meridian/internal/consent/repository"
	"github.com/smallbiznis/meridian/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (consentdomain.Service, authzdomain.Store, *gorm.DB, *snowflake.Node) {
	t.Helper()

	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&consentdomain.Consent{}, &authzdomain.Authorization{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to build snowflake node: %v", err)
	}

	store := authzservice.New(authzservice.Params{
		DB:   dbConn,
		Log:  zap.NewNop(),
		Repo: authzrepo.Provide(),
	})
	svc := New(Params{
		DB:             dbConn,
		Log:            zap.NewNop(),
		GenID:          node,
		Repo:           consentrepo.Provide(),
		Authorizations: store,
	})
	return svc, store, dbConn, node
}

func TestRevokeCascadesToAuthorizations(t *testing.T) {
	svc, store, _, node := newTestService(t)
	ctx := context.Background()

	consent, err := svc.Grant(ctx, "web-app", "alice", []string{"profile"})
	if err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	auth := &authzdomain.Authorization{
		ID:            node.Generate(),
		ClientID:      "web-app",
		PrincipalName: "alice",
		GrantType:     authzdomain.GrantTypeAuthorizationCode,
		ConsentID:     &consent.ID,
	}
	if err := store.Save(ctx, auth); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if err := svc.Revoke(ctx, "web-app", "alice"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}

	if _, err := svc.Get(ctx, "web-app", "alice"); err != consentdomain.ErrConsentNotFound {
		t.Fatalf("expected consent gone, got %v", err)
	}

	got, err := store.FindByID(ctx, auth.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !got.Invalidated {
		t.Fatal("expected dependent authorization to be invalidated")
	}
}

func TestGrantRefreshesExistingConsent(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Grant(ctx, "web-app", "alice", []string{"profile"})
	if err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	second, err := svc.Grant(ctx, "web-app", "alice", []string{"profile", "email"})
	if err != nil {
		t.Fatalf("second grant failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatal("expected the same consent row to be refreshed")
	}
	if len(second.Scopes) != 2 {
		t.Fatalf("expected updated scopes, got %v", second.Scopes)
	}
}

func TestListByPrincipalPagesByModifiedCursor(t *testing.T) {
	svc, _, _, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Grant(ctx, "app-one", "alice", []string{"profile"}); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if _, err := svc.Grant(ctx, "app-two", "alice", []string{"email"}); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	page, err := svc.ListByPrincipal(ctx, "alice", 10, time.Time{})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Consents) != 2 {
		t.Fatalf("expected 2 consents, got %d", len(page.Consents))
	}
	if page.LastModifiedCursor.IsZero() {
		t.Fatal("expected advanced cursor")
	}

	next, err := svc.ListByPrincipal(ctx, "alice", 10, page.LastModifiedCursor)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(next.Consents) != 0 {
		t.Fatalf("expected no consents past the cursor, got %d", len(next.Consents))
	}
}
