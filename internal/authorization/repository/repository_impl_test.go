package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	"github.com/smallbiznis/meridian/pkg/db"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dbConn, err := db.NewTest()
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	if err := dbConn.AutoMigrate(&authzdomain.Authorization{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return dbConn
}

func newNode(t *testing.T) *snowflake.Node {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("failed to build snowflake node: %v", err)
	}
	return node
}

func TestFindByAnyTokenMatchesEveryField(t *testing.T) {
	dbConn := newTestDB(t)
	repo := Provide()
	node := newNode(t)
	ctx := context.Background()

	auth := &authzdomain.Authorization{
		ID:                node.Generate(),
		ClientID:          "web-app",
		PrincipalName:     "alice",
		GrantType:         authzdomain.GrantTypeAuthorizationCode,
		State:             "state-value",
		CodeValue:         "eu:code-value",
		AccessTokenValue:  "access-value",
		RefreshTokenValue: "eu:refresh-value",
	}
	if err := repo.Save(ctx, dbConn, auth); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, value := range []string{"state-value", "eu:code-value", "access-value", "eu:refresh-value"} {
		found, err := repo.FindByAnyToken(ctx, dbConn, value)
		if err != nil {
			t.Fatalf("lookup by %q failed: %v", value, err)
		}
		if found.ID != auth.ID {
			t.Fatalf("lookup by %q returned wrong record", value)
		}
	}

	if _, err := repo.FindByAnyToken(ctx, dbConn, "unknown"); err != authzdomain.ErrAuthorizationNotFound {
		t.Fatalf("expected ErrAuthorizationNotFound, got %v", err)
	}
	if _, err := repo.FindByAnyToken(ctx, dbConn, ""); err != authzdomain.ErrAuthorizationNotFound {
		t.Fatalf("expected ErrAuthorizationNotFound for empty value, got %v", err)
	}
}

func TestSaveLastWriteWinsOnCompositeKey(t *testing.T) {
	dbConn := newTestDB(t)
	repo := Provide()
	node := newNode(t)
	ctx := context.Background()

	first := &authzdomain.Authorization{
		ID:            node.Generate(),
		ClientID:      "web-app",
		PrincipalName: "alice",
		GrantType:     authzdomain.GrantTypeAuthorizationCode,
		CodeValue:     "code-one",
	}
	if err := repo.Save(ctx, dbConn, first); err != nil {
		t.Fatalf("first save failed: %v", err)
	}

	second := &authzdomain.Authorization{
		ID:            node.Generate(),
		ClientID:      "web-app",
		PrincipalName: "alice",
		GrantType:     authzdomain.GrantTypeAuthorizationCode,
		CodeValue:     "code-two",
	}
	if err := repo.Save(ctx, dbConn, second); err != nil {
		t.Fatalf("second save failed: %v", err)
	}

	var count int64
	if err := dbConn.Model(&authzdomain.Authorization{}).
		Where("client_id = ? AND principal_name = ?", "web-app", "alice").
		Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row per composite key, got %d", count)
	}

	current, err := repo.FindByClientAndPrincipal(ctx, dbConn, "web-app", "alice")
	if err != nil {
		t.Fatalf("composite lookup failed: %v", err)
	}
	if current.ID != second.ID || current.CodeValue != "code-two" {
		t.Fatal("expected the later write to win")
	}
}

func TestPersonalAccessTokenRecordsAreIndependent(t *testing.T) {
	dbConn := newTestDB(t)
	repo := Provide()
	node := newNode(t)
	ctx := context.Background()

	first := &authzdomain.Authorization{
		ID:               node.Generate(),
		ClientID:         "cli-tool",
		PrincipalName:    "alice",
		GrantType:        authzdomain.GrantTypePersonalAccessToken,
		AccessTokenValue: "pat-one",
	}
	second := &authzdomain.Authorization{
		ID:               node.Generate(),
		ClientID:         "cli-tool",
		PrincipalName:    "alice",
		GrantType:        authzdomain.GrantTypePersonalAccessToken,
		AccessTokenValue: "pat-two",
	}
	if err := repo.Save(ctx, dbConn, first); err != nil {
		t.Fatalf("first PAT save failed: %v", err)
	}
	if err := repo.Save(ctx, dbConn, second); err != nil {
		t.Fatalf("second PAT save failed: %v", err)
	}
	if first.ID == second.ID {
		t.Fatal("expected distinct record ids")
	}

	if err := repo.Invalidate(ctx, dbConn, first.ID); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	one, err := repo.FindByID(ctx, dbConn, first.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	two, err := repo.FindByID(ctx, dbConn, second.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if !one.Invalidated {
		t.Fatal("expected first PAT to be invalidated")
	}
	if two.Invalidated {
		t.Fatal("expected second PAT to be untouched")
	}
}

func TestMarkCodeUsedIsSingleUse(t *testing.T) {
	dbConn := newTestDB(t)
	repo := Provide()
	node := newNode(t)
	ctx := context.Background()

	auth := &authzdomain.Authorization{
		ID:            node.Generate(),
		ClientID:      "web-app",
		PrincipalName: "alice",
		GrantType:     authzdomain.GrantTypeAuthorizationCode,
		CodeValue:     "code-single-use",
	}
	if err := repo.Save(ctx, dbConn, auth); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := repo.MarkCodeUsed(ctx, dbConn, auth.ID, now)
	if err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if !first {
		t.Fatal("expected first mark to succeed")
	}

	again, err := repo.MarkCodeUsed(ctx, dbConn, auth.ID, now.Add(time.Second))
	if err != nil {
		t.Fatalf("second mark errored: %v", err)
	}
	if again {
		t.Fatal("expected second mark to report already used")
	}
}

func TestInvalidateByConsentCascades(t *testing.T) {
	dbConn := newTestDB(t)
	repo := Provide()
	node := newNode(t)
	ctx := context.Background()

	consentID := node.Generate()
	linked := &authzdomain.Authorization{
		ID:            node.Generate(),
		ClientID:      "web-app",
		PrincipalName: "alice",
		GrantType:     authzdomain.GrantTypeAuthorizationCode,
		ConsentID:     &consentID,
	}
	unrelated := &authzdomain.Authorization{
		ID:            node.Generate(),
		ClientID:      "web-app",
		PrincipalName: "bob",
		GrantType:     authzdomain.GrantTypeAuthorizationCode,
	}
	if err := repo.Save(ctx, dbConn, linked); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := repo.Save(ctx, dbConn, unrelated); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	count, err := repo.InvalidateByConsent(ctx, dbConn, consentID)
	if err != nil {
		t.Fatalf("cascade failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 invalidated record, got %d", count)
	}

	got, err := repo.FindByID(ctx, dbConn, unrelated.ID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if got.Invalidated {
		t.Fatal("expected unrelated record to survive the cascade")
	}
}

func TestDeleteByClientIDRemovesAllRecords(t *testing.T) {
	dbConn := newTestDB(t)
	repo := Provide()
	node := newNode(t)
	ctx := context.Background()

	for _, principal := range []string{"alice", "bob"} {
		auth := &authzdomain.Authorization{
			ID:            node.Generate(),
			ClientID:      "doomed-app",
			PrincipalName: principal,
			GrantType:     authzdomain.GrantTypeAuthorizationCode,
		}
		if err := repo.Save(ctx, dbConn, auth); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	count, err := repo.DeleteByClientID(ctx, dbConn, "doomed-app")
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 deleted rows, got %d", count)
	}
}
