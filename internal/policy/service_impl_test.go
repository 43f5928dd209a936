package policy

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/smallbiznis/meridian/pkg/db"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	gdb, err := db.NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	enforcer, err := NewEnforcer(gdb)
	if err != nil {
		t.Fatalf("build enforcer: %v", err)
	}
	return NewService(Params{Log: zap.NewNop(), Enforcer: enforcer})
}

func TestSystemActorHasFullAccess(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, action := range []string{ActionClientCreate, ActionClientDelete, ActionSigningKeyView, ActionAuditLogView} {
		object := objectFor(action)
		if err := svc.Authorize(ctx, "system", "1001", object, action); err != nil {
			t.Fatalf("system denied %s on %s: %v", action, object, err)
		}
	}
}

func TestRoleBindingScopesToTenant(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.AssignRole(ctx, "maria", "1001", RoleAdmin); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if err := svc.Authorize(ctx, "principal:maria", "1001", ObjectClient, ActionClientDelete); err != nil {
		t.Fatalf("admin denied in bound tenant: %v", err)
	}
	if err := svc.Authorize(ctx, "principal:maria", "2002", ObjectClient, ActionClientDelete); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden outside bound tenant", err)
	}
}

func TestViewerCannotMutate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.AssignRole(ctx, "sam", "1001", RoleViewer); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}

	if err := svc.Authorize(ctx, "principal:sam", "1001", ObjectClient, ActionClientView); err != nil {
		t.Fatalf("viewer denied view: %v", err)
	}
	if err := svc.Authorize(ctx, "principal:sam", "1001", ObjectClient, ActionClientDelete); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden for viewer delete", err)
	}
}

func TestReassignReplacesRole(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.AssignRole(ctx, "maria", "1001", RoleAdmin); err != nil {
		t.Fatalf("AssignRole admin: %v", err)
	}
	if err := svc.AssignRole(ctx, "maria", "1001", RoleViewer); err != nil {
		t.Fatalf("AssignRole viewer: %v", err)
	}

	if err := svc.Authorize(ctx, "principal:maria", "1001", ObjectClient, ActionClientDelete); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden after downgrade", err)
	}
	if err := svc.Authorize(ctx, "principal:maria", "1001", ObjectClient, ActionClientView); err != nil {
		t.Fatalf("viewer view after downgrade: %v", err)
	}
}

func TestRemoveRoleRevokesAccess(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if err := svc.AssignRole(ctx, "maria", "1001", RoleAdmin); err != nil {
		t.Fatalf("AssignRole: %v", err)
	}
	if err := svc.RemoveRole(ctx, "maria", "1001", RoleAdmin); err != nil {
		t.Fatalf("RemoveRole: %v", err)
	}
	if err := svc.Authorize(ctx, "principal:maria", "1001", ObjectClient, ActionClientView); !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden after removal", err)
	}
}

func TestAuthorizeValidatesInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	cases := []struct {
		name    string
		actor   string
		tenant  string
		object  string
		action  string
		wantErr error
	}{
		{"empty actor", "", "1001", ObjectClient, ActionClientView, ErrInvalidActor},
		{"unknown actor scheme", "service:foo", "1001", ObjectClient, ActionClientView, ErrInvalidActor},
		{"empty principal name", "principal: ", "1001", ObjectClient, ActionClientView, ErrInvalidActor},
		{"empty tenant", "system", "", ObjectClient, ActionClientView, ErrInvalidTenant},
		{"empty object", "system", "1001", "", ActionClientView, ErrInvalidObject},
		{"empty action", "system", "1001", ObjectClient, "", ErrInvalidAction},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.Authorize(ctx, tc.actor, tc.tenant, tc.object, tc.action); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAssignRoleRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)

	if err := svc.AssignRole(context.Background(), "maria", "1001", "superuser"); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func objectFor(action string) string {
	switch action {
	case ActionSigningKeyView:
		return ObjectSigningKey
	case ActionAuditLogView:
		return ObjectAuditLog
	default:
		return ObjectClient
	}
}
