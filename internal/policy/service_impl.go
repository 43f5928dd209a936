package policy

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
)

//go:embed model.conf
var modelText string

const actorSystem = "system"

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	Audit    auditdomain.Publisher `optional:"true"`
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	audit    auditdomain.Publisher
}

// NewEnforcer builds the synced enforcer backed by the casbin_rule table.
// Role bindings live in the database; the built-in role grants are seeded
// on every start and are idempotent.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	enforcer.BuildRoleLinks()
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("policy.service"),
		enforcer: p.Enforcer,
		audit:    p.Audit,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor, tenantID, object, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ErrInvalidTenant
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, err := resolveActor(actor)
	if err != nil {
		s.auditDecision(ctx, actor, tenantID, object, action, "denied")
		return err
	}

	domain := tenantDomain(tenantID)
	if subject == actorSystem {
		// The system actor carries the system role everywhere.
		if has, err := s.enforcer.HasGroupingPolicy(subject, roleName(RoleSystem), domain); err != nil {
			return err
		} else if !has {
			if _, err := s.enforcer.AddGroupingPolicy(subject, roleName(RoleSystem), domain); err != nil {
				return err
			}
		}
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDecision(ctx, actor, tenantID, object, action, "denied")
		return ErrForbidden
	}
	return nil
}

func (s *ServiceImpl) AssignRole(ctx context.Context, principalName, tenantID, role string) error {
	subject, domain, roleRef, err := bindingArgs(principalName, tenantID, role)
	if err != nil {
		return err
	}
	// One role per principal per tenant; reassignment replaces.
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 || rule[1] == roleRef {
			continue
		}
		params := make([]interface{}, 0, len(rule))
		for _, value := range rule {
			params = append(params, value)
		}
		if _, err := s.enforcer.RemoveGroupingPolicy(params...); err != nil {
			return err
		}
	}
	has, err := s.enforcer.HasGroupingPolicy(subject, roleRef, domain)
	if err != nil || has {
		return err
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleRef, domain)
	return err
}

func (s *ServiceImpl) RemoveRole(ctx context.Context, principalName, tenantID, role string) error {
	subject, domain, roleRef, err := bindingArgs(principalName, tenantID, role)
	if err != nil {
		return err
	}
	_, err = s.enforcer.RemoveGroupingPolicy(subject, roleRef, domain)
	return err
}

func (s *ServiceImpl) auditDecision(ctx context.Context, actor, tenantID, object, action, outcome string) {
	if s.audit == nil {
		return
	}
	s.audit.Publish(ctx, auditdomain.Event{
		Initiator:  actor,
		Target:     object,
		TenantID:   tenantID,
		ActionCode: "admin_access_" + outcome,
		Metadata: map[string]any{
			"object": object,
			"action": action,
		},
	})
}

func resolveActor(actor string) (string, error) {
	if actor == actorSystem {
		return actor, nil
	}
	if name, ok := strings.CutPrefix(actor, "principal:"); ok {
		if strings.TrimSpace(name) == "" {
			return "", ErrInvalidActor
		}
		return actor, nil
	}
	return "", ErrInvalidActor
}

func bindingArgs(principalName, tenantID, role string) (string, string, string, error) {
	principalName = strings.TrimSpace(principalName)
	if principalName == "" {
		return "", "", "", ErrInvalidActor
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return "", "", "", ErrInvalidTenant
	}
	switch role {
	case RoleViewer, RoleAdmin, RoleSystem:
	default:
		return "", "", "", ErrInvalidRole
	}
	return "principal:" + principalName, tenantDomain(tenantID), roleName(role), nil
}

func tenantDomain(tenantID string) string {
	return fmt.Sprintf("tenant:%s", tenantID)
}

func roleName(role string) string {
	return fmt.Sprintf("role:%s", role)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		{roleName(RoleViewer), "*", ObjectClient, ActionClientView},
		{roleName(RoleViewer), "*", ObjectAuthorization, ActionAuthorizationView},
		{roleName(RoleViewer), "*", ObjectConsent, ActionConsentView},

		{roleName(RoleAdmin), "*", ObjectClient, ActionClientView},
		{roleName(RoleAdmin), "*", ObjectClient, ActionClientCreate},
		{roleName(RoleAdmin), "*", ObjectClient, ActionClientUpdate},
		{roleName(RoleAdmin), "*", ObjectClient, ActionClientDelete},
		{roleName(RoleAdmin), "*", ObjectSigningKey, ActionSigningKeyView},
		{roleName(RoleAdmin), "*", ObjectAuthorization, ActionAuthorizationView},
		{roleName(RoleAdmin), "*", ObjectAuthorization, ActionAuthorizationRevoke},
		{roleName(RoleAdmin), "*", ObjectConsent, ActionConsentView},
		{roleName(RoleAdmin), "*", ObjectConsent, ActionConsentRevoke},
		{roleName(RoleAdmin), "*", ObjectAuditLog, ActionAuditLogView},

		{roleName(RoleSystem), "*", ObjectClient, "*"},
		{roleName(RoleSystem), "*", ObjectSigningKey, "*"},
		{roleName(RoleSystem), "*", ObjectAuthorization, "*"},
		{roleName(RoleSystem), "*", ObjectConsent, "*"},
		{roleName(RoleSystem), "*", ObjectAuditLog, "*"},
	}

	for _, policy := range policies {
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
