package policy

import (
	"context"
	"errors"
)

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidTenant = errors.New("invalid_tenant")
	ErrInvalidObject = errors.New("invalid_object")
	ErrInvalidAction = errors.New("invalid_action")
	ErrInvalidRole   = errors.New("invalid_role")
	ErrForbidden     = errors.New("forbidden")
)

// Objects guarded by the admin policy.
const (
	ObjectClient        = "client"
	ObjectSigningKey    = "signing_key"
	ObjectAuthorization = "authorization"
	ObjectConsent       = "consent"
	ObjectAuditLog      = "audit_log"
)

const (
	ActionClientView   = "client.view"
	ActionClientCreate = "client.create"
	ActionClientUpdate = "client.update"
	ActionClientDelete = "client.delete"

	ActionSigningKeyView = "signing_key.view"

	ActionAuthorizationView   = "authorization.view"
	ActionAuthorizationRevoke = "authorization.revoke"

	ActionConsentView   = "consent.view"
	ActionConsentRevoke = "consent.revoke"

	ActionAuditLogView = "audit_log.view"
)

const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
	RoleSystem = "system"
)

// Service answers whether an actor may perform an admin operation within
// a tenant. Actors are "system", or "principal:<name>"; role bindings are
// persisted through the casbin adapter.
type Service interface {
	Authorize(ctx context.Context, actor, tenantID, object, action string) error
	AssignRole(ctx context.Context, principalName, tenantID, role string) error
	RemoveRole(ctx context.Context, principalName, tenantID, role string) error
}
