package tenantctx

import "context"

type keyType string

const (
	tenantAuthorityKey keyType = "tenant_authority"
	principalKey       keyType = "principal"
)

// TenantAuthority identifies the tenant a request is issued under. BaseURL
// is the issuer authority stamped into token claims.
type TenantAuthority struct {
	ID      string
	BaseURL string
}

// Principal is the authenticated end user behind a grant request.
type Principal struct {
	ID       string
	Username string
	Email    string
}

func WithTenantAuthority(ctx context.Context, authority TenantAuthority) context.Context {
	return context.WithValue(ctx, tenantAuthorityKey, authority)
}

func Authority(ctx context.Context) (TenantAuthority, bool) {
	authority, ok := ctx.Value(tenantAuthorityKey).(TenantAuthority)
	return authority, ok
}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey).(Principal)
	return principal, ok
}
