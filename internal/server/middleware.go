package server

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/meridian/pkg/tenantctx"
)

// Headers stamped by the identity frontend that terminates end-user
// sessions in front of this service.
const (
	HeaderTenantID      = "X-Tenant-Id"
	HeaderTenantBaseURL = "X-Tenant-Base-Url"
	HeaderPrincipalID   = "X-Principal-Id"
	HeaderPrincipalName = "X-Principal-Username"
	HeaderPrincipalMail = "X-Principal-Email"
)

// IdentityContext copies the frontend identity headers into the request
// context. The headers are trusted; the deployment places this service
// behind the identity proxy, never on the public edge.
func IdentityContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		if tenantID := strings.TrimSpace(c.GetHeader(HeaderTenantID)); tenantID != "" {
			ctx = tenantctx.WithTenantAuthority(ctx, tenantctx.TenantAuthority{
				ID:      tenantID,
				BaseURL: strings.TrimSpace(c.GetHeader(HeaderTenantBaseURL)),
			})
		}
		if username := strings.TrimSpace(c.GetHeader(HeaderPrincipalName)); username != "" {
			ctx = tenantctx.WithPrincipal(ctx, tenantctx.Principal{
				ID:       strings.TrimSpace(c.GetHeader(HeaderPrincipalID)),
				Username: username,
				Email:    strings.TrimSpace(c.GetHeader(HeaderPrincipalMail)),
			})
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// adminActor names the caller for policy checks on admin routes.
func adminActor(c *gin.Context) (actor, tenantID string) {
	ctx := c.Request.Context()
	if principal, ok := tenantctx.PrincipalFrom(ctx); ok {
		actor = "principal:" + principal.Username
	}
	if authority, ok := tenantctx.Authority(ctx); ok {
		tenantID = authority.ID
	}
	return actor, tenantID
}
