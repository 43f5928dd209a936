package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	grantdomain "github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/pkg/tenantctx"
)

func (s *Server) registerOAuthRoutes() {
	oauth := s.engine.Group("/oauth2")
	oauth.Use(IdentityContext())

	oauth.GET("/authorize", s.authorize)
	oauth.POST("/authorize", s.authorize)
	oauth.POST("/token", s.limiter.Middleware(), s.token)
}

func (s *Server) authorize(c *gin.Context) {
	req := grantdomain.AuthorizeRequest{
		ClientID:    strings.TrimSpace(c.Query("client_id")),
		RedirectURI: strings.TrimSpace(c.Query("redirect_uri")),
		State:       c.Query("state"),
		Scopes:      splitScopes(c.Query("scope")),
	}
	if principal, ok := tenantctx.PrincipalFrom(c.Request.Context()); ok {
		req.PrincipalID = principal.ID
		req.PrincipalName = principal.Username
	}

	result, err := s.grants.Authorize(c.Request.Context(), req)
	if err != nil {
		s.log.Debug("authorize rejected",
			zap.String("client_id", req.ClientID),
			zap.Error(err))
		writeAuthorizeError(c, s.safeRedirectTarget(c, req), req.State, err)
		return
	}

	location, err := buildRedirect(result.RedirectURI, map[string]string{
		"code":  result.Code,
		"state": result.State,
	})
	if err != nil {
		writeAuthorizeError(c, "", req.State, grantdomain.ServerError("could not build redirect"))
		return
	}
	c.Redirect(http.StatusFound, location)
}

func (s *Server) token(c *gin.Context) {
	req := grantdomain.TokenRequest{
		GrantType:    c.PostForm("grant_type"),
		ClientID:     c.PostForm("client_id"),
		ClientSecret: c.PostForm("client_secret"),
		Code:         c.PostForm("code"),
		RedirectURI:  c.PostForm("redirect_uri"),
		RefreshToken: c.PostForm("refresh_token"),
		Assertion:    c.PostForm("assertion"),
		Scopes:       splitScopes(c.PostForm("scope")),
	}
	// RFC 6749 §2.3.1: client credentials may arrive as basic auth
	// instead of form fields.
	if req.ClientID == "" {
		if id, secret, ok := c.Request.BasicAuth(); ok {
			req.ClientID = id
			req.ClientSecret = secret
		}
	}

	result, err := s.grants.Token(c.Request.Context(), req)
	if err != nil {
		writeTokenError(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, result)
}

// safeRedirectTarget returns the request's redirect URI only when it is
// registered for the client, so errors never redirect to an attacker
// chosen address.
func (s *Server) safeRedirectTarget(c *gin.Context, req grantdomain.AuthorizeRequest) string {
	if req.ClientID == "" {
		return ""
	}
	client, err := s.clients.Resolve(c.Request.Context(), req.ClientID)
	if err != nil {
		return ""
	}
	if req.RedirectURI == "" {
		if len(client.RedirectURIs) > 0 {
			return client.RedirectURIs[0]
		}
		return ""
	}
	if client.HasRedirectURI(req.RedirectURI) {
		return req.RedirectURI
	}
	return ""
}

func buildRedirect(base string, params map[string]string) (string, error) {
	target, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	query := target.Query()
	for key, value := range params {
		if value == "" {
			continue
		}
		query.Set(key, value)
	}
	target.RawQuery = query.Encode()
	return target.String(), nil
}

func splitScopes(raw string) []string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
