package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
)

func (s *Server) registerWellKnownRoutes() {
	wellKnown := s.engine.Group("/.well-known")
	wellKnown.GET("/jwks.json", s.jwks)
	wellKnown.GET("/openid-configuration", s.openidConfiguration)
}

func (s *Server) jwks(c *gin.Context) {
	keys, err := s.keys.SelectKeys(c.Request.Context(), signingdomain.Selector{
		KeyID: strings.TrimSpace(c.Query("kid")),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"keys": keys})
}

func (s *Server) openidConfiguration(c *gin.Context) {
	issuer := requestBaseURL(c)
	c.JSON(http.StatusOK, gin.H{
		"issuer":                                issuer,
		"authorization_endpoint":                issuer + "/oauth2/authorize",
		"token_endpoint":                        issuer + "/oauth2/token",
		"jwks_uri":                              issuer + "/.well-known/jwks.json",
		"response_types_supported":              []string{"code"},
		"grant_types_supported":                 []string{"authorization_code", "refresh_token", "personal_access_token"},
		"subject_types_supported":               []string{"public"},
		"id_token_signing_alg_values_supported": []string{"ES256", "RS256"},
		"token_endpoint_auth_methods_supported": []string{"client_secret_basic", "client_secret_post"},
		"scopes_supported":                      []string{"openid", "profile", "email"},
	})
}

func requestBaseURL(c *gin.Context) string {
	scheme := "https"
	if c.Request.TLS == nil && !strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "http"
	}
	return scheme + "://" + c.Request.Host
}
