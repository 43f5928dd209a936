package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	grantdomain "github.com/smallbiznis/meridian/internal/grant/domain"
	"github.com/smallbiznis/meridian/internal/policy"
)

// writeTokenError renders a protocol error the way RFC 6749 §5.2 shapes
// it. invalid_client carries 401 with a challenge so basic-auth clients
// retry with credentials.
func writeTokenError(c *gin.Context, err error) {
	perr := grantdomain.AsProtocolError(err)

	status := http.StatusBadRequest
	switch perr.Code {
	case grantdomain.CodeInvalidClient:
		status = http.StatusUnauthorized
		c.Header("WWW-Authenticate", `Basic realm="meridian"`)
	case grantdomain.CodeServerError:
		status = http.StatusInternalServerError
	}

	c.JSON(status, perr)
}

// writeAuthorizeError sends the error back to the client's redirect URI
// when one is safely known, per RFC 6749 §4.1.2.1. Without a trustworthy
// redirect target the error is rendered directly instead.
func writeAuthorizeError(c *gin.Context, redirectURI, state string, err error) {
	perr := grantdomain.AsProtocolError(err)

	// Never redirect on a client or redirect-target problem.
	if redirectURI == "" ||
		perr.Code == grantdomain.CodeInvalidClient ||
		perr.Code == grantdomain.CodeInvalidRequest {
		status := http.StatusBadRequest
		if perr.Code == grantdomain.CodeServerError {
			status = http.StatusInternalServerError
		}
		c.JSON(status, perr)
		return
	}

	location, buildErr := buildRedirect(redirectURI, map[string]string{
		"error":             perr.Code,
		"error_description": perr.Description,
		"state":             state,
	})
	if buildErr != nil {
		c.JSON(http.StatusBadRequest, perr)
		return
	}
	c.Redirect(http.StatusFound, location)
}

func writeAdminError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, policy.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, policy.ErrInvalidActor):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, policy.ErrInvalidTenant):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_tenant"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
