package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"github.com/smallbiznis/meridian/internal/policy"
)

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/v1")
	admin.Use(IdentityContext())

	admin.GET("/clients", s.listClients)
	admin.POST("/clients", s.registerClient)
	admin.GET("/clients/:client_id", s.getClient)
	admin.DELETE("/clients/:client_id", s.deleteClient)

	admin.GET("/consents", s.listConsents)
	admin.DELETE("/consents", s.revokeConsent)

	admin.DELETE("/authorizations/:id", s.revokeAuthorization)

	admin.GET("/audit-events", s.listAuditEvents)
}

// requirePolicy resolves the caller and enforces the admin policy before
// a handler runs. It writes the response itself on denial.
func (s *Server) requirePolicy(c *gin.Context, object, action string) bool {
	actor, tenantID := adminActor(c)
	if actor == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return false
	}
	if err := s.policySvc.Authorize(c.Request.Context(), actor, tenantID, object, action); err != nil {
		writeAdminError(c, err)
		return false
	}
	return true
}

func (s *Server) listClients(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectClient, policy.ActionClientView) {
		return
	}
	clients, err := s.clients.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"clients": clients})
}

func (s *Server) registerClient(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectClient, policy.ActionClientCreate) {
		return
	}
	var req clientdomain.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	resp, err := s.clients.Register(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, clientdomain.ErrClientExists):
			c.JSON(http.StatusConflict, gin.H{"error": "client_exists"})
		case errors.Is(err, clientdomain.ErrInvalidDisplayName):
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_display_name"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (s *Server) getClient(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectClient, policy.ActionClientView) {
		return
	}
	resp, err := s.clients.Get(c.Request.Context(), c.Param("client_id"))
	if err != nil {
		if errors.Is(err, clientdomain.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) deleteClient(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectClient, policy.ActionClientDelete) {
		return
	}
	clientID := c.Param("client_id")
	if err := s.clients.Delete(c.Request.Context(), clientID); err != nil {
		if errors.Is(err, clientdomain.ErrClientNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "client_not_found"})
			return
		}
		s.log.Error("client delete failed", zap.String("client_id", clientID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listConsents(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectConsent, policy.ActionConsentView) {
		return
	}
	principal := strings.TrimSpace(c.Query("principal"))
	if principal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "principal is required"})
		return
	}
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}
	var modifiedAfter time.Time
	if raw := c.Query("modified_after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid modified_after"})
			return
		}
		modifiedAfter = parsed
	}

	page, err := s.consents.ListByPrincipal(c.Request.Context(), principal, limit, modifiedAfter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.JSON(http.StatusOK, page)
}

func (s *Server) revokeConsent(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectConsent, policy.ActionConsentRevoke) {
		return
	}
	clientID := strings.TrimSpace(c.Query("client_id"))
	principal := strings.TrimSpace(c.Query("principal"))
	if clientID == "" || principal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client_id and principal are required"})
		return
	}
	if err := s.consents.Revoke(c.Request.Context(), clientID, principal); err != nil {
		if errors.Is(err, consentdomain.ErrConsentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "consent_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) revokeAuthorization(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectAuthorization, policy.ActionAuthorizationRevoke) {
		return
	}
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	if err := s.store.Invalidate(c.Request.Context(), id); err != nil {
		if errors.Is(err, authzdomain.ErrAuthorizationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "authorization_not_found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listAuditEvents(c *gin.Context) {
	if !s.requirePolicy(c, policy.ObjectAuditLog, policy.ActionAuditLogView) {
		return
	}

	req := auditdomain.ListRequest{
		Target:     strings.TrimSpace(c.Query("target")),
		TenantID:   strings.TrimSpace(c.Query("tenant_id")),
		ActionCode: strings.TrimSpace(c.Query("action_code")),
	}
	req.PageToken = c.Query("page_token")
	if raw := c.Query("page_size"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		req.PageSize = parsed
	}
	if raw := c.Query("start_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_at"})
			return
		}
		req.StartAt = &parsed
	}
	if raw := c.Query("end_at"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end_at"})
			return
		}
		req.EndAt = &parsed
	}

	resp, err := s.auditSvc.List(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auditdomain.ErrInvalidPageToken),
			errors.Is(err, auditdomain.ErrInvalidTimeRange),
			errors.Is(err, auditdomain.ErrInvalidAction):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}
	c.JSON(http.StatusOK, resp)
}
