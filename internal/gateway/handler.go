package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const defaultConsentPageSize = 50

// Handler is the serving side of the cross-region gateway. Peers call
// these endpoints; they only ever answer from the local store, so a chain
// of regions cannot forward a lookup in circles.
type Handler struct {
	store    authzdomain.Store
	consents consentdomain.Service
	log      *zap.Logger
}

type HandlerParams struct {
	fx.In

	Store    authzdomain.Store
	Consents consentdomain.Service
	Log      *zap.Logger
}

func NewHandler(p HandlerParams) *Handler {
	return &Handler{
		store:    p.Store,
		consents: p.Consents,
		log:      p.Log.Named("gateway.handler"),
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	internal := r.Group("/internal/gateway")
	internal.POST("/authorizations:retrieve", h.retrieveAuthorization)
	internal.GET("/consents", h.listConsents)
}

func (h *Handler) retrieveAuthorization(c *gin.Context) {
	var req retrieveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	auth, err := h.store.FindByAnyToken(c.Request.Context(), req.Token)
	if errors.Is(err, authzdomain.ErrAuthorizationNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrRemoteAbsent.Error()})
		return
	}
	if err != nil {
		h.log.Error("gateway authorization lookup failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, retrieveResponse{Authorization: auth})
}

func (h *Handler) listConsents(c *gin.Context) {
	principal := c.Query("principal")
	if principal == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	limit := defaultConsentPageSize
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		limit = parsed
	}

	var modifiedAfter time.Time
	if raw := c.Query("modified_after"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
		modifiedAfter = parsed
	}

	page, err := h.consents.ListByPrincipal(c.Request.Context(), principal, limit, modifiedAfter)
	if err != nil {
		h.log.Error("gateway consent listing failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, page)
}
