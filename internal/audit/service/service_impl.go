package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	"github.com/smallbiznis/meridian/internal/audit/masking"
	auditcontext "github.com/smallbiznis/meridian/internal/auditcontext"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func New(p Params) auditdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

// Publish writes the event to the outbox. Request metadata (ip, browser,
// platform, page) comes from the audit context populated by middleware.
// A failed write is logged, never surfaced to the grant flow.
func (s *Service) Publish(ctx context.Context, event auditdomain.Event) {
	actionCode := strings.TrimSpace(event.ActionCode)
	if actionCode == "" {
		s.log.Warn("audit event dropped, empty action code",
			zap.String("target", event.Target))
		return
	}

	entry := auditdomain.AuditEvent{
		ID:         s.genID.Generate(),
		Initiator:  strings.TrimSpace(event.Initiator),
		Target:     strings.TrimSpace(event.Target),
		TenantID:   strings.TrimSpace(event.TenantID),
		UserID:     strings.TrimSpace(event.UserID),
		UserName:   strings.TrimSpace(event.UserName),
		UserEmail:  strings.TrimSpace(event.UserEmail),
		Page:       auditcontext.PageFromContext(ctx),
		ActionCode: actionCode,
		CreatedAt:  s.clock.Now(),
	}
	if ip := auditcontext.IPAddressFromContext(ctx); ip != "" {
		entry.IPAddress = &ip
	}
	if browser := auditcontext.UserAgentFromContext(ctx); browser != "" {
		entry.Browser = &browser
	}
	if platform := auditcontext.PlatformFromContext(ctx); platform != "" {
		entry.Platform = &platform
	}
	if masked := masking.MaskJSON(event.Metadata); masked != nil {
		entry.Metadata = datatypes.JSONMap(masked)
	}

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("failed to write audit event",
			zap.String("action_code", actionCode),
			zap.String("target", entry.Target),
			zap.Error(err))
	}
}

func (s *Service) List(ctx context.Context, req auditdomain.ListRequest) (auditdomain.ListResponse, error) {
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListResponse{}, auditdomain.ErrInvalidTimeRange
	}

	var cursor *auditdomain.Cursor
	if strings.TrimSpace(req.PageToken) != "" {
		decoded, err := pagination.DecodeCursor(req.PageToken)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		createdAt, err := time.Parse(time.RFC3339, decoded.CreatedAt)
		if err != nil {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return auditdomain.ListResponse{}, auditdomain.ErrInvalidPageToken
		}
		cursor = &auditdomain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	items, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		Target:     req.Target,
		TenantID:   req.TenantID,
		ActionCode: req.ActionCode,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
		Cursor:     cursor,
		Limit:      int(pageSize),
	})
	if err != nil {
		return auditdomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *auditdomain.AuditEvent) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > int(pageSize) {
		items = items[:pageSize]
	}

	events := make([]auditdomain.AuditEvent, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	resp := auditdomain.ListResponse{Events: events}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}
	return resp, nil
}
