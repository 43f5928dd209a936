package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/meridian/pkg/db/pagination"
)

// Event is the grant-flow audit payload. The service enriches it with
// request metadata from the audit context before persisting.
type Event struct {
	Initiator  string
	Target     string
	TenantID   string
	UserID     string
	UserName   string
	UserEmail  string
	ActionCode string
	Metadata   map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Target     string
	TenantID   string
	ActionCode string
	StartAt    *time.Time
	EndAt      *time.Time
}

type ListResponse struct {
	pagination.PageInfo
	Events []AuditEvent `json:"events"`
}

var (
	ErrInvalidAction    = errors.New("invalid_action")
	ErrInvalidPageToken = errors.New("invalid_page_token")
	ErrInvalidTimeRange = errors.New("invalid_time_range")
)

// Publisher is the fire-and-forget surface the grant providers depend on.
// Publish never returns an error; a failed write is logged and dropped so
// an audit outage cannot fail a grant.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type Service interface {
	Publisher
	List(ctx context.Context, req ListRequest) (ListResponse, error)
}
