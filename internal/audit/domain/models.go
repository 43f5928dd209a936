package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AuditEvent is the persisted outbox row for one grant-related action.
type AuditEvent struct {
	ID         snowflake.ID      `gorm:"column:id;type:bigint;primaryKey" json:"id"`
	Initiator  string            `gorm:"column:initiator;type:text;not null" json:"initiator"`
	Target     string            `gorm:"column:target;type:text;not null;index" json:"target"`
	IPAddress  *string           `gorm:"column:ip_address;type:text" json:"ip_address,omitempty"`
	Browser    *string           `gorm:"column:browser;type:text" json:"browser,omitempty"`
	Platform   *string           `gorm:"column:platform;type:text" json:"platform,omitempty"`
	TenantID   string            `gorm:"column:tenant_id;type:text;index" json:"tenant_id"`
	UserID     string            `gorm:"column:user_id;type:text" json:"user_id"`
	UserName   string            `gorm:"column:user_name;type:text" json:"user_name"`
	UserEmail  string            `gorm:"column:user_email;type:text" json:"user_email"`
	Page       string            `gorm:"column:page;type:text" json:"page"`
	ActionCode string            `gorm:"column:action_code;type:text;not null;index" json:"action_code"`
	Metadata   datatypes.JSONMap `gorm:"column:metadata;type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"column:created_at;not null" json:"created_at"`
}

func (AuditEvent) TableName() string {
	return "audit_events"
}

// Action codes stamped on grant-flow events.
const (
	ActionCodeIssued         = "authorization_code_issued"
	ActionCodeExchanged      = "authorization_code_exchanged"
	ActionTokenRefreshed     = "token_refreshed"
	ActionPersonalTokenIssue = "personal_access_token_issued"
	ActionClientRemoved      = "client_removed"
)
