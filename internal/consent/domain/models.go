package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Consent records a principal's approval of a client's requested scopes.
type Consent struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ClientID      string       `gorm:"column:client_id;type:text;not null;uniqueIndex:ux_consents_client_principal,priority:1"`
	PrincipalName string       `gorm:"column:principal_name;type:text;not null;uniqueIndex:ux_consents_client_principal,priority:2"`
	Scopes        []string     `gorm:"column:scopes;type:jsonb;serializer:json"`
	CreatedAt     time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	ModifiedAt    time.Time    `gorm:"column:modified_at;not null;default:CURRENT_TIMESTAMP;index"`
}

// TableName sets the database table name.
func (Consent) TableName() string { return "consents" }
