package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Grant type identifiers as they appear on the wire.
const (
	GrantTypeAuthorizationCode   = "authorization_code"
	GrantTypeRefreshToken        = "refresh_token"
	GrantTypePersonalAccessToken = "personal_access_token"
)

// Authorization tracks one principal/client pair's progress through a grant:
// state value, issued code, access token, refresh token and id token, each
// present only once the flow reaches them. The authorization-code family
// keeps exactly one row per (client_id, principal_name); personal access
// tokens create independent rows and leave the composite index alone.
//
// Token values are stored raw. Values carry 96 bytes of entropy, so an
// accidental collision between two stored values is not a practical concern.
type Authorization struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	ClientID      string       `gorm:"column:client_id;type:text;not null;index:ix_authorizations_client_principal,priority:1"`
	PrincipalName string       `gorm:"column:principal_name;type:text;not null;index:ix_authorizations_client_principal,priority:2"`
	GrantType     string       `gorm:"column:grant_type;type:text;not null"`

	State string `gorm:"column:state;type:text;index"`

	CodeValue     string     `gorm:"column:code_value;type:text;index"`
	CodeIssuedAt  *time.Time `gorm:"column:code_issued_at"`
	CodeExpiresAt *time.Time `gorm:"column:code_expires_at"`
	CodeUsedAt    *time.Time `gorm:"column:code_used_at"`

	AccessTokenValue     string     `gorm:"column:access_token_value;type:text;index"`
	AccessTokenType      string     `gorm:"column:access_token_type;type:text"`
	AccessTokenIssuedAt  *time.Time `gorm:"column:access_token_issued_at"`
	AccessTokenExpiresAt *time.Time `gorm:"column:access_token_expires_at"`
	AccessTokenScopes    []string   `gorm:"column:access_token_scopes;type:jsonb;serializer:json"`

	RefreshTokenValue     string     `gorm:"column:refresh_token_value;type:text;index"`
	RefreshTokenIssuedAt  *time.Time `gorm:"column:refresh_token_issued_at"`
	RefreshTokenExpiresAt *time.Time `gorm:"column:refresh_token_expires_at"`

	IDTokenValue     string            `gorm:"column:id_token_value;type:text"`
	IDTokenClaims    datatypes.JSONMap `gorm:"column:id_token_claims;type:jsonb"`
	IDTokenIssuedAt  *time.Time        `gorm:"column:id_token_issued_at"`
	IDTokenExpiresAt *time.Time        `gorm:"column:id_token_expires_at"`

	AuthorizedScopes []string          `gorm:"column:authorized_scopes;type:jsonb;serializer:json"`
	Attributes       datatypes.JSONMap `gorm:"column:attributes;type:jsonb"`

	ConsentID *snowflake.ID `gorm:"column:consent_id;index"`

	Invalidated bool      `gorm:"column:invalidated;not null;default:false"`
	ModifiedAt  time.Time `gorm:"column:modified_at;not null;default:CURRENT_TIMESTAMP"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Authorization) TableName() string { return "authorizations" }

// Active reports whether the record can still issue tokens. Once
// invalidated, a fresh Authorization must be created.
func (a *Authorization) Active() bool {
	return !a.Invalidated
}
