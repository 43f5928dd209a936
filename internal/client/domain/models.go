package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// RegisteredClient is an OAuth2 client registration. SecretHash is the
// Argon2id hash used for authentication; SecretEncrypted is the cipher-sealed
// copy kept for recovery, never returned by the API after registration.
type RegisteredClient struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	ClientID        string       `gorm:"column:client_id;type:text;not null;uniqueIndex"`
	DisplayName     string       `gorm:"column:display_name;type:text;not null"`
	SecretHash      string       `gorm:"column:secret_hash;type:text;not null"`
	SecretEncrypted string       `gorm:"column:secret_encrypted;type:text;not null"`
	Scopes          []string     `gorm:"column:scopes;type:jsonb;serializer:json"`
	GrantTypes      []string     `gorm:"column:grant_types;type:jsonb;serializer:json"`
	RedirectURIs    []string     `gorm:"column:redirect_uris;type:jsonb;serializer:json"`
	Public          bool         `gorm:"column:public;not null;default:false"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (RegisteredClient) TableName() string { return "registered_clients" }

// HasGrantType reports whether the grant type is enabled for this client.
func (c *RegisteredClient) HasGrantType(grantType string) bool {
	for _, gt := range c.GrantTypes {
		if strings.EqualFold(gt, grantType) {
			return true
		}
	}
	return false
}

// HasScope reports whether scope is within the client's registered set.
func (c *RegisteredClient) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// HasRedirectURI reports whether uri exactly matches a registered redirect.
func (c *RegisteredClient) HasRedirectURI(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}
