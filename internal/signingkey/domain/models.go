package domain

import (
	"crypto"
	"time"
)

// KeyType selects the asymmetric key family used for token signing.
type KeyType string

const (
	KeyTypeEC  KeyType = "EC"
	KeyTypeRSA KeyType = "RSA"
)

// ParseKeyType maps a configuration value to a KeyType, defaulting to EC.
func ParseKeyType(raw string) KeyType {
	switch raw {
	case "RSA", "rsa":
		return KeyTypeRSA
	default:
		return KeyTypeEC
	}
}

// KeyPair is the persisted form of a signing key. PrivateKey holds the
// PEM-encoded private material sealed by the secrets cipher; it is never
// written or logged in plaintext.
type KeyPair struct {
	ID         string    `gorm:"column:id;type:text;primaryKey"`
	Type       KeyType   `gorm:"column:key_type;type:text;not null;index"`
	PublicKey  string    `gorm:"column:public_key;type:text;not null"`
	PrivateKey string    `gorm:"column:private_key;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (KeyPair) TableName() string { return "signing_keys" }

// SigningKey is a reconstructed in-memory key, usable immediately for
// signing. The list of these built at startup is shared read-only across
// request handlers.
type SigningKey struct {
	ID        string
	Type      KeyType
	Signer    crypto.Signer
	Public    crypto.PublicKey
	Algorithm string
}

// JWK is a public key in JOSE key format for the discovery endpoint.
type JWK map[string]any
