// Package keyalg abstracts the asymmetric key families the key manager can
// run on. The manager depends only on Algorithm; the active implementation
// is selected by configuration.
package keyalg

import (
	"fmt"

	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
)

// KeyMaterial is a freshly generated PEM-encoded key pair.
type KeyMaterial struct {
	PublicPEM  []byte
	PrivatePEM []byte
}

type Algorithm interface {
	Type() signingdomain.KeyType
	// Generate mints a new key pair.
	Generate() (KeyMaterial, error)
	// Build reconstructs a usable signing key from persisted PEM material.
	Build(id string, publicPEM, privatePEM []byte) (*signingdomain.SigningKey, error)
	// JWSAlgorithm names the JOSE signing algorithm for this key family.
	JWSAlgorithm() string
	// PublicJWK renders the public half in JOSE key format.
	PublicJWK(key *signingdomain.SigningKey) (signingdomain.JWK, error)
}

// ForType returns the Algorithm implementation for a key type.
func ForType(keyType signingdomain.KeyType) (Algorithm, error) {
	switch keyType {
	case signingdomain.KeyTypeEC:
		return ecAlgorithm{}, nil
	case signingdomain.KeyTypeRSA:
		return rsaAlgorithm{}, nil
	default:
		return nil, fmt.Errorf("unsupported key type %q", keyType)
	}
}
