package token

import (
	"crypto/rand"
	"encoding/base64"
)

// Opaque codes and refresh tokens carry 96 bytes of entropy, base64url
// encoded without padding. At that size the chance of two stored values
// colliding is negligible, which is what lets the store offer a single
// find-by-any-token lookup.
const opaqueBytes = 96

// Generator mints opaque token values. Tests substitute a deterministic one.
type Generator interface {
	NewToken() (string, error)
}

type randomGenerator struct{}

// NewGenerator returns the crypto/rand backed generator.
func NewGenerator() Generator {
	return randomGenerator{}
}

func (randomGenerator) NewToken() (string, error) {
	buf := make([]byte, opaqueBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
