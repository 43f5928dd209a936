package domain

import (
	"context"
	"errors"
)

var (
	ErrNoUsableKey   = errors.New("no_usable_signing_key")
	ErrInvalidKeyPEM = errors.New("invalid_key_material")
)

// Selector filters the published verification keys.
type Selector struct {
	KeyID string
}

// TokenContext carries the identities stamped into signed token claims.
type TokenContext struct {
	Authority     string
	PrincipalID   string
	PrincipalName string
	ClientID      string
}

// SigningDecision is the key plus the claims and headers chosen for one
// token issuance.
type SigningDecision struct {
	Key     *SigningKey
	Claims  map[string]any
	Headers map[string]any
}

// Manager owns the in-memory signing key snapshot.
type Manager interface {
	// SelectKeys returns JWKS-shaped public material for keys of the
	// active type matching the selector.
	SelectKeys(ctx context.Context, sel Selector) ([]JWK, error)
	// SigningMaterial picks the signing key and stamps issuer, audience,
	// subject and client claims for the token context.
	SigningMaterial(ctx context.Context, tokenCtx TokenContext) (*SigningDecision, error)
}
