package assertion

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrMalformed = errors.New("assertion_malformed")
	ErrSignature = errors.New("assertion_signature_invalid")
	ErrExpired   = errors.New("assertion_expired")
)

// MaxAge bounds how old a signed assertion may be when presented.
const MaxAge = 5 * time.Minute

// Payload identifies the tenant and principal a personal access token is
// minted for. The identity frontend signs it with the shared secret.
type Payload struct {
	TenantID      string    `json:"tenant_id"`
	TenantBaseURL string    `json:"tenant_base_url"`
	PrincipalID   string    `json:"principal_id"`
	PrincipalName string    `json:"principal_name"`
	Email         string    `json:"email,omitempty"`
	IssuedAt      time.Time `json:"issued_at"`
}

// Verifier checks the basic-signature assertion: base64url(payload JSON),
// a dot, base64url(HMAC-SHA256 over the encoded payload).
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Sign produces an assertion string for the payload. The server side only
// verifies; Sign exists for tests and the admin CLI.
func (v *Verifier) Sign(payload Payload) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	encoded := base64.RawURLEncoding.EncodeToString(raw)
	return encoded + "." + v.mac(encoded), nil
}

// Verify checks the signature and freshness and returns the payload.
func (v *Verifier) Verify(value string, now time.Time) (*Payload, error) {
	encoded, sig, ok := strings.Cut(strings.TrimSpace(value), ".")
	if !ok || encoded == "" || sig == "" {
		return nil, ErrMalformed
	}

	if !hmac.Equal([]byte(v.mac(encoded)), []byte(sig)) {
		return nil, ErrSignature
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrMalformed
	}

	var payload Payload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, ErrMalformed
	}
	if payload.TenantBaseURL == "" || payload.PrincipalID == "" || payload.PrincipalName == "" {
		return nil, ErrMalformed
	}
	if payload.IssuedAt.IsZero() || now.Sub(payload.IssuedAt) > MaxAge || payload.IssuedAt.After(now.Add(time.Minute)) {
		return nil, ErrExpired
	}

	return &payload, nil
}

func (v *Verifier) mac(encoded string) string {
	h := hmac.New(sha256.New, v.secret)
	h.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
