package assertion

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func testPayload(issuedAt time.Time) Payload {
	return Payload{
		TenantID:      "tenant-1",
		TenantBaseURL: "https://acme.example.com",
		PrincipalID:   "p-42",
		PrincipalName: "alice",
		Email:         "alice@example.com",
		IssuedAt:      issuedAt,
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	v := NewVerifier("shared-secret")

	signed, err := v.Sign(testPayload(now))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	payload, err := v.Verify(signed, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if payload.PrincipalName != "alice" || payload.TenantBaseURL != "https://acme.example.com" {
		t.Fatalf("payload mismatch: %+v", payload)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	now := time.Now().UTC()
	signed, err := NewVerifier("secret-a").Sign(testPayload(now))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := NewVerifier("secret-b").Verify(signed, now); !errors.Is(err, ErrSignature) {
		t.Fatalf("want ErrSignature, got %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	now := time.Now().UTC()
	v := NewVerifier("shared-secret")
	signed, err := v.Sign(testPayload(now))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	encoded, sig, _ := strings.Cut(signed, ".")
	tampered := encoded[:len(encoded)-2] + "xx." + sig
	if _, err := v.Verify(tampered, now); !errors.Is(err, ErrSignature) {
		t.Fatalf("want ErrSignature, got %v", err)
	}
}

func TestVerifyRejectsStaleAssertion(t *testing.T) {
	now := time.Now().UTC()
	v := NewVerifier("shared-secret")
	signed, err := v.Sign(testPayload(now.Add(-MaxAge - time.Second)))
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := v.Verify(signed, now); !errors.Is(err, ErrExpired) {
		t.Fatalf("want ErrExpired, got %v", err)
	}
}

func TestVerifyRejectsMalformedInput(t *testing.T) {
	v := NewVerifier("shared-secret")
	for _, value := range []string{"", "nodot", ".leading", "trailing."} {
		if _, err := v.Verify(value, time.Now()); !errors.Is(err, ErrMalformed) {
			t.Fatalf("value %q: want ErrMalformed, got %v", value, err)
		}
	}
}
