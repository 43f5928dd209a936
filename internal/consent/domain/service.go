package domain

import (
	"context"
	"time"
)

// Page is one page of a principal's consents, cursor-bounded by modified
// time so the gateway's remote consent listing can resume where it left off.
type Page struct {
	Consents           []Consent `json:"consents"`
	LastModifiedCursor time.Time `json:"last_modified_cursor"`
}

type Service interface {
	// Grant records or refreshes the principal's approval of the
	// client's scopes.
	Grant(ctx context.Context, clientID, principalName string, scopes []string) (*Consent, error)
	Get(ctx context.Context, clientID, principalName string) (*Consent, error)
	ListByPrincipal(ctx context.Context, principalName string, limit int, modifiedAfter time.Time) (*Page, error)
	// Revoke deletes the consent and invalidates every authorization
	// that depends on it.
	Revoke(ctx context.Context, clientID, principalName string) error
	DeleteByClientID(ctx context.Context, clientID string) (int64, error)
}
