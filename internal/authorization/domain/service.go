package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Store is the authorization persistence surface consumed by the grant
// providers and the cross-region gateway.
type Store interface {
	Save(ctx context.Context, auth *Authorization) error
	FindByAnyToken(ctx context.Context, value string) (*Authorization, error)
	FindByID(ctx context.Context, id snowflake.ID) (*Authorization, error)
	FindByClientAndPrincipal(ctx context.Context, clientID, principalName string) (*Authorization, error)
	MarkCodeUsed(ctx context.Context, id snowflake.ID, usedAt time.Time) (bool, error)
	Invalidate(ctx context.Context, id snowflake.ID) error
	InvalidateByConsent(ctx context.Context, consentID snowflake.ID) (int64, error)
	ListByPrincipal(ctx context.Context, principalName string, limit int, modifiedAfter time.Time) ([]Authorization, error)
	DeleteByClientID(ctx context.Context, clientID string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error)
}
