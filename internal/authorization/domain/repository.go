package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrAuthorizationNotFound = errors.New("authorization_not_found")

type Repository interface {
	// Save is last-write-wins for the authorization-code family: an
	// existing row for the same (client_id, principal_name) is replaced.
	// Personal-access-token rows are always inserted fresh.
	Save(ctx context.Context, db *gorm.DB, auth *Authorization) error
	// FindByAnyToken matches value against state, code, access token and
	// refresh token in one query. Callers present an opaque string
	// without knowing which kind it is.
	FindByAnyToken(ctx context.Context, db *gorm.DB, value string) (*Authorization, error)
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Authorization, error)
	FindByClientAndPrincipal(ctx context.Context, db *gorm.DB, clientID, principalName string) (*Authorization, error)
	// MarkCodeUsed flips the single-use marker; it reports false when the
	// code was already consumed by a concurrent exchange.
	MarkCodeUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, usedAt time.Time) (bool, error)
	Invalidate(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	InvalidateByConsent(ctx context.Context, db *gorm.DB, consentID snowflake.ID) (int64, error)
	ListByPrincipal(ctx context.Context, db *gorm.DB, principalName string, limit int, modifiedAfter time.Time) ([]Authorization, error)
	DeleteByClientID(ctx context.Context, db *gorm.DB, clientID string) (int64, error)
	DeleteExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error)
}
