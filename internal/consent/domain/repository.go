package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrConsentNotFound = errors.New("consent_not_found")

type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, consent *Consent) error
	FindByClientAndPrincipal(ctx context.Context, db *gorm.DB, clientID, principalName string) (*Consent, error)
	// ListByPrincipal pages by modified_at, returning records strictly
	// newer than the cursor in ascending order.
	ListByPrincipal(ctx context.Context, db *gorm.DB, principalName string, limit int, modifiedAfter time.Time) ([]Consent, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	DeleteByClientID(ctx context.Context, db *gorm.DB, clientID string) (int64, error)
}
