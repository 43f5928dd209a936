package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, client *RegisteredClient) error
	FindByClientID(ctx context.Context, db *gorm.DB, clientID string) (*RegisteredClient, error)
	List(ctx context.Context, db *gorm.DB) ([]RegisteredClient, error)
	DeleteByClientID(ctx context.Context, db *gorm.DB, clientID string) error
}
