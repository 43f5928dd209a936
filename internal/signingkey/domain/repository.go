package domain

import (
	"context"

	"gorm.io/gorm"
)

type Repository interface {
	ListByType(ctx context.Context, db *gorm.DB, keyType KeyType) ([]KeyPair, error)
	Insert(ctx context.Context, db *gorm.DB, pair *KeyPair) error
}
