package repository

import (
	"context"

	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() signingdomain.Repository {
	return &repo{}
}

func (r *repo) ListByType(ctx context.Context, db *gorm.DB, keyType signingdomain.KeyType) ([]signingdomain.KeyPair, error) {
	var pairs []signingdomain.KeyPair
	err := db.WithContext(ctx).
		Where("key_type = ?", keyType).
		Order("created_at ASC").
		Find(&pairs).Error
	if err != nil {
		return nil, err
	}
	return pairs, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, pair *signingdomain.KeyPair) error {
	return db.WithContext(ctx).Create(pair).Error
}
