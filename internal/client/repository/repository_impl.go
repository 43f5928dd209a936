package repository

import (
	"context"
	"errors"

	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() clientdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, client *clientdomain.RegisteredClient) error {
	return db.WithContext(ctx).Create(client).Error
}

func (r *repo) FindByClientID(ctx context.Context, db *gorm.DB, clientID string) (*clientdomain.RegisteredClient, error) {
	var client clientdomain.RegisteredClient
	err := db.WithContext(ctx).Where("client_id = ?", clientID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, clientdomain.ErrClientNotFound
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB) ([]clientdomain.RegisteredClient, error) {
	var clients []clientdomain.RegisteredClient
	err := db.WithContext(ctx).Order("created_at DESC").Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) DeleteByClientID(ctx context.Context, db *gorm.DB, clientID string) error {
	tx := db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&clientdomain.RegisteredClient{})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return clientdomain.ErrClientNotFound
	}
	return nil
}
