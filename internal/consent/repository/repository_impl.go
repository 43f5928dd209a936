package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() consentdomain.Repository {
	return &repo{}
}

func (r *repo) Upsert(ctx context.Context, db *gorm.DB, consent *consentdomain.Consent) error {
	consent.ModifiedAt = time.Now().UTC()

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing consentdomain.Consent
		err := tx.Where("client_id = ? AND principal_name = ?", consent.ClientID, consent.PrincipalName).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(consent).Error
		}
		if err != nil {
			return err
		}
		consent.ID = existing.ID
		consent.CreatedAt = existing.CreatedAt
		return tx.Save(consent).Error
	})
}

func (r *repo) FindByClientAndPrincipal(ctx context.Context, db *gorm.DB, clientID, principalName string) (*consentdomain.Consent, error) {
	var consent consentdomain.Consent
	err := db.WithContext(ctx).
		Where("client_id = ? AND principal_name = ?", clientID, principalName).
		First(&consent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, consentdomain.ErrConsentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &consent, nil
}

func (r *repo) ListByPrincipal(ctx context.Context, db *gorm.DB, principalName string, limit int, modifiedAfter time.Time) ([]consentdomain.Consent, error) {
	if limit <= 0 {
		limit = 50
	}
	var consents []consentdomain.Consent
	err := db.WithContext(ctx).
		Where("principal_name = ? AND modified_at > ?", principalName, modifiedAfter).
		Order("modified_at ASC").
		Limit(limit).
		Find(&consents).Error
	if err != nil {
		return nil, err
	}
	return consents, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	tx := db.WithContext(ctx).Delete(&consentdomain.Consent{}, "id = ?", id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return consentdomain.ErrConsentNotFound
	}
	return nil
}

func (r *repo) DeleteByClientID(ctx context.Context, db *gorm.DB, clientID string) (int64, error) {
	tx := db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&consentdomain.Consent{})
	return tx.RowsAffected, tx.Error
}
