package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() authzdomain.Repository {
	return &repo{}
}

func (r *repo) Save(ctx context.Context, db *gorm.DB, auth *authzdomain.Authorization) error {
	auth.ModifiedAt = time.Now().UTC()

	if auth.GrantType == authzdomain.GrantTypePersonalAccessToken {
		return db.WithContext(ctx).Create(auth).Error
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing authzdomain.Authorization
		err := tx.Where("client_id = ? AND principal_name = ? AND grant_type <> ?",
			auth.ClientID, auth.PrincipalName, authzdomain.GrantTypePersonalAccessToken).
			First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(auth).Error
		}
		if err != nil {
			return err
		}
		if existing.ID != auth.ID {
			// Last write wins on the composite key.
			if err := tx.Delete(&authzdomain.Authorization{}, "id = ?", existing.ID).Error; err != nil {
				return err
			}
			return tx.Create(auth).Error
		}
		return tx.Save(auth).Error
	})
}

func (r *repo) FindByAnyToken(ctx context.Context, db *gorm.DB, value string) (*authzdomain.Authorization, error) {
	if value == "" {
		return nil, authzdomain.ErrAuthorizationNotFound
	}
	var auth authzdomain.Authorization
	err := db.WithContext(ctx).
		Where("state = ? OR code_value = ? OR access_token_value = ? OR refresh_token_value = ?",
			value, value, value, value).
		First(&auth).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, authzdomain.ErrAuthorizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*authzdomain.Authorization, error) {
	var auth authzdomain.Authorization
	err := db.WithContext(ctx).Where("id = ?", id).First(&auth).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, authzdomain.ErrAuthorizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *repo) FindByClientAndPrincipal(ctx context.Context, db *gorm.DB, clientID, principalName string) (*authzdomain.Authorization, error) {
	var auth authzdomain.Authorization
	err := db.WithContext(ctx).
		Where("client_id = ? AND principal_name = ? AND grant_type <> ?",
			clientID, principalName, authzdomain.GrantTypePersonalAccessToken).
		First(&auth).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, authzdomain.ErrAuthorizationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &auth, nil
}

func (r *repo) MarkCodeUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, usedAt time.Time) (bool, error) {
	tx := db.WithContext(ctx).
		Model(&authzdomain.Authorization{}).
		Where("id = ? AND code_used_at IS NULL", id).
		Update("code_used_at", usedAt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *repo) Invalidate(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	tx := db.WithContext(ctx).
		Model(&authzdomain.Authorization{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"invalidated": true,
			"modified_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return authzdomain.ErrAuthorizationNotFound
	}
	return nil
}

func (r *repo) InvalidateByConsent(ctx context.Context, db *gorm.DB, consentID snowflake.ID) (int64, error) {
	tx := db.WithContext(ctx).
		Model(&authzdomain.Authorization{}).
		Where("consent_id = ? AND invalidated = ?", consentID, false).
		Updates(map[string]any{
			"invalidated": true,
			"modified_at": time.Now().UTC(),
		})
	return tx.RowsAffected, tx.Error
}

func (r *repo) ListByPrincipal(ctx context.Context, db *gorm.DB, principalName string, limit int, modifiedAfter time.Time) ([]authzdomain.Authorization, error) {
	if limit <= 0 {
		limit = 50
	}
	var auths []authzdomain.Authorization
	err := db.WithContext(ctx).
		Where("principal_name = ? AND modified_at > ?", principalName, modifiedAfter).
		Order("modified_at ASC").
		Limit(limit).
		Find(&auths).Error
	if err != nil {
		return nil, err
	}
	return auths, nil
}

func (r *repo) DeleteByClientID(ctx context.Context, db *gorm.DB, clientID string) (int64, error) {
	tx := db.WithContext(ctx).Where("client_id = ?", clientID).Delete(&authzdomain.Authorization{})
	return tx.RowsAffected, tx.Error
}

func (r *repo) DeleteExpired(ctx context.Context, db *gorm.DB, now time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	var ids []snowflake.ID
	err := db.WithContext(ctx).
		Model(&authzdomain.Authorization{}).
		Where("access_token_expires_at < ? AND (refresh_token_expires_at IS NULL OR refresh_token_expires_at < ?)", now, now).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	tx := db.WithContext(ctx).Where("id IN ?", ids).Delete(&authzdomain.Authorization{})
	return tx.RowsAffected, tx.Error
}
