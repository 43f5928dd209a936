package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo authzdomain.Repository
}

// Service binds the repository to the shared connection. It carries no
// state of its own; all lifecycle state lives in the Authorization rows.
type Service struct {
	db   *gorm.DB
	log  *zap.Logger
	repo authzdomain.Repository
}

func New(p Params) authzdomain.Store {
	return &Service{
		db:   p.DB,
		log:  p.Log.Named("authorization.store"),
		repo: p.Repo,
	}
}

func (s *Service) Save(ctx context.Context, auth *authzdomain.Authorization) error {
	return s.repo.Save(ctx, s.db, auth)
}

func (s *Service) FindByAnyToken(ctx context.Context, value string) (*authzdomain.Authorization, error) {
	return s.repo.FindByAnyToken(ctx, s.db, value)
}

func (s *Service) FindByID(ctx context.Context, id snowflake.ID) (*authzdomain.Authorization, error) {
	return s.repo.FindByID(ctx, s.db, id)
}

func (s *Service) FindByClientAndPrincipal(ctx context.Context, clientID, principalName string) (*authzdomain.Authorization, error) {
	return s.repo.FindByClientAndPrincipal(ctx, s.db, clientID, principalName)
}

func (s *Service) MarkCodeUsed(ctx context.Context, id snowflake.ID, usedAt time.Time) (bool, error) {
	return s.repo.MarkCodeUsed(ctx, s.db, id, usedAt)
}

func (s *Service) Invalidate(ctx context.Context, id snowflake.ID) error {
	return s.repo.Invalidate(ctx, s.db, id)
}

func (s *Service) InvalidateByConsent(ctx context.Context, consentID snowflake.ID) (int64, error) {
	return s.repo.InvalidateByConsent(ctx, s.db, consentID)
}

func (s *Service) ListByPrincipal(ctx context.Context, principalName string, limit int, modifiedAfter time.Time) ([]authzdomain.Authorization, error) {
	return s.repo.ListByPrincipal(ctx, s.db, principalName, limit, modifiedAfter)
}

func (s *Service) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	count, err := s.repo.DeleteByClientID(ctx, s.db, clientID)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("deleted authorizations for client",
			zap.String("client_id", clientID),
			zap.Int64("count", count),
		)
	}
	return count, nil
}

func (s *Service) DeleteExpired(ctx context.Context, now time.Time, limit int) (int64, error) {
	return s.repo.DeleteExpired(ctx, s.db, now, limit)
}
