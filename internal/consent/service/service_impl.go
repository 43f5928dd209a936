package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Repo           consentdomain.Repository
	Authorizations authzdomain.Store
}

type Service struct {
	db             *gorm.DB
	log            *zap.Logger
	genID          *snowflake.Node
	repo           consentdomain.Repository
	authorizations authzdomain.Store
}

func New(p Params) consentdomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("consent.service"),
		genID:          p.GenID,
		repo:           p.Repo,
		authorizations: p.Authorizations,
	}
}

func (s *Service) Grant(ctx context.Context, clientID, principalName string, scopes []string) (*consentdomain.Consent, error) {
	consent := &consentdomain.Consent{
		ID:            s.genID.Generate(),
		ClientID:      strings.TrimSpace(clientID),
		PrincipalName: strings.TrimSpace(principalName),
		Scopes:        scopes,
	}
	if err := s.repo.Upsert(ctx, s.db, consent); err != nil {
		return nil, err
	}
	return consent, nil
}

func (s *Service) Get(ctx context.Context, clientID, principalName string) (*consentdomain.Consent, error) {
	return s.repo.FindByClientAndPrincipal(ctx, s.db, strings.TrimSpace(clientID), strings.TrimSpace(principalName))
}

func (s *Service) ListByPrincipal(ctx context.Context, principalName string, limit int, modifiedAfter time.Time) (*consentdomain.Page, error) {
	consents, err := s.repo.ListByPrincipal(ctx, s.db, strings.TrimSpace(principalName), limit, modifiedAfter)
	if err != nil {
		return nil, err
	}

	cursor := modifiedAfter
	for _, consent := range consents {
		if consent.ModifiedAt.After(cursor) {
			cursor = consent.ModifiedAt
		}
	}

	return &consentdomain.Page{
		Consents:           consents,
		LastModifiedCursor: cursor,
	}, nil
}

func (s *Service) Revoke(ctx context.Context, clientID, principalName string) error {
	consent, err := s.repo.FindByClientAndPrincipal(ctx, s.db, strings.TrimSpace(clientID), strings.TrimSpace(principalName))
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, s.db, consent.ID); err != nil {
		return err
	}

	invalidated, err := s.authorizations.InvalidateByConsent(ctx, consent.ID)
	if err != nil {
		return err
	}

	s.log.Info("revoked consent",
		zap.String("client_id", consent.ClientID),
		zap.String("principal", consent.PrincipalName),
		zap.Int64("authorizations_invalidated", invalidated),
	)
	return nil
}

func (s *Service) DeleteByClientID(ctx context.Context, clientID string) (int64, error) {
	return s.repo.DeleteByClientID(ctx, s.db, strings.TrimSpace(clientID))
}
