package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/meridian/internal/cache"
	clientdomain "github.com/smallbiznis/meridian/internal/client/domain"
	"github.com/smallbiznis/meridian/internal/client/secrethash"
	"github.com/smallbiznis/meridian/internal/secrets"
	"github.com/smallbiznis/meridian/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const secretBytes = 32

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    clientdomain.Repository
	Cipher  *secrets.Cipher
	Cache   cache.ClientCache             `optional:"true"`
	Removal clientdomain.RemovalPublisher `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    clientdomain.Repository
	cipher  *secrets.Cipher
	cache   cache.ClientCache
	removal clientdomain.RemovalPublisher
}

func New(p Params) clientdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("client.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		cipher:  p.Cipher,
		cache:   p.Cache,
		removal: p.Removal,
	}
}

func (s *Service) Register(ctx context.Context, req clientdomain.RegisterRequest) (*clientdomain.SecretResponse, error) {
	name := strings.TrimSpace(req.DisplayName)
	if name == "" {
		return nil, clientdomain.ErrInvalidDisplayName
	}

	clientID := slug.Make(name)
	record := &clientdomain.RegisteredClient{
		ID:           s.genID.Generate(),
		ClientID:     clientID,
		DisplayName:  name,
		Scopes:       normalizeList(req.Scopes),
		GrantTypes:   normalizeList(req.GrantTypes),
		RedirectURIs: normalizeList(req.RedirectURIs),
		Public:       req.Public,
	}

	var plainSecret string
	if !req.Public {
		secret, err := newSecret()
		if err != nil {
			return nil, err
		}
		hash, err := secrethash.Hash(secret)
		if err != nil {
			return nil, err
		}
		sealed, err := s.cipher.Encrypt([]byte(secret))
		if err != nil {
			return nil, err
		}
		record.SecretHash = hash
		record.SecretEncrypted = sealed
		plainSecret = secret
	}

	if err := s.repo.Insert(ctx, s.db, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, clientdomain.ErrClientExists
		}
		return nil, err
	}

	s.log.Info("registered client",
		zap.String("client_id", clientID),
		zap.Bool("public", req.Public),
	)

	return &clientdomain.SecretResponse{
		ClientID:     clientID,
		ClientSecret: plainSecret,
	}, nil
}

func (s *Service) Get(ctx context.Context, clientID string) (*clientdomain.Response, error) {
	record, err := s.repo.FindByClientID(ctx, s.db, strings.TrimSpace(clientID))
	if err != nil {
		return nil, err
	}
	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) List(ctx context.Context) ([]clientdomain.Response, error) {
	records, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]clientdomain.Response, 0, len(records))
	for i := range records {
		out = append(out, toResponse(&records[i]))
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if err := s.repo.DeleteByClientID(ctx, s.db, clientID); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Invalidate(clientID)
	}

	// Authorizations and consents for the client are removed by the
	// cleanup consumer; publish failure is retried there, not here.
	if s.removal != nil {
		if err := s.removal.PublishClientRemoved(ctx, clientID); err != nil {
			s.log.Error("failed to publish client removal",
				zap.String("client_id", clientID),
				zap.Error(err),
			)
		}
	}

	s.log.Info("deleted client", zap.String("client_id", clientID))
	return nil
}

func (s *Service) Authenticate(ctx context.Context, clientID, secret string) (*clientdomain.RegisteredClient, error) {
	record, err := s.repo.FindByClientID(ctx, s.db, strings.TrimSpace(clientID))
	if err != nil {
		return nil, err
	}

	if record.Public {
		if strings.TrimSpace(secret) != "" {
			return nil, clientdomain.ErrInvalidSecret
		}
		return record, nil
	}

	if !secrethash.Verify(secret, record.SecretHash) {
		return nil, clientdomain.ErrInvalidSecret
	}
	return record, nil
}

func (s *Service) Resolve(ctx context.Context, clientID string) (*clientdomain.RegisteredClient, error) {
	clientID = strings.TrimSpace(clientID)
	if s.cache != nil {
		if record, ok := s.cache.Get(clientID); ok {
			return record, nil
		}
	}
	record, err := s.repo.FindByClientID(ctx, s.db, clientID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(clientID, record)
	}
	return record, nil
}

func toResponse(record *clientdomain.RegisteredClient) clientdomain.Response {
	return clientdomain.Response{
		ClientID:     record.ClientID,
		DisplayName:  record.DisplayName,
		Scopes:       record.Scopes,
		GrantTypes:   record.GrantTypes,
		RedirectURIs: record.RedirectURIs,
		Public:       record.Public,
		CreatedAt:    record.CreatedAt,
	}
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
