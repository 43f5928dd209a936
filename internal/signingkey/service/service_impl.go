package service

import (
	"context"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
	"github.com/smallbiznis/meridian/internal/secrets"
	signingdomain "github.com/smallbiznis/meridian/internal/signingkey/domain"
	"github.com/smallbiznis/meridian/internal/signingkey/keyalg"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Lc      fx.Lifecycle
	Cfg     config.Config
	DB      *gorm.DB
	Log     *zap.Logger
	Repo    signingdomain.Repository
	Cipher  *secrets.Cipher
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	repo    signingdomain.Repository
	cipher  *secrets.Cipher
	alg     keyalg.Algorithm
	metrics *metrics.Metrics

	// keys is populated once in Bootstrap and never mutated afterward,
	// so request handlers read it without locking.
	keys []*signingdomain.SigningKey
}

func New(p Params) (signingdomain.Manager, error) {
	alg, err := keyalg.ForType(signingdomain.ParseKeyType(p.Cfg.SigningKeyType))
	if err != nil {
		return nil, err
	}

	s := &Service{
		db:      p.DB,
		log:     p.Log.Named("signingkey.service"),
		repo:    p.Repo,
		cipher:  p.Cipher,
		alg:     alg,
		metrics: p.Metrics,
	}

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Bootstrap(ctx)
		},
	})

	return s, nil
}

// Bootstrap loads persisted key pairs of the active type, rebuilding each
// into a usable signing key. A pair that fails decryption or parsing is
// logged and skipped. When no valid pair survives, exactly one new pair is
// generated and persisted with its private material encrypted.
func (s *Service) Bootstrap(ctx context.Context) error {
	pairs, err := s.repo.ListByType(ctx, s.db, s.alg.Type())
	if err != nil {
		return err
	}

	loaded := make([]*signingdomain.SigningKey, 0, len(pairs))
	for i := range pairs {
		pair := &pairs[i]
		key, err := s.rebuild(pair)
		if err != nil {
			s.log.Warn("skipping unusable signing key",
				zap.String("key_id", pair.ID),
				zap.String("key_type", string(pair.Type)),
				zap.Error(err),
			)
			s.metrics.RecordSigningKeyLoad(ctx, "corrupt")
			continue
		}
		loaded = append(loaded, key)
		s.metrics.RecordSigningKeyLoad(ctx, "loaded")
	}

	if len(loaded) == 0 {
		key, err := s.generateAndPersist(ctx)
		if err != nil {
			return err
		}
		loaded = append(loaded, key)
		s.metrics.RecordSigningKeyLoad(ctx, "generated")
		s.log.Info("generated initial signing key",
			zap.String("key_id", key.ID),
			zap.String("key_type", string(key.Type)),
		)
	}

	s.keys = loaded
	s.log.Info("signing keys ready",
		zap.Int("count", len(loaded)),
		zap.String("key_type", string(s.alg.Type())),
	)
	return nil
}

func (s *Service) rebuild(pair *signingdomain.KeyPair) (*signingdomain.SigningKey, error) {
	privatePEM, err := s.cipher.Decrypt(pair.PrivateKey)
	if err != nil {
		return nil, err
	}
	return s.alg.Build(pair.ID, []byte(pair.PublicKey), privatePEM)
}

func (s *Service) generateAndPersist(ctx context.Context) (*signingdomain.SigningKey, error) {
	material, err := s.alg.Generate()
	if err != nil {
		return nil, err
	}

	sealed, err := s.cipher.Encrypt(material.PrivatePEM)
	if err != nil {
		return nil, err
	}

	pair := &signingdomain.KeyPair{
		ID:         ulid.Make().String(),
		Type:       s.alg.Type(),
		PublicKey:  string(material.PublicPEM),
		PrivateKey: sealed,
	}
	if err := s.repo.Insert(ctx, s.db, pair); err != nil {
		return nil, err
	}

	// Build from the plaintext material still in hand so the fresh key is
	// usable without a decrypt round trip.
	return s.alg.Build(pair.ID, material.PublicPEM, material.PrivatePEM)
}

func (s *Service) SelectKeys(ctx context.Context, sel signingdomain.Selector) ([]signingdomain.JWK, error) {
	out := make([]signingdomain.JWK, 0, len(s.keys))
	for _, key := range s.keys {
		if sel.KeyID != "" && key.ID != sel.KeyID {
			continue
		}
		jwk, err := s.alg.PublicJWK(key)
		if err != nil {
			s.log.Warn("failed to render public jwk", zap.String("key_id", key.ID), zap.Error(err))
			continue
		}
		out = append(out, jwk)
	}
	return out, nil
}

func (s *Service) SigningMaterial(ctx context.Context, tokenCtx signingdomain.TokenContext) (*signingdomain.SigningDecision, error) {
	if len(s.keys) == 0 {
		return nil, signingdomain.ErrNoUsableKey
	}
	key := s.keys[0]

	claims := map[string]any{
		"sub": tokenCtx.PrincipalID,
		"iss": tokenCtx.Authority + "/oauth2",
		"aud": []string{tokenCtx.Authority},
	}
	if tokenCtx.ClientID != "" {
		claims["cid"] = tokenCtx.ClientID
	}

	return &signingdomain.SigningDecision{
		Key:    key,
		Claims: claims,
		Headers: map[string]any{
			"kid": key.ID,
			"alg": key.Algorithm,
		},
	}, nil
}
