package gateway

import (
	"context"
	"errors"
	"time"

	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"github.com/smallbiznis/meridian/internal/config"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
	"github.com/smallbiznis/meridian/internal/region"
	"github.com/smallbiznis/meridian/internal/regionmetrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Resolver answers token and consent lookups across regions. The local
// store is always consulted first; only a region-tagged miss goes remote.
type Resolver struct {
	store    authzdomain.Store
	consents consentdomain.Service
	codec    *region.Codec
	regions  *config.RegionsHolder
	client   Client
	metrics  *metrics.Metrics
	recorder *regionmetrics.Recorder
	log      *zap.Logger
}

type ResolverParams struct {
	fx.In

	Store    authzdomain.Store
	Consents consentdomain.Service
	Codec    *region.Codec
	Regions  *config.RegionsHolder
	Client   Client
	Log      *zap.Logger
	Metrics  *metrics.Metrics        `optional:"true"`
	Recorder *regionmetrics.Recorder `optional:"true"`
}

func NewResolver(p ResolverParams) *Resolver {
	return &Resolver{
		store:    p.Store,
		consents: p.Consents,
		codec:    p.Codec,
		regions:  p.Regions,
		client:   p.Client,
		metrics:  p.Metrics,
		recorder: p.Recorder,
		log:      p.Log.Named("gateway.resolver"),
	}
}

// LookupByToken resolves a token value to its authorization. A miss on a
// token carrying a foreign region tag is forwarded to that region's
// gateway; every other miss is authoritative and resolves to
// ErrAuthorizationNotFound without any network traffic.
func (r *Resolver) LookupByToken(ctx context.Context, token string) (*authzdomain.Authorization, error) {
	auth, err := r.store.FindByAnyToken(ctx, token)
	if err == nil {
		r.metrics.RecordTokenLookup(ctx, r.codec.Local(), metrics.LookupResultLocal)
		r.recorder.RecordTokenLookup(metrics.LookupResultLocal)
		return auth, nil
	}
	if !errors.Is(err, authzdomain.ErrAuthorizationNotFound) {
		return nil, err
	}

	tag, ok := region.Extract(token)
	if !ok || r.codec.IsLocal(tag) {
		return nil, authzdomain.ErrAuthorizationNotFound
	}

	endpoint, ok := r.regions.Endpoint(trimTag(tag))
	if !ok {
		r.log.Warn("token carries unknown region tag",
			zap.String("region", tag))
		return nil, authzdomain.ErrAuthorizationNotFound
	}

	auth, err = r.client.RetrieveAuthorization(ctx, endpoint, token)
	switch {
	case err == nil:
		// Adopt the record locally so follow-up writes (single-use code
		// consumption, token rotation) have a row to update here.
		if saveErr := r.store.Save(ctx, auth); saveErr != nil {
			r.log.Error("failed to adopt remote authorization",
				zap.String("region", tag),
				zap.Error(saveErr))
			return nil, saveErr
		}
		r.metrics.RecordTokenLookup(ctx, trimTag(tag), metrics.LookupResultRemote)
		r.recorder.RecordTokenLookup(metrics.LookupResultRemote)
		return auth, nil
	case errors.Is(err, ErrRemoteAbsent):
		r.metrics.RecordTokenLookup(ctx, trimTag(tag), metrics.LookupResultRemoteAbsent)
		r.recorder.RecordTokenLookup(metrics.LookupResultRemoteAbsent)
		r.log.Debug("remote region confirmed token is absent",
			zap.String("region", tag))
		return nil, authzdomain.ErrAuthorizationNotFound
	default:
		r.metrics.RecordTokenLookup(ctx, trimTag(tag), metrics.LookupResultRetriesExhausted)
		r.recorder.RecordTokenLookup(metrics.LookupResultRetriesExhausted)
		r.log.Warn("remote token lookup exhausted retries",
			zap.String("region", tag),
			zap.Error(err))
		return nil, authzdomain.ErrAuthorizationNotFound
	}
}

// ListConsents merges nothing; it serves the local page unless a specific
// foreign region is requested.
func (r *Resolver) ListConsents(ctx context.Context, regionTag, principalName string, limit int, modifiedAfter time.Time) (*consentdomain.Page, error) {
	if regionTag == "" || r.codec.IsLocal(regionTag) {
		return r.consents.ListByPrincipal(ctx, principalName, limit, modifiedAfter)
	}

	endpoint, ok := r.regions.Endpoint(trimTag(regionTag))
	if !ok {
		return nil, authzdomain.ErrAuthorizationNotFound
	}
	return r.client.ListConsents(ctx, endpoint, principalName, limit, modifiedAfter)
}

func trimTag(tag string) string {
	for len(tag) > 0 && tag[0] == '[' {
		tag = tag[1:]
	}
	for len(tag) > 0 && tag[len(tag)-1] == ']' {
		tag = tag[:len(tag)-1]
	}
	return tag
}
