package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
	Region           string
}

// Remote lookup results reported by the cross-region gateway. A lookup
// that times out through every retry is a different signal than a peer
// answering definitively that the token does not exist.
const (
	LookupResultLocal            = "local"
	LookupResultRemote           = "remote"
	LookupResultRemoteAbsent     = "remote_absent"
	LookupResultRetriesExhausted = "retries_exhausted"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	grantsIssued     metric.Int64Counter
	tokensIssued     metric.Int64Counter
	remoteLookups    metric.Int64Counter
	signingKeyLoads  metric.Int64Counter
	cleanupEvents    metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "meridian"
	}
	meter := provider.Meter(name)

	grantsIssued, err := meter.Int64Counter("meridian_grants_issued_total")
	if err != nil {
		return nil, err
	}
	tokensIssued, err := meter.Int64Counter("meridian_tokens_issued_total")
	if err != nil {
		return nil, err
	}
	remoteLookups, err := meter.Int64Counter("meridian_token_lookups_total")
	if err != nil {
		return nil, err
	}
	signingKeyLoads, err := meter.Int64Counter("meridian_signing_key_loads_total")
	if err != nil {
		return nil, err
	}
	cleanupEvents, err := meter.Int64Counter("meridian_cleanup_events_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("meridian_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("meridian_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		grantsIssued:     grantsIssued,
		tokensIssued:     tokensIssued,
		remoteLookups:    remoteLookups,
		signingKeyLoads:  signingKeyLoads,
		cleanupEvents:    cleanupEvents,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordGrantIssued increments grant issuance counts per grant type.
func (m *Metrics) RecordGrantIssued(ctx context.Context, grantType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("grant_type", strings.TrimSpace(grantType)))
	m.grantsIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenIssued increments token issuance counts per token kind.
func (m *Metrics) RecordTokenIssued(ctx context.Context, tokenKind, region string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("token_kind", strings.TrimSpace(tokenKind)),
		attribute.String("region", strings.TrimSpace(region)),
	)
	m.tokensIssued.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTokenLookup increments token lookup counts by outcome.
func (m *Metrics) RecordTokenLookup(ctx context.Context, region, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("region", strings.TrimSpace(region)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.remoteLookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSigningKeyLoad increments key load counts by outcome.
func (m *Metrics) RecordSigningKeyLoad(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.signingKeyLoads.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordCleanupEvent increments cleanup consumer counts per event type.
func (m *Metrics) RecordCleanupEvent(ctx context.Context, eventType, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("event_type", strings.TrimSpace(eventType)),
		attribute.String("result", strings.TrimSpace(result)),
	)
	m.cleanupEvents.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, clientID, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("client_id", strings.TrimSpace(clientID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
	)
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, clientID, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("client_id", strings.TrimSpace(clientID)),
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"client_id":   {},
	"grant_type":  {},
	"token_kind":  {},
	"region":      {},
	"endpoint":    {},
	"status_code": {},
	"result":      {},
	"event_type":  {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
