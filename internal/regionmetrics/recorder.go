package regionmetrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder counts the per-region issuance events pushed to the central
// collector. It is separate from the OTLP metrics provider so the pushed
// registry only carries the fleet-level series.
type Recorder struct {
	region string

	grantsIssued *prometheus.CounterVec
	tokensIssued *prometheus.CounterVec
	tokenLookups *prometheus.CounterVec
}

func NewRecorder(region string, registry *prometheus.Registry) *Recorder {
	r := &Recorder{
		region: normalizeLabel(region),
		grantsIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_region_grants_issued_total",
			Help: "Grants issued by this region, by grant type.",
		}, []string{"region", "grant_type"}),
		tokensIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_region_tokens_issued_total",
			Help: "Tokens issued by this region, by token kind.",
		}, []string{"region", "kind"}),
		tokenLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meridian_region_token_lookups_total",
			Help: "Token lookups served by this region, by resolution.",
		}, []string{"region", "result"}),
	}
	registry.MustRegister(r.grantsIssued, r.tokensIssued, r.tokenLookups)
	return r
}

func (r *Recorder) RecordGrantIssued(grantType string) {
	if r == nil {
		return
	}
	r.grantsIssued.WithLabelValues(r.region, normalizeLabel(grantType)).Inc()
}

func (r *Recorder) RecordTokenIssued(kind string) {
	if r == nil {
		return
	}
	r.tokensIssued.WithLabelValues(r.region, normalizeLabel(kind)).Inc()
}

func (r *Recorder) RecordTokenLookup(result string) {
	if r == nil {
		return
	}
	r.tokenLookups.WithLabelValues(r.region, normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
