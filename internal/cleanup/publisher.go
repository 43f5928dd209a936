package cleanup

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	"github.com/smallbiznis/meridian/internal/clock"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
)

const eventClientRemoved = "client_removed"

type PublisherParams struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Queue   Queue                 `optional:"true"`
	Audit   auditdomain.Publisher `optional:"true"`
	Metrics *metrics.Metrics      `optional:"true"`
}

// Publisher enqueues client-removed events for asynchronous cascade
// deletion of the client's authorizations and consents.
type Publisher struct {
	log     *zap.Logger
	clock   clock.Clock
	queue   Queue
	audit   auditdomain.Publisher
	metrics *metrics.Metrics
}

func NewPublisher(p PublisherParams) *Publisher {
	return &Publisher{
		log:     p.Log,
		clock:   p.Clock,
		queue:   p.Queue,
		audit:   p.Audit,
		metrics: p.Metrics,
	}
}

func (p *Publisher) PublishClientRemoved(ctx context.Context, clientID string) error {
	if p.queue == nil {
		// Without a queue the deletion already removed the client row;
		// dependent rows are left to the sweeper's expiry pass.
		p.log.Warn("cleanup queue not configured, skipping cascade", zap.String("client_id", clientID))
		return nil
	}

	msg := Message{ClientID: clientID, EnqueuedAt: p.clock.Now().UTC()}
	if err := p.queue.Enqueue(ctx, msg); err != nil {
		p.metrics.RecordCleanupEvent(ctx, eventClientRemoved, "enqueue_failed")
		return ErrQueueUnavailable
	}

	p.metrics.RecordCleanupEvent(ctx, eventClientRemoved, "enqueued")
	if p.audit != nil {
		p.audit.Publish(ctx, auditdomain.Event{
			Target:     clientID,
			ActionCode: auditdomain.ActionClientRemoved,
			Metadata:   map[string]any{"enqueued_at": msg.EnqueuedAt.Format(time.RFC3339)},
		})
	}
	return nil
}
