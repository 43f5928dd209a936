package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	auditdomain "github.com/smallbiznis/meridian/internal/audit/domain"
	"github.com/smallbiznis/meridian/internal/clock"
)

type failingQueue struct {
	memoryQueue
}

func (q *failingQueue) Enqueue(ctx context.Context, msg Message) error {
	return errors.New("broker down")
}

type recordingAudit struct {
	events []auditdomain.Event
}

func (a *recordingAudit) Publish(ctx context.Context, event auditdomain.Event) {
	a.events = append(a.events, event)
}

func TestPublishClientRemovedEnqueuesAndAudits(t *testing.T) {
	queue := newMemoryQueue()
	audit := &recordingAudit{}
	pub := &Publisher{
		log:   zap.NewNop(),
		clock: clock.NewFakeClock(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)),
		queue: queue,
		audit: audit,
	}

	if err := pub.PublishClientRemoved(context.Background(), "acme"); err != nil {
		t.Fatalf("PublishClientRemoved: %v", err)
	}

	if len(queue.ready) != 1 {
		t.Fatalf("enqueued = %d, want 1", len(queue.ready))
	}
	msg := queue.ready[0]
	if msg.ClientID != "acme" || msg.Attempts != 0 {
		t.Fatalf("message = %+v", msg)
	}
	if len(audit.events) != 1 || audit.events[0].ActionCode != auditdomain.ActionClientRemoved {
		t.Fatalf("audit events = %+v", audit.events)
	}
}

func TestPublishClientRemovedSurfacesQueueFailure(t *testing.T) {
	pub := &Publisher{
		log:   zap.NewNop(),
		clock: clock.New(),
		queue: &failingQueue{},
	}

	err := pub.PublishClientRemoved(context.Background(), "acme")
	if !errors.Is(err, ErrQueueUnavailable) {
		t.Fatalf("err = %v, want ErrQueueUnavailable", err)
	}
}

func TestPublishClientRemovedWithoutQueueIsNoop(t *testing.T) {
	pub := &Publisher{log: zap.NewNop(), clock: clock.New()}

	if err := pub.PublishClientRemoved(context.Background(), "acme"); err != nil {
		t.Fatalf("PublishClientRemoved without queue: %v", err)
	}
}
