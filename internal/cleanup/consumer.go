package cleanup

import (
	"context"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	authzdomain "github.com/smallbiznis/meridian/internal/authorization/domain"
	consentdomain "github.com/smallbiznis/meridian/internal/consent/domain"
	"github.com/smallbiznis/meridian/internal/observability/metrics"
)

const dequeueWait = 5 * time.Second

type ConsumerParams struct {
	fx.In

	Log      *zap.Logger
	Store    authzdomain.Store
	Consents consentdomain.Service
	Queue    Queue            `optional:"true"`
	Metrics  *metrics.Metrics `optional:"true"`
}

// Consumer drains client-removed events and deletes the dependent
// authorization and consent rows. Each message is acknowledged only after
// both deletions succeed, so a crash mid-delete redelivers the message
// and the deletions run again. Deletes are idempotent, redelivery is
// safe.
type Consumer struct {
	log      *zap.Logger
	store    authzdomain.Store
	consents consentdomain.Service
	queue    Queue
	metrics  *metrics.Metrics
	sweeper  *metrics.SweeperMetrics

	cancel context.CancelFunc
	done   sync.WaitGroup
}

func NewConsumer(p ConsumerParams) *Consumer {
	return &Consumer{
		log:      p.Log,
		store:    p.Store,
		consents: p.Consents,
		queue:    p.Queue,
		metrics:  p.Metrics,
		sweeper:  metrics.Sweeper(),
	}
}

// Start launches the consume loop. It is a no-op when no queue is
// configured.
func (c *Consumer) Start() {
	if c.queue == nil {
		c.log.Info("cleanup consumer disabled, no queue configured")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done.Add(1)
	go func() {
		defer c.done.Done()
		c.run(ctx)
	}()
}

// Stop cancels the loop and waits for the in-flight message to settle.
func (c *Consumer) Stop() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.done.Wait()
}

func (c *Consumer) run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.consumeOne(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("cleanup dequeue failed", zap.Error(err))
			// Back off briefly so a dead broker does not spin the loop.
			select {
			case <-time.After(dequeueWait):
			case <-ctx.Done():
				return
			}
		}
	}
}

// consumeOne waits for a single message and processes it. A nil return
// with no message means the blocking wait timed out.
func (c *Consumer) consumeOne(ctx context.Context) error {
	msg, raw, err := c.queue.Dequeue(ctx, dequeueWait)
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}

	c.sweeper.IncJobRun(metrics.SweeperJobCleanupQueue)
	start := time.Now()
	err = c.process(ctx, msg)
	c.sweeper.ObserveJobDuration(metrics.SweeperJobCleanupQueue, time.Since(start))

	if err == nil {
		if ackErr := c.queue.Ack(ctx, raw); ackErr != nil {
			c.log.Warn("cleanup ack failed", zap.String("client_id", msg.ClientID), zap.Error(ackErr))
		}
		c.metrics.RecordCleanupEvent(ctx, eventClientRemoved, "processed")
		return nil
	}

	c.sweeper.IncJobError(metrics.SweeperJobCleanupQueue, err)
	msg.Attempts++
	if msg.Attempts >= MaxAttempts {
		c.log.Error("cleanup message dead lettered",
			zap.String("client_id", msg.ClientID),
			zap.Int("attempts", msg.Attempts),
			zap.Error(err))
		c.sweeper.IncDeadLettered(eventClientRemoved)
		c.metrics.RecordCleanupEvent(ctx, eventClientRemoved, "dead_lettered")
		return c.queue.DeadLetter(ctx, raw, *msg)
	}

	c.log.Warn("cleanup processing failed, requeueing",
		zap.String("client_id", msg.ClientID),
		zap.Int("attempts", msg.Attempts),
		zap.Error(err))
	c.metrics.RecordCleanupEvent(ctx, eventClientRemoved, "requeued")
	return c.queue.Requeue(ctx, raw, *msg)
}

func (c *Consumer) process(ctx context.Context, msg *Message) error {
	authzCount, err := c.store.DeleteByClientID(ctx, msg.ClientID)
	if err != nil {
		return err
	}
	consentCount, err := c.consents.DeleteByClientID(ctx, msg.ClientID)
	if err != nil {
		return err
	}

	c.sweeper.AddBatchProcessed(metrics.SweeperJobCleanupQueue, "authorizations", int(authzCount))
	c.sweeper.AddBatchProcessed(metrics.SweeperJobCleanupQueue, "consents", int(consentCount))
	c.log.Info("client cascade deleted",
		zap.String("client_id", msg.ClientID),
		zap.Int64("authorizations", authzCount),
		zap.Int64("consents", consentCount))
	return nil
}
