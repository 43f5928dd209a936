package cleanup

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	queueKey      = "cleanup:client_removed"
	processingKey = "cleanup:client_removed:processing"
	deadLetterKey = "cleanup:client_removed:dead"

	// MaxAttempts bounds redelivery before a message is dead-lettered.
	MaxAttempts = 5
)

var ErrQueueUnavailable = errors.New("cleanup_queue_unavailable")

// Message is one client-removed event in flight.
type Message struct {
	ClientID   string    `json:"client_id"`
	Attempts   int       `json:"attempts"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Queue is the redelivery-capable event queue between client deletion and
// the cleanup consumer. Dequeue moves the message to a processing list;
// it stays there until Ack, Requeue or DeadLetter, so a crashed consumer
// leaves the message recoverable.
type Queue interface {
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue blocks up to timeout. A nil message with nil error means
	// the wait elapsed with nothing to do.
	Dequeue(ctx context.Context, timeout time.Duration) (*Message, string, error)
	Ack(ctx context.Context, raw string) error
	Requeue(ctx context.Context, raw string, msg Message) error
	DeadLetter(ctx context.Context, raw string, msg Message) error
}

type redisQueue struct {
	client *redis.Client
}

func NewQueue(client *redis.Client) Queue {
	if client == nil {
		return nil
	}
	return &redisQueue{client: client}
}

func (q *redisQueue) Enqueue(ctx context.Context, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, queueKey, raw).Err()
}

func (q *redisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Message, string, error) {
	raw, err := q.client.BLMove(ctx, queueKey, processingKey, "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}

	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		// Unparseable payloads go straight to the dead letter list.
		_ = q.client.LRem(ctx, processingKey, 1, raw).Err()
		_ = q.client.LPush(ctx, deadLetterKey, raw).Err()
		return nil, "", err
	}
	return &msg, raw, nil
}

func (q *redisQueue) Ack(ctx context.Context, raw string) error {
	return q.client.LRem(ctx, processingKey, 1, raw).Err()
}

func (q *redisQueue) Requeue(ctx context.Context, raw string, msg Message) error {
	updated, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, raw)
	pipe.LPush(ctx, queueKey, updated)
	_, err = pipe.Exec(ctx)
	return err
}

func (q *redisQueue) DeadLetter(ctx context.Context, raw string, msg Message) error {
	updated, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, processingKey, 1, raw)
	pipe.LPush(ctx, deadLetterKey, updated)
	_, err = pipe.Exec(ctx)
	return err
}
