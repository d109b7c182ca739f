package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/repostpay/backend/internal/observability"
	"go.uber.org/zap"
)

// Outcomes recorded per stream.
const (
	outcomePublished     = "published"
	outcomePublishFailed = "publish_failed"
	outcomeDelivered     = "delivered"
	outcomeMalformed     = "malformed"
)

// RedisPublisher fans ledger and campaign events out over Redis pub/sub.
// Delivery is best effort; subscribers that are offline miss the event.
type RedisPublisher struct {
	client  *redis.Client
	metrics *observability.LedgerMetrics
	log     *zap.Logger
}

func NewRedisPublisher(client *redis.Client, metrics *observability.LedgerMetrics, log *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, metrics: metrics, log: log}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) error {
	data, err := encodeEvent(event)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, stream, data).Err(); err != nil {
		p.metrics.RecordEvent(stream, outcomePublishFailed)
		p.log.Warn("event publish failed",
			zap.String("stream", stream),
			zap.String("type", event.Type),
			zap.String("recipient", event.Recipient()),
			zap.Error(err),
		)
		return fmt.Errorf("publish %s to %s: %w", event.Type, stream, err)
	}
	p.metrics.RecordEvent(stream, outcomePublished)
	return nil
}

type RedisSubscriber struct {
	client  *redis.Client
	metrics *observability.LedgerMetrics
	log     *zap.Logger
}

func NewRedisSubscriber(client *redis.Client, metrics *observability.LedgerMetrics, log *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{client: client, metrics: metrics, log: log}
}

// Subscribe runs handler for every well-formed event on stream until ctx
// is cancelled. Malformed messages are counted and skipped.
func (s *RedisSubscriber) Subscribe(ctx context.Context, stream string, handler func(Event)) error {
	pubsub := s.client.Subscribe(ctx, stream)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("subscribe %s: %w", stream, err)
	}
	ch := pubsub.Channel()

	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, err := decodeEvent(msg.Payload)
				if err != nil {
					s.metrics.RecordEvent(stream, outcomeMalformed)
					s.log.Error("dropping malformed event", zap.String("stream", stream), zap.Error(err))
					continue
				}
				s.metrics.RecordEvent(stream, outcomeDelivered)
				handler(event)
			}
		}
	}()

	return nil
}

var errUntypedEvent = errors.New("event has no type")

func encodeEvent(event Event) (string, error) {
	if event.Type == "" {
		return "", errUntypedEvent
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode %s event: %w", event.Type, err)
	}
	return string(data), nil
}

func decodeEvent(payload string) (Event, error) {
	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if event.Type == "" {
		return Event{}, errUntypedEvent
	}
	return event, nil
}
