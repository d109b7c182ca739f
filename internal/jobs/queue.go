// Package jobs carries verification and payout work from the API to the
// worker over redis lists.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queues
const (
	QueueVerification = "jobs:verification"
	QueuePayouts      = "jobs:payouts"
)

// ErrEmpty is returned by Pop when nothing arrived within the wait.
var ErrEmpty = errors.New("jobs: queue empty")

type Queue interface {
	Push(ctx context.Context, queue string, payload []byte) error
	Pop(ctx context.Context, queue string, wait time.Duration) ([]byte, error)
	// IncrAttempts counts a failed delivery of job id and returns the total.
	IncrAttempts(ctx context.Context, queue, id string) (int, error)
	ResetAttempts(ctx context.Context, queue, id string) error
}

type RedisQueue struct {
	client      *redis.Client
	attemptsTTL time.Duration
}

func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client, attemptsTTL: 24 * time.Hour}
}

func attemptsKey(queue, id string) string {
	return fmt.Sprintf("jobs:attempts:%s:%s", queue, id)
}

func (q *RedisQueue) Push(ctx context.Context, queue string, payload []byte) error {
	return q.client.LPush(ctx, queue, payload).Err()
}

func (q *RedisQueue) Pop(ctx context.Context, queue string, wait time.Duration) ([]byte, error) {
	res, err := q.client.BRPop(ctx, wait, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	// BRPOP replies with [key, value].
	return []byte(res[1]), nil
}

func (q *RedisQueue) IncrAttempts(ctx context.Context, queue, id string) (int, error) {
	key := attemptsKey(queue, id)
	n, err := q.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		q.client.Expire(ctx, key, q.attemptsTTL)
	}
	return int(n), nil
}

func (q *RedisQueue) ResetAttempts(ctx context.Context, queue, id string) error {
	return q.client.Del(ctx, attemptsKey(queue, id)).Err()
}
