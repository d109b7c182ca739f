// Package cache keeps short-lived campaign match results in redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/repostpay/backend/internal/matching"
)

type MatchCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewMatchCache(client *redis.Client, ttl time.Duration) *MatchCache {
	return &MatchCache{client: client, ttl: ttl}
}

func matchKey(campaignID uuid.UUID, limit int) string {
	return fmt.Sprintf("match:%s:%d", campaignID, limit)
}

func (c *MatchCache) Get(ctx context.Context, campaignID uuid.UUID, limit int) ([]matching.Match, bool, error) {
	data, err := c.client.Get(ctx, matchKey(campaignID, limit)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var matches []matching.Match
	if err := json.Unmarshal(data, &matches); err != nil {
		return nil, false, err
	}
	return matches, true, nil
}

func (c *MatchCache) Set(ctx context.Context, campaignID uuid.UUID, limit int, matches []matching.Match) error {
	if c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(matches)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, matchKey(campaignID, limit), data, c.ttl).Err()
}

// Invalidate drops every cached limit for the campaign.
func (c *MatchCache) Invalidate(ctx context.Context, campaignID uuid.UUID) error {
	iter := c.client.Scan(ctx, 0, fmt.Sprintf("match:%s:*", campaignID), 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
