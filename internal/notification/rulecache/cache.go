// Package rulecache keeps the scheduled-rule index in Redis so the daily tick
// does not hit Postgres for a mostly-static rule set.
package rulecache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"whatsapp-dispatch/internal/models"
)

const scheduledKey = "whatsapp:rules:scheduled"

// ErrMiss is returned when the index is not cached.
var ErrMiss = errors.New("rule cache miss")

// Cache stores the scheduled-rule list as one JSON blob.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

// Get returns the cached scheduled rules, or ErrMiss.
func (c *Cache) Get(ctx context.Context) ([]*models.Rule, error) {
	data, err := c.client.Get(ctx, scheduledKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("rule cache get: %w", err)
	}

	var rules []*models.Rule
	if err := json.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("rule cache decode: %w", err)
	}
	return rules, nil
}

// Set replaces the cached scheduled-rule list.
func (c *Cache) Set(ctx context.Context, rules []*models.Rule) error {
	data, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("rule cache encode: %w", err)
	}
	if err := c.client.Set(ctx, scheduledKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("rule cache set: %w", err)
	}
	return nil
}

// Invalidate drops the whole index. Any rule change may alter the scheduled
// set, so per-rule invalidation buys nothing.
func (c *Cache) Invalidate(ctx context.Context, ruleID string) error {
	if err := c.client.Del(ctx, scheduledKey).Err(); err != nil {
		return fmt.Errorf("rule cache invalidate (rule %s): %w", ruleID, err)
	}
	return nil
}
