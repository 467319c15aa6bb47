// Package cache provides the Redis-backed live stock cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lpgstock/internal/core/id"
	"lpgstock/internal/domain/movement"
	"lpgstock/internal/domain/stockreport"
)

// InvalidationChannel receives the agency ID whenever its stock changes.
const InvalidationChannel = "stock.bump"

var (
	_ stockreport.Cache    = (*LiveStock)(nil)
	_ movement.Invalidator = (*LiveStock)(nil)
)

// LiveStock caches per-agency live stock rows under versioned keys.
// Invalidation increments the agency's version, so stale entries are simply
// never read again and age out with their TTL.
type LiveStock struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLiveStock creates the cache.
func NewLiveStock(client *redis.Client, ttl time.Duration) *LiveStock {
	return &LiveStock{client: client, ttl: ttl}
}

func versionKey(agencyID id.ID) string {
	return "stock:live:version:" + agencyID.String()
}

// version returns the agency's current version, initialising it when missing.
func (c *LiveStock) version(ctx context.Context, agencyID id.ID) (int64, error) {
	key := versionKey(agencyID)
	ver, err := c.client.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		// SetNX so a concurrent bump is never overwritten.
		if err := c.client.SetNX(ctx, key, 1, 0).Err(); err != nil {
			return 0, err
		}
		return c.client.Get(ctx, key).Int64()
	}
	if err != nil {
		return 0, err
	}
	return ver, nil
}

func (c *LiveStock) rowsKey(ctx context.Context, agencyID id.ID) (string, error) {
	ver, err := c.version(ctx, agencyID)
	if err != nil {
		return "", fmt.Errorf("live stock version: %w", err)
	}
	return fmt.Sprintf("stock:live:%s:%d", agencyID, ver), nil
}

// Load implements stockreport.Cache.
func (c *LiveStock) Load(ctx context.Context, agencyID id.ID) ([]stockreport.Row, bool, error) {
	key, err := c.rowsKey(ctx, agencyID)
	if err != nil {
		return nil, false, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get live stock: %w", err)
	}

	var rows []stockreport.Row
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, false, fmt.Errorf("decode live stock: %w", err)
	}
	return rows, true, nil
}

// Store implements stockreport.Cache.
func (c *LiveStock) Store(ctx context.Context, agencyID id.ID, rows []stockreport.Row) error {
	key, err := c.rowsKey(ctx, agencyID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode live stock: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set live stock: %w", err)
	}
	return nil
}

// InvalidateAgency implements movement.Invalidator.
func (c *LiveStock) InvalidateAgency(ctx context.Context, agencyID id.ID) error {
	if err := c.client.Incr(ctx, versionKey(agencyID)).Err(); err != nil {
		return fmt.Errorf("bump live stock version: %w", err)
	}
	return c.client.Publish(ctx, InvalidationChannel, agencyID.String()).Err()
}

// Ping checks Redis connectivity.
func (c *LiveStock) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
