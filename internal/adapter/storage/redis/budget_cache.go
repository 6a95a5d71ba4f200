package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"creator-ledger/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// setIfCurrent writes the entry only while the version key still holds ARGV[1].
var setIfCurrent = goredis.NewScript(`
local v = redis.call('GET', KEYS[2]) or '0'
if v ~= ARGV[1] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[2])
end
return 1
`)

// BudgetCache implements ports.BudgetCache with JSON values under budget:<campaignID>
// and an invalidation counter under budget:ver:<campaignID>.
// Entries are display data; the payout path never reads them.
type BudgetCache struct {
	client goredis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewBudgetCache creates a Redis-backed budget cache.
func NewBudgetCache(client goredis.Cmdable, ttl time.Duration) *BudgetCache {
	return &BudgetCache{
		client: client,
		prefix: "budget:",
		ttl:    ttl,
	}
}

func (c *BudgetCache) key(campaignID uuid.UUID) string {
	return c.prefix + campaignID.String()
}

func (c *BudgetCache) versionKey(campaignID uuid.UUID) string {
	return c.prefix + "ver:" + campaignID.String()
}

// Get returns nil, nil on a miss.
func (c *BudgetCache) Get(ctx context.Context, campaignID uuid.UUID) (*domain.BudgetSummary, error) {
	raw, err := c.client.Get(ctx, c.key(campaignID)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis budget get: %w", err)
	}

	var summary domain.BudgetSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil, fmt.Errorf("decode cached budget: %w", err)
	}
	return &summary, nil
}

func (c *BudgetCache) Version(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	v, err := c.client.Get(ctx, c.versionKey(campaignID)).Int64()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("redis budget version: %w", err)
	}
	return v, nil
}

// Set is a no-op when the campaign was invalidated after version was read.
func (c *BudgetCache) Set(ctx context.Context, summary *domain.BudgetSummary, version int64) error {
	raw, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode budget: %w", err)
	}
	keys := []string{c.key(summary.CampaignID), c.versionKey(summary.CampaignID)}
	if err := setIfCurrent.Run(ctx, c.client, keys, version, raw, c.ttl.Milliseconds()).Err(); err != nil {
		return fmt.Errorf("redis budget set: %w", err)
	}
	return nil
}

func (c *BudgetCache) Invalidate(ctx context.Context, campaignID uuid.UUID) error {
	_, err := c.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Incr(ctx, c.versionKey(campaignID))
		pipe.Del(ctx, c.key(campaignID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis budget invalidate: %w", err)
	}
	return nil
}
