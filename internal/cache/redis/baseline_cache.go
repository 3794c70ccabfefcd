package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sidepot/settler/internal/domain"
)

// DefaultBaselineTTL bounds the lifetime of baseline entries. Deletion on
// wager settlement is best-effort; the TTL is the real leak guard.
const DefaultBaselineTTL = 12 * time.Hour

// BaselineCache implements domain.BaselineCache with JSON values under a
// per-mode key prefix.
//
// Key schema:
//
//	baseline:{mode}:{wagerID} - JSON-serialized per-mode snapshot
type BaselineCache struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewBaselineCache creates a BaselineCache for one mode. A zero ttl falls
// back to DefaultBaselineTTL.
func NewBaselineCache(c *Client, modeKey string, ttl time.Duration) *BaselineCache {
	if ttl <= 0 {
		ttl = DefaultBaselineTTL
	}
	return &BaselineCache{
		rdb:    c.Underlying(),
		prefix: "baseline:" + modeKey + ":",
		ttl:    ttl,
	}
}

func (bc *BaselineCache) key(wagerID string) string {
	return bc.prefix + wagerID
}

// Get reads the baseline for the wager into dest. A missing key returns
// (false, nil); backend failures return an error which callers treat as "no
// baseline yet".
func (bc *BaselineCache) Get(ctx context.Context, wagerID string, dest any) (bool, error) {
	data, err := bc.rdb.Get(ctx, bc.key(wagerID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis: get baseline %s: %w", wagerID, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("redis: unmarshal baseline %s: %w", wagerID, err)
	}
	return true, nil
}

// PutNX stores the baseline only when none exists yet. Re-capture is a no-op:
// the original capture instant is what settlement fairness is measured from.
func (bc *BaselineCache) PutNX(ctx context.Context, wagerID string, v any) (bool, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("redis: marshal baseline %s: %w", wagerID, err)
	}
	created, err := bc.rdb.SetNX(ctx, bc.key(wagerID), data, bc.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: setnx baseline %s: %w", wagerID, err)
	}
	return created, nil
}

// Put unconditionally overwrites the baseline.
func (bc *BaselineCache) Put(ctx context.Context, wagerID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal baseline %s: %w", wagerID, err)
	}
	if err := bc.rdb.Set(ctx, bc.key(wagerID), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set baseline %s: %w", wagerID, err)
	}
	return nil
}

// Delete removes the baseline.
func (bc *BaselineCache) Delete(ctx context.Context, wagerID string) error {
	if err := bc.rdb.Del(ctx, bc.key(wagerID)).Err(); err != nil {
		return fmt.Errorf("redis: delete baseline %s: %w", wagerID, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.BaselineCache = (*BaselineCache)(nil)
