package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/omnivault/omnivault/internal/domain"
)

// Conditional delete: the lock key is removed only when it still holds the
// caller's token, so an expired-and-reacquired lock is never released by the
// previous holder.
const releaseScript = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager is a Redis-backed domain.LockManager: SETNX with TTL to
// acquire, token-checked Lua delete to release. Used to keep exactly one
// rebalance runner active across node replicas.
type LockManager struct {
	rdb     *redis.Client
	release *redis.Script
}

// NewLockManager creates a LockManager sharing the given client's pool.
func NewLockManager(c *Client) *LockManager {
	return &LockManager{
		rdb:     c.Underlying(),
		release: redis.NewScript(releaseScript),
	}
}

// Acquire takes the named lock for at most ttl. The returned release function
// is idempotent. Returns domain.ErrLockHeld when another holder owns the key.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.New().String()
	redisKey := "lock:" + key

	ok, err := lm.rdb.SetNX(ctx, redisKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	var done bool
	return func() {
		if done {
			return
		}
		done = true
		// Release on a fresh context: the caller's may already be cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = lm.release.Run(rctx, lm.rdb, []string{redisKey}, token).Err()
	}, nil
}

var _ domain.LockManager = (*LockManager)(nil)
