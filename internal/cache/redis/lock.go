package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/alanyoungcy/tokenarb/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes the lock only while it still holds the caller's token.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// LockManager implements domain.LockManager with SET NX and a token-checked
// release. The scanner takes one lock per cycle, so a crashed leader is
// replaced once its lock expires.
//
// Lock values are "<instance>|<uuid>": the instance names the holding
// process for whoever finds the lock taken, the uuid makes release safe.
type LockManager struct {
	rdb      *redis.Client
	instance string
	unlockSc *redis.Script
}

// NewLockManager creates a LockManager backed by c. instance identifies
// this process in lock values, see InstanceID.
func NewLockManager(c *Client, instance string) *LockManager {
	return &LockManager{
		rdb:      c.Underlying(),
		instance: instance,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func lockKey(key string) string {
	return keyPrefix + "lock:" + key
}

// Acquire takes the lock for ttl. When another process has it, the error
// wraps domain.ErrLockHeld and names the holder. The returned unlock is
// idempotent and runs on a fresh context so it works after the caller's
// context is cancelled.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := lm.instance + "|" + uuid.NewString()
	lk := lockKey(key)

	ok, err := lm.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, lm.heldError(ctx, key)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = lm.unlockSc.Run(unlockCtx, lm.rdb, []string{lk}, token).Err()
		})
	}, nil
}

// heldError looks up who holds key. The lock may expire between SETNX and
// GET, in which case the holder is reported as unknown.
func (lm *LockManager) heldError(ctx context.Context, key string) error {
	val, err := lm.rdb.Get(ctx, lockKey(key)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: lock %s: %w", key, domain.ErrLockHeld)
	}
	return fmt.Errorf("redis: lock %s held by %s: %w", key, lockHolder(val), domain.ErrLockHeld)
}

func lockHolder(value string) string {
	instance, _, ok := strings.Cut(value, "|")
	if !ok || instance == "" {
		return "unknown"
	}
	return instance
}

var _ domain.LockManager = (*LockManager)(nil)
