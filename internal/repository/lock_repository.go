package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/sma-seating-api/pkg/errors"
)

const lockKeyPrefix = "seating:lock:"

// Deletes the key only when it still holds our token, so an expired lock
// re-acquired by another holder is never released by mistake.
var releaseLockScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// LockRepository serialises maintenance operations across instances with a
// Redis SET NX lease. Without Redis it falls back to a process-local lock.
type LockRepository struct {
	client *redis.Client

	mu    sync.Mutex
	local map[string]string
}

// NewLockRepository constructs the lock store. client may be nil.
func NewLockRepository(client *redis.Client) *LockRepository {
	return &LockRepository{client: client, local: make(map[string]string)}
}

// Acquire takes the named lease for ttl. It returns LOCKED if another holder
// owns it. The returned function releases the lease.
func (r *LockRepository) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()

	if r.client == nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, held := r.local[key]; held {
			return nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("%s is already running", name))
		}
		r.local[key] = token
		return func(context.Context) error {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.local[key] == token {
				delete(r.local, key)
			}
			return nil
		}, nil
	}

	ok, err := r.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis acquire %s: %w", key, err)
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrLocked, fmt.Sprintf("%s is already running", name))
	}
	return func(releaseCtx context.Context) error {
		if err := releaseLockScript.Run(releaseCtx, r.client, []string{key}, token).Err(); err != nil && err != redis.Nil {
			return fmt.Errorf("redis release %s: %w", key, err)
		}
		return nil
	}, nil
}
