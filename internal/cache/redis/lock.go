package redis

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

var (
	//go:embed scripts/lease_release.lua
	leaseReleaseSource string
	//go:embed scripts/lease_extend.lua
	leaseExtendSource string

	leaseRelease = redis.NewScript(leaseReleaseSource)
	leaseExtend  = redis.NewScript(leaseExtendSource)
)

const (
	lockPrefix     = "lock:"
	releaseTimeout = 5 * time.Second
)

// LockManager hands out leases stored as SET NX PX keys holding a random
// token. Only the holder's token can extend or release a lease, so a process
// that lost its lease to expiry cannot disturb the new holder.
type LockManager struct {
	rdb *redis.Client

	mu   sync.Mutex
	held map[string]string // key -> token
}

func NewLockManager(c *Client) *LockManager {
	return &LockManager{rdb: c.Underlying(), held: make(map[string]string)}
}

// Acquire takes the lease for key or fails with domain.ErrLockHeld. The
// release func may be called any number of times.
func (lm *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	won, err := lm.rdb.SetNX(ctx, lockPrefix+key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: lock %s: %w", key, err)
	}
	if !won {
		return nil, domain.ErrLockHeld
	}

	lm.mu.Lock()
	lm.held[key] = token
	lm.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { lm.release(key, token) }) }, nil
}

func (lm *LockManager) release(key, token string) {
	lm.mu.Lock()
	if lm.held[key] == token {
		delete(lm.held, key)
	}
	lm.mu.Unlock()

	// Runs on shutdown paths where the caller's context is already done.
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	_ = leaseRelease.Run(ctx, lm.rdb, []string{lockPrefix + key}, token).Err()
}

// Refresh pushes the lease expiry out to ttl from now. domain.ErrLockHeld
// means this manager no longer owns key.
func (lm *LockManager) Refresh(ctx context.Context, key string, ttl time.Duration) error {
	lm.mu.Lock()
	token, ok := lm.held[key]
	lm.mu.Unlock()
	if !ok {
		return domain.ErrLockHeld
	}

	extended, err := leaseExtend.Run(ctx, lm.rdb, []string{lockPrefix + key}, token, ttl.Milliseconds()).Int64()
	switch {
	case err != nil:
		return fmt.Errorf("redis: extend lock %s: %w", key, err)
	case extended == 0:
		return domain.ErrLockHeld
	}
	return nil
}

var _ domain.LockManager = (*LockManager)(nil)
