package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/artindexer/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowSource string

var slidingWindow = redis.NewScript(slidingWindowSource)

const rateLimitPrefix = "ratelimit:"

// RateLimiter is a sliding-window limiter over a sorted set per key. All API
// replicas pointed at the same Redis share one budget per client.
type RateLimiter struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{rdb: c.Underlying(), now: time.Now}
}

// Allow counts one request against key and reports whether it stayed within
// limit for the trailing window. Rejected requests are not counted.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	res, err := slidingWindow.Run(ctx, rl.rdb,
		[]string{rateLimitPrefix + key},
		rl.now().UnixMicro(), window.Microseconds(), limit,
	).Int64Slice()
	switch {
	case err != nil:
		return false, fmt.Errorf("redis: allow %s: %w", key, err)
	case len(res) != 2:
		return false, fmt.Errorf("redis: allow %s: script returned %d values", key, len(res))
	}
	return res[0] == 1, nil
}

var _ domain.RateLimiter = (*RateLimiter)(nil)
