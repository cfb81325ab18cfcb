package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Limiter admits at most limit events per key within a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// NewLimiter returns the redis limiter when the store is redis backed and an
// always-allow limiter otherwise.
func NewLimiter(store Store) Limiter {
	if l, ok := store.(Limiter); ok {
		return l
	}
	return noopLimiter{}
}

type noopLimiter struct{}

func (noopLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

// slidingWindow trims entries older than the window, then records the call if
// the remaining count is below the limit. Returns 1 when admitted.
var slidingWindow = goredis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window_start = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local member = ARGV[4]
local limit = tonumber(ARGV[5])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
if redis.call('ZCARD', key) < limit then
  redis.call('ZADD', key, now, member)
  redis.call('PEXPIRE', key, ttl)
  return 1
end
return 0
`)

func (s *redisStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 || window <= 0 {
		return true, nil
	}
	now := time.Now()
	res, err := slidingWindow.Run(ctx, s.client, []string{"ratelimit:" + key},
		now.UnixMilli(),
		now.Add(-window).UnixMilli(),
		window.Milliseconds(),
		fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString()),
		limit,
	).Int()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}
