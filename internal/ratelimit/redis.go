package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisKeyPrefix = "ratelimit:"

// Redis is a Limiter backed by a shared Redis counter, for horizontally
// scaled deployments where a process-local window would let each instance
// grant its own budget. INCR + a window-scoped expiry gives the same fixed
// window semantics as Memory.
type Redis struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	log    *zap.Logger
}

// NewRedis creates a Redis-backed limiter allowing max attempts per window.
func NewRedis(rdb *redis.Client, max int, window time.Duration, log *zap.Logger) *Redis {
	return &Redis{rdb: rdb, max: max, window: window, log: log}
}

func (r *Redis) Allow(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	k := redisKeyPrefix + key
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, k)
	ttl := pipe.TTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil {
		// Fail open: a Redis outage must not lock every user out of login.
		r.log.Warn("rate limiter unavailable, allowing request", zap.Error(err))
		return true
	}
	// A counter with no expiry would never reset, and a limited bucket
	// can never reach the success path that clears it. Arm the window
	// whenever the TTL is missing, not only on the first increment.
	if ttl.Val() < 0 {
		if err := r.rdb.Expire(ctx, k, r.window).Err(); err != nil {
			r.log.Warn("failed to arm rate limit window", zap.String("key", key), zap.Error(err))
		}
	}
	return incr.Val() <= int64(r.max)
}

func (r *Redis) Clear(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.rdb.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		r.log.Warn("failed to clear rate limit", zap.String("key", key), zap.Error(err))
	}
}
