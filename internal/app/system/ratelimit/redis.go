package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter is a fixed-window counter kept in Redis so every instance
// shares one budget. When Redis errors, the in-process fallback decides.
type RedisLimiter struct {
	rdb      *redis.Client
	limit    int64
	window   time.Duration
	prefix   string
	fallback *Limiter
	log      *zap.Logger
}

// NewRedis returns a Redis-backed limiter. prefix namespaces its keys.
func NewRedis(rdb *redis.Client, prefix string, limit int, window time.Duration, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{
		rdb:      rdb,
		limit:    int64(limit),
		window:   window,
		prefix:   prefix,
		fallback: New(limit, window),
		log:      log,
	}
}

// Allow implements Checker.
func (l *RedisLimiter) Allow(ctx context.Context, key string) bool {
	k := l.prefix + key
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		l.log.Warn("ratelimit: redis incr failed, using local window", zap.Error(err))
		return l.fallback.Allow(ctx, key)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			l.log.Warn("ratelimit: redis expire failed", zap.Error(err), zap.String("key", k))
		}
	}
	return n <= l.limit
}

// Reset deletes key's counter.
func (l *RedisLimiter) Reset(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.rdb.Del(ctx, l.prefix+key).Err()
	l.fallback.Reset(key)
}
