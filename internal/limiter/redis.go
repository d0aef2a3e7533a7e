package limiter

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCmdable is the subset of *redis.Client the limiter needs.
type redisCmdable interface {
	PTTL(ctx context.Context, key string) *redis.DurationCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Redis is a limiter backed by expiring Redis keys: a failure counter living
// for one window and a block marker living for the lockout period.
type Redis struct {
	rdb    redisCmdable
	prefix string
	policy Policy
}

// NewRedis constructs a Redis-backed limiter. Keys are namespaced by prefix.
func NewRedis(rdb redisCmdable, prefix string, p Policy) *Redis {
	if prefix == "" {
		prefix = "limiter"
	}
	return &Redis{rdb: rdb, prefix: prefix, policy: p}
}

func (l *Redis) keys(subject string, ipHash []byte) (fails, block string) {
	base := l.prefix + ":" + subject + ":" + hex.EncodeToString(ipHash)
	return base + ":fails", base + ":block"
}

// Allow reports whether an attempt is currently allowed and a retry-after duration.
func (l *Redis) Allow(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	_, block := l.keys(subject, ipHash)
	ttl, err := l.rdb.PTTL(ctx, block).Result()
	if err != nil {
		return false, 0, err
	}
	// -2 missing, -1 no expiry (never set by us)
	if ttl > 0 {
		return false, ttl, nil
	}
	return true, 0, nil
}

// Success resets counters for (subject, ip).
func (l *Redis) Success(ctx context.Context, subject string, ipHash []byte) error {
	fails, block := l.keys(subject, ipHash)
	return l.rdb.Del(ctx, fails, block).Err()
}

// Failure records a failed attempt; may set a block for the lockout period.
func (l *Redis) Failure(ctx context.Context, subject string, ipHash []byte) (bool, time.Duration, error) {
	fails, block := l.keys(subject, ipHash)
	n, err := l.rdb.Incr(ctx, fails).Result()
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		if err := l.rdb.PExpire(ctx, fails, l.policy.Window).Err(); err != nil {
			return false, 0, err
		}
	}
	if n < int64(l.policy.MaxFails) {
		return false, 0, nil
	}
	if err := l.rdb.Set(ctx, block, "1", l.policy.BlockFor).Err(); err != nil {
		return false, 0, err
	}
	if err := l.rdb.Del(ctx, fails).Err(); err != nil {
		return false, 0, err
	}
	return true, l.policy.BlockFor, nil
}
