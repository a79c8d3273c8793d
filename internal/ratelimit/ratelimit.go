// Package ratelimit caps message submission per user with a
// fixed-window counter in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter answers "may this user send another message right now".
type Limiter interface {
	Allow(ctx context.Context, userID uuid.UUID) (bool, error)
}

// Defaults: at most 20 accepted sends per 60-second window per user.
const (
	DefaultLimit  = 20
	DefaultWindow = 60 * time.Second
)

// RedisLimiter implements Limiter with an INCR-per-window-bucket
// counter. The bucket key embeds the window number, so counters roll
// over naturally and expired buckets are reclaimed by TTL.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration) *RedisLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow increments the user's counter for the current window and
// reports whether the send is within the cap. The increment happens
// before the comparison, so a denied request still burns nothing:
// only the limiter's counter moves, no message is stored.
func (l *RedisLimiter) Allow(ctx context.Context, userID uuid.UUID) (bool, error) {
	key := bucketKey(userID, l.now(), l.window)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// Twice the window so a bucket straddling a boundary is still
	// readable just after rollover.
	pipe.Expire(ctx, key, l.window*2)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("rate limit incr: %w", err)
	}

	return withinCap(incr.Val(), l.limit), nil
}

// withinCap decides whether the nth accepted send of a window still
// fits: counts run 1..limit, so exactly limit sends pass and the
// next one is rejected.
func withinCap(count int64, limit int) bool {
	return count <= int64(limit)
}

func bucketKey(userID uuid.UUID, now time.Time, window time.Duration) string {
	bucket := now.Unix() / int64(window.Seconds())
	return fmt.Sprintf("ratelimit:send:%s:%d", userID, bucket)
}
