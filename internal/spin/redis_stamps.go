package spin

import (
	"context"
	"errors"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStamps persists last-spin timestamps in Redis so cooldowns survive
// process restarts and are shared across instances.
type RedisStamps struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStamps(client *redis.Client, cooldown time.Duration) *RedisStamps {
	// Keep the key a bit past the cooldown so an expired stamp simply reads
	// as Ready.
	return &RedisStamps{client: client, ttl: cooldown * 2}
}

func stampKey(userID string) string { return "spin:last:" + userID }

func (r *RedisStamps) Last(ctx context.Context, userID string) (time.Time, bool, error) {
	val, err := r.client.Get(ctx, stampKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, false, nil
	}
	return time.Unix(0, nanos), true, nil
}

func (r *RedisStamps) Touch(ctx context.Context, userID string, t time.Time) error {
	return r.client.Set(ctx, stampKey(userID), strconv.FormatInt(t.UnixNano(), 10), r.ttl).Err()
}
