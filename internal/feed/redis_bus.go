package feed

import (
	"context"
	"encoding/json"

	"rewards_app/internal/logger"

	redis "github.com/redis/go-redis/v9"
)

const redisChannel = "ledger:events"

// RedisBus carries ledger events over Redis pub/sub so live views work when
// the API runs on more than one instance.
type RedisBus struct {
	client *redis.Client
}

func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, redisChannel, payload).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan Event, func()) {
	sub := b.client.Subscribe(ctx, redisChannel)
	out := make(chan Event, 64)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			var ev Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				logger.Warn("feed: dropping malformed event", "error", err)
				continue
			}
			select {
			case out <- ev:
			default:
			}
		}
	}()

	return out, func() { _ = sub.Close() }
}
