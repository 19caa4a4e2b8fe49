package eventx

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/veridian-id/veridian/pkg/errx"
)

// RedisPublisher fans events out over a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errx.Wrap(err, "failed to marshal event", errx.TypeInternal)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return errx.Wrap(err, "failed to publish event", errx.TypeExternal).
			WithDetail("event_type", event.Type)
	}
	return nil
}
