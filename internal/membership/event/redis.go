package event

import (
	"context"
	"encoding/json"
	"errors"

	redis "github.com/redis/go-redis/v9"
)

type redisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher broadcasts events on a pub/sub channel for caches running
// in other processes.
func NewRedisPublisher(client *redis.Client, channel string) Publisher {
	return &redisPublisher{client: client, channel: channel}
}

func (p *redisPublisher) Publish(ctx context.Context, evt ChangeEvent) error {
	if p.client == nil || p.channel == "" {
		return errors.New("redis publisher not configured")
	}
	payload, err := json.Marshal(stamped(ctx, evt))
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, payload).Err()
}
