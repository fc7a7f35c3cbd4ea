package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reedfamily/chatlog/internal/config"
)

// RedisPublisher pushes entries onto a pub/sub channel so that several
// servers writing to one store can be watched from one place.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(cfg config.Redis) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisPublisher{client: client, channel: cfg.Channel}, nil
}

func (r *RedisPublisher) Publish(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *RedisPublisher) Close() error {
	return r.client.Close()
}
