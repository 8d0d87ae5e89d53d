package publisher

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisChannel carries every waypoint event as JSON.
const RedisChannel = "dv8:waypoints"

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

type RedisPublisher struct {
	client redisClient
	logger *slog.Logger
}

func NewRedisPublisher(url string, logger *slog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisPublisher{client: redis.NewClient(opts), logger: logger}, nil
}

func (p *RedisPublisher) sinkName() string { return "redis" }

func (p *RedisPublisher) Publish(ctx context.Context, ev WaypointEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, RedisChannel, data).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
