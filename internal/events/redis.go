package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// DefaultChannel is the Redis pub/sub channel events are published to.
const DefaultChannel = "allocation:events"

// Redis publishes events as JSON onto a Redis pub/sub channel so dashboards
// and other processes can follow along. Publish failures are logged and
// swallowed; the scheduler must never stall on the event sink.
type Redis struct {
	Client  *redis.Client
	Channel string
	Logger  zerolog.Logger
}

func NewRedis(addr, password string, db int, logger zerolog.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{Client: client, Channel: DefaultChannel, Logger: logger}
}

func (r *Redis) Publish(ctx context.Context, e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		r.Logger.Error().Err(err).Str("kind", e.Kind).Msg("failed to encode event")
		return
	}
	channel := r.Channel
	if channel == "" {
		channel = DefaultChannel
	}
	if err := r.Client.Publish(ctx, channel, payload).Err(); err != nil {
		r.Logger.Error().Err(err).Str("kind", e.Kind).Msg("failed to publish event")
	}
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
