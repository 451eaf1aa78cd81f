// Package notify emits one event per finished cycle.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/go-redis/redis/v8"

	"spiritual-shorts-pipeline/config"
)

// Notifier delivers a cycle event; failures are logged by the caller and never end a cycle
type Notifier interface {
	Notify(ctx context.Context, event interface{}) error
	Close() error
}

// New returns a Redis notifier when notify.redis_url is set, otherwise Nop
func New(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.RedisURL == "" {
		return Nop{}, nil
	}
	return NewRedis(cfg.RedisURL, cfg.Channel)
}

// Redis publishes events as JSON on a Pub/Sub channel
type Redis struct {
	rdb     *redis.Client
	channel string
}

// NewRedis accepts a redis:// URL or a bare host:port
func NewRedis(url, channel string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	log.Printf("[notify] Redis client initialized (%s, channel %s)", opts.Addr, channel)
	return NewRedisClient(redis.NewClient(opts), channel), nil
}

// NewRedisClient wraps an existing client
func NewRedisClient(rdb *redis.Client, channel string) *Redis {
	return &Redis{rdb: rdb, channel: channel}
}

func (r *Redis) Notify(ctx context.Context, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := r.rdb.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to redis: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Nop drops every event
type Nop struct{}

func (Nop) Notify(context.Context, interface{}) error { return nil }
func (Nop) Close() error                              { return nil }
