package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/unrepo/devportal/internal/monitoring"
)

// Redis is a Store shared by every portal replica
type Redis struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to redisURL and verifies the connection
func NewRedis(ctx context.Context, redisURL string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	log.Info().Msg("Redis connection established")
	return &Redis{Client: client, ttl: ttl}, nil
}

func redisKey(namespace, slot string) string {
	return fmt.Sprintf("portal:keycache:%s:%s", namespace, slot)
}

func (r *Redis) Put(ctx context.Context, namespace, slot, secret string) error {
	err := r.Client.Set(ctx, redisKey(namespace, slot), secret, r.ttl).Err()
	monitoring.RecordCacheWrite("redis", err)
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, namespace, slot string) (string, bool, error) {
	secret, err := r.Client.Get(ctx, redisKey(namespace, slot)).Result()
	if errors.Is(err, redis.Nil) {
		monitoring.RecordCacheMiss("redis")
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	monitoring.RecordCacheHit("redis")
	return secret, true, nil
}

// Health checks if redis is reachable
func (r *Redis) Health(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
