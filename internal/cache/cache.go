package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/unrepo/devportal/internal/config"
	"github.com/unrepo/devportal/internal/database"
)

// Store keeps the last generated secret per slot, partitioned by namespace
type Store interface {
	Put(ctx context.Context, namespace, slot, secret string) error
	Get(ctx context.Context, namespace, slot string) (string, bool, error)
	Close() error
}

// Scoped is the view of a Store for one identity
type Scoped struct {
	store     Store
	namespace string
}

// ForIdentity scopes store to identity. The identity is hashed so raw emails
// never become cache keys.
func ForIdentity(store Store, identity string) *Scoped {
	sum := sha256.Sum256([]byte(identity))
	return &Scoped{store: store, namespace: hex.EncodeToString(sum[:16])}
}

func (s *Scoped) Put(ctx context.Context, slot, secret string) error {
	return s.store.Put(ctx, s.namespace, slot, secret)
}

func (s *Scoped) Get(ctx context.Context, slot string) (string, bool, error) {
	return s.store.Get(ctx, s.namespace, slot)
}

// Open builds the Store selected by configuration
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.Cache.Backend {
	case "redis":
		r, err := NewRedis(ctx, cfg.Redis.URL, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info().Msg("Key cache backed by Redis")
		return r, nil
	case "postgres":
		db, err := database.New(cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		log.Info().Msg("Key cache backed by Postgres")
		return NewPostgres(db, cfg.Cache.TTL), nil
	default:
		return NewMemory(cfg.Cache.TTL), nil
	}
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
