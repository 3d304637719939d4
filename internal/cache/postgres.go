package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/unrepo/devportal/internal/database"
	"github.com/unrepo/devportal/internal/monitoring"
)

// Postgres is a Store backed by the portal_key_cache table
type Postgres struct {
	db  *database.DB
	ttl time.Duration
	now func() time.Time
}

// NewPostgres creates a Postgres store; the schema comes from database migrations
func NewPostgres(db *database.DB, ttl time.Duration) *Postgres {
	return &Postgres{db: db, ttl: ttl, now: time.Now}
}

func (p *Postgres) Put(ctx context.Context, namespace, slot, secret string) error {
	start := time.Now()
	var expiresAt *time.Time
	if exp := expiry(p.now(), p.ttl); !exp.IsZero() {
		expiresAt = &exp
	}

	_, err := p.db.Pool.Exec(ctx, `
		INSERT INTO portal_key_cache (namespace, slot, secret, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (namespace, slot)
		DO UPDATE SET secret = EXCLUDED.secret, expires_at = EXCLUDED.expires_at, updated_at = NOW()
	`, namespace, slot, secret, expiresAt)
	monitoring.RecordDBQuery("key_cache_put", time.Since(start))
	p.db.ReportStats()
	monitoring.RecordCacheWrite("postgres", err)
	if err != nil {
		return fmt.Errorf("failed to store cached key: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, namespace, slot string) (string, bool, error) {
	start := time.Now()
	var secret string
	err := p.db.Pool.QueryRow(ctx, `
		SELECT secret FROM portal_key_cache
		WHERE namespace = $1 AND slot = $2 AND (expires_at IS NULL OR expires_at > $3)
	`, namespace, slot, p.now()).Scan(&secret)
	monitoring.RecordDBQuery("key_cache_get", time.Since(start))
	p.db.ReportStats()

	if errors.Is(err, pgx.ErrNoRows) {
		monitoring.RecordCacheMiss("postgres")
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached key: %w", err)
	}
	monitoring.RecordCacheHit("postgres")
	return secret, true, nil
}

// Purge deletes expired rows and returns how many were removed
func (p *Postgres) Purge(ctx context.Context) (int64, error) {
	tag, err := p.db.Pool.Exec(ctx, `DELETE FROM portal_key_cache WHERE expires_at IS NOT NULL AND expires_at <= $1`, p.now())
	if err != nil {
		return 0, fmt.Errorf("failed to purge key cache: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Health checks if the database is reachable
func (p *Postgres) Health(ctx context.Context) error {
	return p.db.Health(ctx)
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
