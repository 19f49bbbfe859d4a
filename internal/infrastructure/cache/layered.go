// Package cache implements the LLM response cache: a go-cache layer in
// every process, optionally backed by a shared store so replicas reuse
// each other's completions.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

// Store is a single cache tier. Lookup reports the entry's absolute expiry;
// a zero time means the tier keeps it until cleared.
type Store interface {
	Lookup(ctx context.Context, key string) (string, time.Time, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Clear(ctx context.Context) (int, error)
	Len(ctx context.Context) (int, error)
}

type Layered struct {
	local  *Memory
	shared Store
	ttl    time.Duration
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// NewLayered builds the response cache. shared may be nil.
func NewLayered(local *Memory, shared Store, ttl time.Duration) *Layered {
	return &Layered{local: local, shared: shared, ttl: ttl, now: time.Now}
}

func (c *Layered) Get(ctx context.Context, key string) (string, bool, error) {
	if val, ok, _ := c.local.Get(ctx, key); ok {
		c.hits.Add(1)
		return val, true, nil
	}
	if c.shared == nil {
		c.misses.Add(1)
		return "", false, nil
	}

	val, expiresAt, ok, err := c.shared.Lookup(ctx, key)
	if err != nil {
		c.misses.Add(1)
		return "", false, fmt.Errorf("shared cache get: %w", err)
	}
	if !ok {
		c.misses.Add(1)
		return "", false, nil
	}
	c.hits.Add(1)
	if ttl := c.promotionTTL(expiresAt); ttl > 0 {
		_ = c.local.Set(ctx, key, val, ttl)
	}
	return val, true, nil
}

// promotionTTL is what is left of a shared entry's lifetime, so a local
// copy never outlives the row it was read from.
func (c *Layered) promotionTTL(expiresAt time.Time) time.Duration {
	if expiresAt.IsZero() {
		return c.ttl
	}
	return min(expiresAt.Sub(c.now()), c.ttl)
}

func (c *Layered) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.ttl
	}
	_ = c.local.Set(ctx, key, value, ttl)
	if c.shared == nil {
		return nil
	}
	if err := c.shared.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("shared cache set: %w", err)
	}
	return nil
}

// Clear drops every entry. The count reported is the authoritative tier's:
// the shared store when present, otherwise the local one.
func (c *Layered) Clear(ctx context.Context) (int, error) {
	localDeleted, _ := c.local.Clear(ctx)
	if c.shared == nil {
		return localDeleted, nil
	}
	deleted, err := c.shared.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("shared cache clear: %w", err)
	}
	return deleted, nil
}

// ClearLocal empties only this process's tier, for peer invalidations.
func (c *Layered) ClearLocal(ctx context.Context) int {
	n, _ := c.local.Clear(ctx)
	slog.Info("local_response_cache_cleared", "deleted", n)
	return n
}

func (c *Layered) Stats(ctx context.Context) (domain.CacheStats, error) {
	hits := c.hits.Load()
	misses := c.misses.Load()
	stats := domain.CacheStats{
		Status:     "enabled",
		Hits:       hits,
		Misses:     misses,
		TTLSeconds: int64(c.ttl / time.Second),
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}

	var tier Store = c.local
	if c.shared != nil {
		tier = c.shared
	}
	keys, err := tier.Len(ctx)
	if err != nil {
		stats.Status = "error"
		return stats, fmt.Errorf("count cache keys: %w", err)
	}
	stats.TotalKeys = keys
	return stats, nil
}
