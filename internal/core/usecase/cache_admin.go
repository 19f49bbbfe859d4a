package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
)

type CacheAdminUseCase struct {
	cache     ports.ResponseCache
	publisher ports.CacheInvalidationPublisher
	origin    string
}

// NewCacheAdminUseCase builds the cache maintenance service. publisher may be
// nil when the process runs alone.
func NewCacheAdminUseCase(cache ports.ResponseCache, publisher ports.CacheInvalidationPublisher, origin string) *CacheAdminUseCase {
	return &CacheAdminUseCase{cache: cache, publisher: publisher, origin: origin}
}

func (uc *CacheAdminUseCase) Stats(ctx context.Context) (domain.CacheStats, error) {
	stats, err := uc.cache.Stats(ctx)
	if err != nil {
		return domain.CacheStats{Status: "error"}, fmt.Errorf("cache stats: %w", err)
	}
	return stats, nil
}

// Clear drops every cached response and asks peers to drop theirs.
func (uc *CacheAdminUseCase) Clear(ctx context.Context) (int, error) {
	deleted, err := uc.cache.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	slog.Info("response_cache_cleared", "deleted", deleted)

	if uc.publisher != nil {
		if err := uc.publisher.PublishCacheCleared(ctx, uc.origin); err != nil {
			slog.Warn("cache_invalidation_publish_failed", "error", err)
		}
	}
	return deleted, nil
}
