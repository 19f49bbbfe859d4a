package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/mock/gomock"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports/mocks"
)

type publisherFake struct {
	origins []string
	err     error
}

func (p *publisherFake) PublishCacheCleared(_ context.Context, origin string) error {
	p.origins = append(p.origins, origin)
	return p.err
}

func TestCacheAdminClearBroadcasts(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockResponseCache(ctrl)
	cache.EXPECT().Clear(gomock.Any()).Return(3, nil)

	publisher := &publisherFake{err: errors.New("nats down")}
	uc := NewCacheAdminUseCase(cache, publisher, "api-1")

	deleted, err := uc.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3 deleted, got %d", deleted)
	}
	if len(publisher.origins) != 1 || publisher.origins[0] != "api-1" {
		t.Fatalf("expected one broadcast from api-1, got %v", publisher.origins)
	}
}

func TestCacheAdminClearFailureSkipsBroadcast(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockResponseCache(ctrl)
	cache.EXPECT().Clear(gomock.Any()).Return(0, errors.New("db down"))

	publisher := &publisherFake{}
	uc := NewCacheAdminUseCase(cache, publisher, "api-1")

	if _, err := uc.Clear(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(publisher.origins) != 0 {
		t.Fatalf("must not broadcast after a failed clear")
	}
}

func TestCacheAdminStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	cache := mocks.NewMockResponseCache(ctrl)
	cache.EXPECT().Stats(gomock.Any()).Return(domain.CacheStats{Status: "ok", Hits: 4, Misses: 1, HitRate: 0.8}, nil)

	stats, err := NewCacheAdminUseCase(cache, nil, "").Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Hits != 4 || stats.HitRate != 0.8 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}
