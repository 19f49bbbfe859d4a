package ports

import (
	"context"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

// AnswerService is the inbound contract for grounded question answering.
type AnswerService interface {
	Answer(ctx context.Context, req domain.AnswerRequest) (*domain.GroundedAnswer, error)
}

// CacheAdmin is the inbound contract for response cache maintenance.
type CacheAdmin interface {
	Stats(ctx context.Context) (domain.CacheStats, error)
	Clear(ctx context.Context) (int, error)
}

// ChunkIndexer loads pre-segmented chunks into the chunk store.
type ChunkIndexer interface {
	Index(ctx context.Context, chunks []domain.Chunk) (int, error)
}
