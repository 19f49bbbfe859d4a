package ports

import (
	"context"
	"time"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -destination=mocks/mock_outbound.go -package=mocks github.com/kirillkom/prism-answer/internal/core/ports ChunkStore,Embedder,CrossEncoder,Completer,ResponseCache

// ChunkStore is the nearest-neighbour index over document chunks.
type ChunkStore interface {
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredChunk, error)
	IndexChunks(ctx context.Context, chunks []domain.Chunk) error
}

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// CrossEncoder scores (query, passage) pairs. Returned values are raw logits
// in the same order as texts.
type CrossEncoder interface {
	Score(ctx context.Context, query string, texts []string) ([]float64, error)
}

// Completer is a single prompt-in, text-out LLM call.
type Completer interface {
	Complete(ctx context.Context, prompt string, opts domain.CompletionOptions) (string, error)
}

type ResponseCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Clear(ctx context.Context) (int, error)
	Stats(ctx context.Context) (domain.CacheStats, error)
}

// CacheInvalidationPublisher tells peer processes to drop their local cache.
type CacheInvalidationPublisher interface {
	PublishCacheCleared(ctx context.Context, origin string) error
}
