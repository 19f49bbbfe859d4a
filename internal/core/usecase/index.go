package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
)

const embedBatchSize = 32

// IndexUseCase loads chunks produced by an external segmenter into the
// chunk store, embedding any that arrive without a vector.
type IndexUseCase struct {
	embedder ports.Embedder
	store    ports.ChunkStore
}

func NewIndexUseCase(embedder ports.Embedder, store ports.ChunkStore) *IndexUseCase {
	return &IndexUseCase{embedder: embedder, store: store}
}

func (uc *IndexUseCase) Index(ctx context.Context, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	for i, c := range chunks {
		if strings.TrimSpace(c.ChunkID) == "" || strings.TrimSpace(c.DocumentID) == "" || strings.TrimSpace(c.Text) == "" {
			return 0, domain.WrapError(domain.ErrInvalidInput, "index chunks", fmt.Errorf("chunk %d: chunk_id, document_id and text are required", i))
		}
	}

	chunks = slices.Clone(chunks)
	var pending []int
	for i := range chunks {
		if len(chunks[i].Embedding) == 0 {
			pending = append(pending, i)
		}
	}
	for start := 0; start < len(pending); start += embedBatchSize {
		batch := pending[start:min(start+embedBatchSize, len(pending))]
		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = chunks[idx].Text
		}
		vectors, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("embed chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return 0, fmt.Errorf("embed chunks: got %d vectors for %d texts", len(vectors), len(batch))
		}
		for j, idx := range batch {
			chunks[idx].Embedding = vectors[j]
		}
	}

	if err := uc.store.IndexChunks(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	return len(chunks), nil
}
