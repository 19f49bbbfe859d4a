// Package chromem is an embedded, file-backed chunk store for single-node
// deployments and the CLI.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

var errNoEmbedding = errors.New("chunk embeddings are computed before indexing")

type Store struct {
	collection *chromem.Collection
}

// Open loads (or creates) the collection persisted under path. An empty
// path keeps everything in memory.
func Open(path, collection string) (*Store, error) {
	var (
		db  *chromem.DB
		err error
	)
	if path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, domain.WrapError(domain.ErrIndexUnavailable, "open chromem db", err)
		}
	}

	coll, err := db.GetOrCreateCollection(collection, nil, rejectEmbedding)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "open chromem collection", err)
	}
	return &Store{collection: coll}, nil
}

func rejectEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

func (s *Store) IndexChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	docs := make([]chromem.Document, 0, len(chunks))
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("chunk %s: %w", chunk.ChunkID, errNoEmbedding)
		}
		meta := map[string]string{
			"document_id":  chunk.DocumentID,
			"section_type": chunk.SectionType,
			"chunk_index":  strconv.Itoa(chunk.ChunkIndex),
		}
		if chunk.Page != nil {
			meta["page"] = strconv.Itoa(*chunk.Page)
		}
		docs = append(docs, chromem.Document{
			ID:        chunk.ChunkID,
			Metadata:  meta,
			Embedding: chunk.Embedding,
			Content:   chunk.Text,
		})
	}
	if err := s.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return domain.WrapError(domain.ErrIndexUnavailable, "chromem add documents", err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	count := s.collection.Count()
	if count == 0 || limit <= 0 {
		return nil, nil
	}
	n := min(limit, count)

	// chromem filters by exact metadata match, so a multi-document filter
	// becomes one query per document.
	wheres := []map[string]string{nil}
	if len(filter.DocumentIDs) > 0 {
		wheres = wheres[:0]
		for _, id := range filter.DocumentIDs {
			wheres = append(wheres, map[string]string{"document_id": id})
		}
	}

	var out []domain.ScoredChunk
	for _, where := range wheres {
		results, err := s.collection.QueryEmbedding(ctx, queryVector, n, where, nil)
		if err != nil {
			return nil, domain.WrapError(domain.ErrIndexUnavailable, "chromem query", err)
		}
		for _, r := range results {
			out = append(out, toScoredChunk(r))
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Similarity > out[j].Similarity
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Count() int {
	return s.collection.Count()
}

func toScoredChunk(r chromem.Result) domain.ScoredChunk {
	chunk := domain.Chunk{
		ChunkID:     r.ID,
		DocumentID:  r.Metadata["document_id"],
		Text:        r.Content,
		SectionType: r.Metadata["section_type"],
	}
	if idx, err := strconv.Atoi(r.Metadata["chunk_index"]); err == nil {
		chunk.ChunkIndex = idx
	}
	if raw, ok := r.Metadata["page"]; ok {
		if page, err := strconv.Atoi(raw); err == nil {
			chunk.Page = &page
		}
	}
	return domain.ScoredChunk{Chunk: chunk, Similarity: float64(r.Similarity)}
}
