package chromem

import (
	"context"
	"testing"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

func seededStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("", "chunks")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	page := 2
	chunks := []domain.Chunk{
		{ChunkID: "a", DocumentID: "doc-1", Text: "alpha", SectionType: "results", Page: &page, ChunkIndex: 3, Embedding: []float32{1, 0, 0}},
		{ChunkID: "b", DocumentID: "doc-1", Text: "beta", SectionType: "methods", Embedding: []float32{0.7, 0.7, 0}},
		{ChunkID: "c", DocumentID: "doc-2", Text: "gamma", SectionType: "results", Embedding: []float32{0, 1, 0}},
	}
	if err := store.IndexChunks(context.Background(), chunks); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
	return store
}

func TestSearchRanksBySimilarityAndRestoresMetadata(t *testing.T) {
	store := seededStore(t)

	got, err := store.Search(context.Background(), []float32{1, 0, 0}, 10, domain.SearchFilter{})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected limit clamped to collection size, got %d", len(got))
	}
	if got[0].ChunkID != "a" || got[1].ChunkID != "b" {
		t.Fatalf("unexpected order %v, %v", got[0].ChunkID, got[1].ChunkID)
	}
	if got[0].Page == nil || *got[0].Page != 2 || got[0].ChunkIndex != 3 || got[0].SectionType != "results" {
		t.Fatalf("metadata not restored: %+v", got[0].Chunk)
	}
	if got[1].Page != nil {
		t.Fatalf("missing page must stay nil")
	}
}

func TestSearchFiltersByDocument(t *testing.T) {
	store := seededStore(t)

	got, err := store.Search(context.Background(), []float32{1, 0, 0}, 5, domain.SearchFilter{DocumentIDs: []string{"doc-2"}})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(got) != 1 || got[0].ChunkID != "c" {
		t.Fatalf("unexpected filtered hits %+v", got)
	}
}

func TestSearchEmptyCollection(t *testing.T) {
	store, err := Open("", "empty")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, err := store.Search(context.Background(), []float32{1}, 5, domain.SearchFilter{})
	if err != nil || len(got) != 0 {
		t.Fatalf("expected no hits, got %v %v", got, err)
	}
}

func TestIndexChunksRequiresEmbedding(t *testing.T) {
	store, _ := Open("", "x")
	err := store.IndexChunks(context.Background(), []domain.Chunk{{ChunkID: "a", DocumentID: "d", Text: "t"}})
	if err == nil {
		t.Fatalf("expected error for missing embedding")
	}
}
