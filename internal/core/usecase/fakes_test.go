package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

type embedderFake struct {
	queries []string
	err     error
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.queries = append(f.queries, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type chunkStoreFake struct {
	results []domain.ScoredChunk
	err     error

	limit   int
	filter  domain.SearchFilter
	indexed []domain.Chunk
}

func (f *chunkStoreFake) Search(_ context.Context, _ []float32, limit int, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	f.limit = limit
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	if len(f.results) > limit {
		return f.results[:limit], nil
	}
	return f.results, nil
}

func (f *chunkStoreFake) IndexChunks(_ context.Context, chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.indexed = append(f.indexed, chunks...)
	return nil
}

// crossEncoderFake scores by looking the passage text up in logits.
type crossEncoderFake struct {
	logits map[string]float64
	err    error
	calls  int
	texts  []string
}

func (f *crossEncoderFake) Score(_ context.Context, _ string, texts []string) ([]float64, error) {
	f.calls++
	f.texts = texts
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(texts))
	for i, t := range texts {
		out[i] = f.logits[t]
	}
	return out, nil
}

// completerFake answers prompts in call order and records them.
type completerFake struct {
	responses []string
	errs      []error
	prompts   []string
	opts      []domain.CompletionOptions
}

func (f *completerFake) Complete(_ context.Context, prompt string, opts domain.CompletionOptions) (string, error) {
	i := len(f.prompts)
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "", nil
}

type responseCacheFake struct {
	mu      sync.Mutex
	entries map[string]string
	ttls    map[string]time.Duration
	getErr  error
	putErr  error
}

func newResponseCacheFake() *responseCacheFake {
	return &responseCacheFake{entries: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *responseCacheFake) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.entries[key]
	return v, ok, nil
}

func (f *responseCacheFake) Put(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	f.entries[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *responseCacheFake) Clear(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := len(f.entries)
	f.entries = map[string]string{}
	return n, nil
}

func (f *responseCacheFake) Stats(context.Context) (domain.CacheStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return domain.CacheStats{Status: "ok", TotalKeys: len(f.entries)}, nil
}

type observerFake struct {
	mu       sync.Mutex
	stages   []string
	degraded []string
	hits     int
	misses   int
	answers  []string
}

func (o *observerFake) ObserveStage(stage string, _ time.Duration, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages = append(o.stages, stage)
}

func (o *observerFake) ObserveDegraded(reason string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.degraded = append(o.degraded, reason)
}

func (o *observerFake) ObserveCache(hit bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if hit {
		o.hits++
		return
	}
	o.misses++
}

func (o *observerFake) ObserveAnswer(status string, _ float64, _ int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.answers = append(o.answers, status)
}

func scored(id, doc, section string, page *int, idx int, sim float64, text string) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ChunkID:     id,
			DocumentID:  doc,
			Text:        text,
			Page:        page,
			SectionType: section,
			ChunkIndex:  idx,
		},
		Similarity: sim,
	}
}

func intPtr(v int) *int { return &v }
