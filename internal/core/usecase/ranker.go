package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
)

const (
	DefaultRerankTopK       = 20
	DefaultFinalTopK        = 5
	DefaultMaxCandidatePool = 50
)

type RankerConfig struct {
	RerankTopK          int
	FinalTopK           int
	MaxCandidatePool    int
	ExactSectionBoost   float64
	RelatedSectionBoost float64
	RecallTimeout       time.Duration
	RerankTimeout       time.Duration
}

func (c RankerConfig) normalize() RankerConfig {
	out := c
	if out.RerankTopK <= 0 {
		out.RerankTopK = DefaultRerankTopK
	}
	if out.FinalTopK <= 0 {
		out.FinalTopK = DefaultFinalTopK
	}
	if out.MaxCandidatePool <= 0 {
		out.MaxCandidatePool = DefaultMaxCandidatePool
	}
	return out
}

// candidatePoolSize is how many neighbours recall asks the store for.
func (c RankerConfig) candidatePoolSize() int {
	return min(c.MaxCandidatePool, 2*c.RerankTopK)
}

// CandidateRanker turns a query into ordered, labelled evidence:
// recall, section boost, diversity filter, cross-encoder rerank, top-K.
type CandidateRanker struct {
	classifier *IntentClassifier
	embedder   ports.Embedder
	store      ports.ChunkStore
	scorer     ports.CrossEncoder
	booster    sectionBooster
	observer   PipelineObserver
	cfg        RankerConfig
}

// NewCandidateRanker builds a ranker. scorer may be nil, in which case the
// boosted recall order is final.
func NewCandidateRanker(
	classifier *IntentClassifier,
	embedder ports.Embedder,
	store ports.ChunkStore,
	scorer ports.CrossEncoder,
	observer PipelineObserver,
	cfg RankerConfig,
) *CandidateRanker {
	if classifier == nil {
		classifier = NewIntentClassifier(nil)
	}
	cfg = cfg.normalize()
	return &CandidateRanker{
		classifier: classifier,
		embedder:   embedder,
		store:      store,
		scorer:     scorer,
		booster:    newSectionBooster(cfg.ExactSectionBoost, cfg.RelatedSectionBoost),
		observer:   observerOrNop(observer),
		cfg:        cfg,
	}
}

func (r *CandidateRanker) Rank(
	ctx context.Context,
	query string,
	topK int,
	filter domain.SearchFilter,
) (domain.RankResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.RankResult{}, domain.WrapError(domain.ErrInvalidInput, "rank", fmt.Errorf("query is empty"))
	}
	if topK <= 0 {
		topK = r.cfg.FinalTopK
	}

	intent := r.classifier.Match(query)
	result := domain.RankResult{Intent: intent, Status: domain.RetrievalOK}

	recalled, err := r.recall(ctx, query, filter)
	if err != nil {
		if domain.IsKind(err, domain.ErrIndexNotFound) {
			slog.Info("recall_no_index", "error", err)
			result.Status = domain.RetrievalNoIndex
			return result, nil
		}
		return domain.RankResult{}, err
	}

	candidates := make([]domain.Candidate, 0, len(recalled))
	for _, sc := range recalled {
		// Tombstoned or half-written records.
		if strings.TrimSpace(sc.Text) == "" || sc.DocumentID == "" {
			continue
		}
		candidates = append(candidates, domain.Candidate{Chunk: sc.Chunk, Similarity: sc.Similarity})
	}
	if len(candidates) == 0 {
		result.Status = domain.RetrievalNoResults
		return result, nil
	}

	r.booster.apply(candidates, intent)
	sortByBoosted(candidates)
	candidates = diversify(candidates, r.cfg.RerankTopK)

	reranked := false
	if r.scorer == nil {
		result.Diagnostics = append(result.Diagnostics, domain.DiagnosticRerankDisabled)
	} else if err := r.rerank(ctx, query, candidates); err != nil {
		slog.Warn("rerank_fallback", "error", err, "candidates", len(candidates))
		r.observer.ObserveDegraded(domain.DiagnosticRerankSkipped)
		result.Status = domain.RetrievalDegraded
		result.Diagnostics = append(result.Diagnostics, domain.DiagnosticRerankSkipped)
	} else {
		reranked = true
		sortByRerank(candidates)
	}

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	result.Evidence = toEvidence(candidates, reranked)
	return result, nil
}

func (r *CandidateRanker) recall(ctx context.Context, query string, filter domain.SearchFilter) ([]domain.ScoredChunk, error) {
	recallCtx, cancel := withOptionalTimeout(ctx, r.cfg.RecallTimeout)
	defer cancel()

	start := time.Now()
	vector, err := r.embedder.EmbedQuery(recallCtx, query)
	r.observer.ObserveStage(stageEmbed, time.Since(start), err)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "embed query", err)
	}

	start = time.Now()
	found, err := r.store.Search(recallCtx, vector, r.cfg.candidatePoolSize(), filter)
	r.observer.ObserveStage(stageRecall, time.Since(start), err)
	if err != nil {
		if domain.IsKind(err, domain.ErrIndexNotFound) || domain.IsKind(err, domain.ErrIndexUnavailable) {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrIndexUnavailable, "search chunk store", err)
	}
	return found, nil
}

func (r *CandidateRanker) rerank(ctx context.Context, query string, candidates []domain.Candidate) error {
	if len(candidates) == 0 {
		return nil
	}
	rerankCtx, cancel := withOptionalTimeout(ctx, r.cfg.RerankTimeout)
	defer cancel()

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}

	start := time.Now()
	logits, err := r.scorer.Score(rerankCtx, query, texts)
	r.observer.ObserveStage(stageRerank, time.Since(start), err)
	if err != nil {
		return err
	}
	return applyRerankScores(candidates, logits)
}

func toEvidence(candidates []domain.Candidate, reranked bool) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(candidates))
	for i, c := range candidates {
		score := clamp01(c.Similarity)
		var logit *float64
		if reranked && c.RerankScore != nil {
			score = *c.RerankScore
			logit = c.RerankLogit
		}
		out = append(out, domain.Evidence{
			ID:             evidenceID(i),
			ChunkID:        c.Chunk.ChunkID,
			DocumentID:     c.Chunk.DocumentID,
			Text:           c.Chunk.Text,
			Score:          score,
			Page:           c.Chunk.Page,
			SectionType:    c.Chunk.SectionType,
			ChunkIndex:     c.Chunk.ChunkIndex,
			RetrievalScore: c.Similarity,
			RerankLogit:    logit,
		})
	}
	return out
}

func evidenceID(i int) string {
	return fmt.Sprintf("c%d", i+1)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
