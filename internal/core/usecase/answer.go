package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

const maxQueryLength = 4000

type AnswerUseCase struct {
	ranker    *CandidateRanker
	generator *GroundedAnswerGenerator
	observer  PipelineObserver
	finalTopK int
}

func NewAnswerUseCase(
	ranker *CandidateRanker,
	generator *GroundedAnswerGenerator,
	observer PipelineObserver,
) *AnswerUseCase {
	return &AnswerUseCase{
		ranker:    ranker,
		generator: generator,
		observer:  observerOrNop(observer),
		finalTopK: ranker.cfg.FinalTopK,
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, req domain.AnswerRequest) (*domain.GroundedAnswer, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("query is required"))
	}
	if len(query) > maxQueryLength {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer", fmt.Errorf("query exceeds %d bytes", maxQueryLength))
	}
	topK := req.TopK
	if topK <= 0 {
		topK = uc.finalTopK
	}

	ranked, err := uc.ranker.Rank(ctx, query, topK, domain.SearchFilter{DocumentIDs: req.DocumentIDs})
	if err != nil {
		uc.observer.ObserveAnswer("error", 0, 0)
		return nil, err
	}

	answer, err := uc.generator.Generate(ctx, query, req.History, ranked.Evidence)
	if err != nil {
		uc.observer.ObserveAnswer("error", 0, len(ranked.Evidence))
		return nil, err
	}

	answer.ID = uuid.NewString()
	answer.RetrievalStatus = ranked.Status
	if len(ranked.Evidence) == 0 && ranked.Status == domain.RetrievalOK {
		answer.RetrievalStatus = domain.RetrievalNoResults
	}
	answer.Diagnostics = append(ranked.Diagnostics, answer.Diagnostics...)

	slog.Info("answer_generated",
		"answer_id", answer.ID,
		"intent", ranked.Intent.Rules,
		"retrieval_status", answer.RetrievalStatus,
		"evidence", len(ranked.Evidence),
		"sources", len(answer.Sources),
		"confidence", answer.Confidence,
		"unsupported_spans", len(answer.UnsupportedSpans),
	)
	uc.observer.ObserveAnswer(string(answer.RetrievalStatus), answer.Confidence, len(answer.Sources))
	return answer, nil
}
