package usecase

import (
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/prism-answer/internal/core/domain"
)

// sigmoid maps an unbounded cross-encoder logit into (0, 1).
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	// Same value, computed without overflowing exp for large negative x.
	e := math.Exp(x)
	return e / (1 + e)
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// applyRerankScores writes logits and their sigmoid onto candidates in order.
func applyRerankScores(candidates []domain.Candidate, logits []float64) error {
	if len(logits) != len(candidates) {
		return fmt.Errorf("cross-encoder returned %d scores for %d passages", len(logits), len(candidates))
	}
	for i := range candidates {
		logit := logits[i]
		if math.IsNaN(logit) || math.IsInf(logit, 0) {
			return fmt.Errorf("cross-encoder returned non-finite score at %d", i)
		}
		score := sigmoid(logit)
		candidates[i].RerankLogit = &logit
		candidates[i].RerankScore = &score
	}
	return nil
}

// Equal scores keep their incoming order; callers rely on that for
// deterministic output.
func sortByBoosted(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].BoostedScore > candidates[j].BoostedScore
	})
}

func sortByRerank(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return rerankValue(candidates[i]) > rerankValue(candidates[j])
	})
}

func rerankValue(c domain.Candidate) float64 {
	if c.RerankScore == nil {
		return -1
	}
	return *c.RerankScore
}
