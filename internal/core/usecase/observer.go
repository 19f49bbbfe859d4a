package usecase

import "time"

// PipelineObserver receives per-stage outcomes. Implementations must be safe
// for concurrent use.
type PipelineObserver interface {
	ObserveStage(stage string, duration time.Duration, err error)
	ObserveDegraded(reason string)
	ObserveCache(hit bool)
	ObserveAnswer(status string, confidence float64, sources int)
}

const (
	stageEmbed    = "embed"
	stageRecall   = "recall"
	stageRerank   = "rerank"
	stageDraft    = "draft"
	stageValidate = "validate"
)

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration, error) {}
func (nopObserver) ObserveDegraded(string)                    {}
func (nopObserver) ObserveCache(bool)                         {}
func (nopObserver) ObserveAnswer(string, float64, int)        {}

func observerOrNop(o PipelineObserver) PipelineObserver {
	if o == nil {
		return nopObserver{}
	}
	return o
}
