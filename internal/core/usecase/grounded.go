package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/prism-answer/internal/core/domain"
	"github.com/kirillkom/prism-answer/internal/core/ports"
)

const (
	DefaultDraftTemperature    = 0.3
	DefaultValidateTemperature = 0.1
	DefaultCacheTTL            = 24 * time.Hour
	DefaultMaxHistoryTurns     = 10

	// validationFallbackConfidence is reported when the fact-check call
	// fails or returns nothing usable.
	validationFallbackConfidence = 0.5

	responseCacheKeyPrefix = "llm_cache:"
)

const (
	reasonUnknownEvidence = "citation references unknown evidence"
	reasonNoCitedEvidence = "no cited evidence"
	reasonNoVerdict       = "no verdict returned"
	reasonUnsupported     = "not supported by cited evidence"
)

type GeneratorConfig struct {
	DraftTemperature    float64
	ValidateTemperature float64
	DraftMaxTokens      int
	ValidateMaxTokens   int
	DraftTimeout        time.Duration
	ValidateTimeout     time.Duration
	CacheTTL            time.Duration
	MaxHistoryTurns     int
}

func (c GeneratorConfig) normalize() GeneratorConfig {
	out := c
	if out.DraftTemperature < 0 {
		out.DraftTemperature = DefaultDraftTemperature
	}
	if out.ValidateTemperature < 0 {
		out.ValidateTemperature = DefaultValidateTemperature
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = DefaultCacheTTL
	}
	if out.MaxHistoryTurns <= 0 {
		out.MaxHistoryTurns = DefaultMaxHistoryTurns
	}
	return out
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		DraftTemperature:    DefaultDraftTemperature,
		ValidateTemperature: DefaultValidateTemperature,
		CacheTTL:            DefaultCacheTTL,
		MaxHistoryTurns:     DefaultMaxHistoryTurns,
	}
}

type answerState int

const (
	stateDrafting answerState = iota
	stateValidating
	stateDone
)

func (s answerState) String() string {
	switch s {
	case stateDrafting:
		return "DRAFTING"
	case stateValidating:
		return "VALIDATING"
	case stateDone:
		return "DONE"
	default:
		return fmt.Sprintf("answerState(%d)", int(s))
	}
}

// generation carries one question through the state machine.
type generation struct {
	query    string
	history  []domain.ConversationTurn
	evidence []domain.Evidence
	known    map[string]struct{}

	message     string
	citedIDs    []string
	orphanSpans []domain.UnsupportedSpan
	validation  domain.ValidationResult
	diagnostics []string
}

// GroundedAnswerGenerator drafts a cited answer from evidence and then
// fact-checks it sentence by sentence. Each state runs exactly once.
type GroundedAnswerGenerator struct {
	completer ports.Completer
	cache     ports.ResponseCache
	observer  PipelineObserver
	cfg       GeneratorConfig
	now       func() time.Time
}

// NewGroundedAnswerGenerator wires the generator. cache may be nil.
func NewGroundedAnswerGenerator(
	completer ports.Completer,
	cache ports.ResponseCache,
	observer PipelineObserver,
	cfg GeneratorConfig,
) *GroundedAnswerGenerator {
	return &GroundedAnswerGenerator{
		completer: completer,
		cache:     cache,
		observer:  observerOrNop(observer),
		cfg:       cfg.normalize(),
		now:       time.Now,
	}
}

func (g *GroundedAnswerGenerator) Generate(
	ctx context.Context,
	query string,
	history []domain.ConversationTurn,
	evidence []domain.Evidence,
) (*domain.GroundedAnswer, error) {
	if len(evidence) == 0 {
		return &domain.GroundedAnswer{
			Message:          domain.NoEvidenceMessage,
			Sources:          []domain.Evidence{},
			Confidence:       0,
			UnsupportedSpans: []domain.UnsupportedSpan{},
			Timestamp:        g.now().UTC(),
		}, nil
	}

	run := &generation{
		query:    query,
		history:  lastTurns(history, g.cfg.MaxHistoryTurns),
		evidence: evidence,
		known:    make(map[string]struct{}, len(evidence)),
	}
	for _, ev := range evidence {
		run.known[ev.ID] = struct{}{}
	}

	state := stateDrafting
	for state != stateDone {
		var err error
		switch state {
		case stateDrafting:
			state, err = g.draft(ctx, run)
		case stateValidating:
			state, err = g.validate(ctx, run)
		default:
			err = fmt.Errorf("unexpected answer state %s", state)
		}
		if err != nil {
			return nil, err
		}
	}
	return g.done(run), nil
}

func (g *GroundedAnswerGenerator) draft(ctx context.Context, run *generation) (answerState, error) {
	prompt := buildDraftPrompt(run.query, run.history, run.evidence)
	raw, err := g.complete(ctx, stageDraft, prompt, domain.CompletionOptions{
		Temperature: g.cfg.DraftTemperature,
		MaxTokens:   g.cfg.DraftMaxTokens,
	}, g.cfg.DraftTimeout)
	if err != nil {
		return stateDone, domain.WrapError(domain.ErrGenerationUnavailable, "draft answer", err)
	}

	draft, structured := parseDraft(raw)
	if !structured {
		slog.Warn("draft_unstructured", "length", len(raw))
		run.diagnostics = append(run.diagnostics, domain.DiagnosticDraftUnstructured)
	}
	if strings.TrimSpace(draft.Answer) == "" {
		return stateDone, domain.WrapError(domain.ErrGenerationUnavailable, "draft answer", fmt.Errorf("model returned an empty answer"))
	}

	cited := make([]string, 0, len(draft.CitedIDs))
	var orphans []string
	for _, id := range append(draft.CitedIDs, extractCitedIDs(draft.Answer)...) {
		id = normalizeEvidenceID(id)
		if _, ok := run.known[id]; !ok {
			if !contains(orphans, id) {
				orphans = append(orphans, id)
			}
			continue
		}
		if !contains(cited, id) {
			cited = append(cited, id)
		}
	}
	sortEvidenceIDs(cited)

	for _, id := range orphans {
		run.orphanSpans = append(run.orphanSpans, domain.UnsupportedSpan{
			Text:   "[" + id + "]",
			Reason: reasonUnknownEvidence,
		})
	}
	if len(orphans) > 0 {
		slog.Warn("draft_orphan_citations", "ids", orphans)
		run.diagnostics = append(run.diagnostics, domain.DiagnosticOrphanCitation)
	}

	run.message = stripUnknownCitations(draft.Answer, run.known)
	run.citedIDs = cited
	return stateValidating, nil
}

func (g *GroundedAnswerGenerator) validate(ctx context.Context, run *generation) (answerState, error) {
	sentences := splitSentences(run.message)
	if len(sentences) == 0 {
		sentences = []string{run.message}
	}

	if len(run.citedIDs) == 0 {
		spans := make([]domain.UnsupportedSpan, 0, len(sentences))
		for _, s := range sentences {
			spans = append(spans, domain.UnsupportedSpan{Text: s, Reason: reasonNoCitedEvidence})
		}
		run.validation = domain.ValidationResult{Confidence: 0, UnsupportedSpans: spans}
		run.diagnostics = append(run.diagnostics, domain.DiagnosticNoCitations)
		return stateDone, nil
	}

	prompt := buildValidationPrompt(sentences, citedEvidence(run.evidence, run.citedIDs))
	raw, err := g.complete(ctx, stageValidate, prompt, domain.CompletionOptions{
		Temperature: g.cfg.ValidateTemperature,
		MaxTokens:   g.cfg.ValidateMaxTokens,
	}, g.cfg.ValidateTimeout)
	if err != nil {
		slog.Warn("validation_fallback", "error", err)
		g.fallbackValidation(run)
		return stateDone, nil
	}

	verdicts, ok := parseVerdicts(raw, len(sentences))
	if !ok {
		slog.Warn("validation_fallback", "error", "unparseable verdicts", "length", len(raw))
		g.fallbackValidation(run)
		return stateDone, nil
	}

	supported := 0
	var spans []domain.UnsupportedSpan
	for i, s := range sentences {
		v, found := verdicts[i+1]
		switch {
		case !found:
			spans = append(spans, domain.UnsupportedSpan{Text: s, Reason: reasonNoVerdict})
		case v.Supported:
			supported++
		default:
			reason := v.Reason
			if reason == "" {
				reason = reasonUnsupported
			}
			spans = append(spans, domain.UnsupportedSpan{Text: s, Reason: reason})
		}
	}
	run.validation = domain.ValidationResult{
		Confidence:       clamp01(float64(supported) / float64(len(sentences))),
		UnsupportedSpans: spans,
	}
	return stateDone, nil
}

func (g *GroundedAnswerGenerator) fallbackValidation(run *generation) {
	g.observer.ObserveDegraded(domain.DiagnosticValidationFallback)
	run.validation = domain.ValidationResult{
		Confidence: validationFallbackConfidence,
		Fallback:   true,
	}
	run.diagnostics = append(run.diagnostics, domain.DiagnosticValidationFallback)
}

func (g *GroundedAnswerGenerator) done(run *generation) *domain.GroundedAnswer {
	spans := make([]domain.UnsupportedSpan, 0, len(run.orphanSpans)+len(run.validation.UnsupportedSpans))
	spans = append(spans, run.orphanSpans...)
	spans = append(spans, run.validation.UnsupportedSpans...)

	return &domain.GroundedAnswer{
		Message:          run.message,
		Sources:          citedEvidence(run.evidence, run.citedIDs),
		Confidence:       clamp01(run.validation.Confidence),
		UnsupportedSpans: spans,
		Timestamp:        g.now().UTC(),
		Diagnostics:      run.diagnostics,
	}
}

// complete runs one LLM call behind the response cache. Failed calls are
// never cached, and cache errors never fail the call.
func (g *GroundedAnswerGenerator) complete(
	ctx context.Context,
	stage string,
	prompt string,
	opts domain.CompletionOptions,
	timeout time.Duration,
) (string, error) {
	key := ResponseCacheKey(prompt)
	if g.cache != nil {
		cached, hit, err := g.cache.Get(ctx, key)
		switch {
		case err != nil:
			slog.Warn("response_cache_get_failed", "stage", stage, "error", err)
		case hit:
			g.observer.ObserveCache(true)
			return cached, nil
		default:
			g.observer.ObserveCache(false)
		}
	}

	callCtx, cancel := withOptionalTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	out, err := g.completer.Complete(callCtx, prompt, opts)
	g.observer.ObserveStage(stage, time.Since(start), err)
	if err != nil {
		return "", err
	}

	if g.cache != nil && strings.TrimSpace(out) != "" {
		if err := g.cache.Put(ctx, key, out, g.cfg.CacheTTL); err != nil {
			slog.Warn("response_cache_put_failed", "stage", stage, "error", err)
		}
	}
	return out, nil
}

// ResponseCacheKey derives the cache key for an exact prompt.
func ResponseCacheKey(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return responseCacheKeyPrefix + hex.EncodeToString(sum[:])
}

func citedEvidence(evidence []domain.Evidence, ids []string) []domain.Evidence {
	out := make([]domain.Evidence, 0, len(ids))
	for _, ev := range evidence {
		if contains(ids, ev.ID) {
			out = append(out, ev)
		}
	}
	return out
}

func lastTurns(history []domain.ConversationTurn, limit int) []domain.ConversationTurn {
	if limit <= 0 || len(history) <= limit {
		return history
	}
	return history[len(history)-limit:]
}
