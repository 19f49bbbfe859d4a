package domain

import "time"

type ConversationTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AnswerRequest struct {
	Query       string             `json:"query"`
	TopK        int                `json:"top_k,omitempty"`
	DocumentIDs []string           `json:"document_ids,omitempty"`
	History     []ConversationTurn `json:"history,omitempty"`
}

// DraftAnswer is the parsed output of the drafting call.
type DraftAnswer struct {
	Answer   string
	CitedIDs []string
}

type UnsupportedSpan struct {
	Text   string `json:"text"`
	Reason string `json:"reason"`
}

type ValidationResult struct {
	Confidence       float64
	UnsupportedSpans []UnsupportedSpan
	Fallback         bool
}

type GroundedAnswer struct {
	ID               string            `json:"id"`
	Message          string            `json:"message"`
	Sources          []Evidence        `json:"sources"`
	Confidence       float64           `json:"confidence"`
	UnsupportedSpans []UnsupportedSpan `json:"unsupported_spans"`
	Timestamp        time.Time         `json:"timestamp"`
	RetrievalStatus  RetrievalStatus   `json:"retrieval_status"`
	Diagnostics      []string          `json:"diagnostics,omitempty"`
}

// NoEvidenceMessage is returned verbatim when retrieval yields nothing.
const NoEvidenceMessage = "I could not find any relevant passages in the indexed documents to answer this question."

const (
	DiagnosticRerankSkipped      = "rerank_skipped"
	DiagnosticRerankDisabled     = "rerank_disabled"
	DiagnosticValidationFallback = "validation_fallback"
	DiagnosticDraftUnstructured  = "draft_unstructured"
	DiagnosticOrphanCitation     = "orphan_citation"
	DiagnosticNoCitations        = "no_citations"
)

type CompletionOptions struct {
	Temperature float64
	MaxTokens   int
}

// CacheStats mirrors the response cache counters exposed to operators.
type CacheStats struct {
	Status     string  `json:"status" yaml:"status"`
	Hits       int64   `json:"hits" yaml:"hits"`
	Misses     int64   `json:"misses" yaml:"misses"`
	HitRate    float64 `json:"hit_rate" yaml:"hit_rate"`
	TotalKeys  int     `json:"total_keys" yaml:"total_keys"`
	TTLSeconds int64   `json:"ttl_seconds" yaml:"ttl_seconds"`
}
