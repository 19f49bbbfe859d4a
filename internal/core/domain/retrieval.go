package domain

// Chunk is a contiguous passage of an ingested document as stored in the index.
type Chunk struct {
	ChunkID     string    `json:"chunk_id"`
	DocumentID  string    `json:"document_id"`
	Text        string    `json:"text"`
	Page        *int      `json:"page,omitempty"`
	SectionType string    `json:"section_type"`
	ChunkIndex  int       `json:"chunk_index"`
	Embedding   []float32 `json:"-"`
}

// ScoredChunk is a chunk returned by a nearest-neighbour search.
type ScoredChunk struct {
	Chunk
	Similarity float64
}

type SearchFilter struct {
	DocumentIDs []string
}

// Candidate is the per-query working record of the ranker.
type Candidate struct {
	Chunk        Chunk
	Similarity   float64
	BoostFactor  float64
	BoostedScore float64
	RerankLogit  *float64
	RerankScore  *float64
}

// SectionBoostRule maps query keywords to the section types they target.
type SectionBoostRule struct {
	Name     string   `json:"name" yaml:"name"`
	Keywords []string `json:"keywords" yaml:"keywords"`
	Primary  []string `json:"primary" yaml:"primary"`
	Related  []string `json:"related,omitempty" yaml:"related,omitempty"`
}

// Intent is the classification of a query against the section rules.
type Intent struct {
	Rules   []string
	Primary []string
	Related []string
}

func (i Intent) Empty() bool {
	return len(i.Primary) == 0
}

// Evidence is a final selected candidate as shown to the generator.
type Evidence struct {
	ID             string   `json:"id"`
	ChunkID        string   `json:"chunk_id"`
	DocumentID     string   `json:"document_id"`
	Text           string   `json:"text"`
	Score          float64  `json:"score"`
	Page           *int     `json:"page,omitempty"`
	SectionType    string   `json:"section_type"`
	ChunkIndex     int      `json:"chunk_index"`
	RetrievalScore float64  `json:"retrieval_score"`
	RerankLogit    *float64 `json:"rerank_score_raw,omitempty"`
}

type RetrievalStatus string

const (
	RetrievalOK        RetrievalStatus = "ok"
	RetrievalNoIndex   RetrievalStatus = "no_index"
	RetrievalNoResults RetrievalStatus = "no_results"
	RetrievalDegraded  RetrievalStatus = "degraded"
)

// RankResult is the outcome of one ranker pass.
type RankResult struct {
	Evidence    []Evidence
	Intent      Intent
	Status      RetrievalStatus
	Diagnostics []string
}
