package model

import "github.com/google/uuid"

// FusedResult is a chunk ranked by the weighted fusion of dense and sparse scores.
type FusedResult struct {
	ChunkID     uuid.UUID `json:"chunk_id"`
	PaperID     string    `json:"paper_id"`
	DenseScore  *float64  `json:"dense_score,omitempty"`  // normalized, nil if not in the dense list
	SparseScore *float64  `json:"sparse_score,omitempty"` // normalized, nil if not in the sparse list
	FusedScore  float64   `json:"fused_score"`
	Rank        int       `json:"rank"`
	Chunk       *Chunk    `json:"chunk,omitempty"`
	Paper       *Paper    `json:"paper,omitempty"`
}

// Weights are the fusion weights actually applied to a query.
type Weights struct {
	Dense  float64 `json:"dense"`
	Sparse float64 `json:"sparse"`
}

// SearchResult is the response of a hybrid search.
type SearchResult struct {
	Query           string         `json:"query"`
	EffectiveQuery  string         `json:"effective_query"`
	Results         []*FusedResult `json:"results"`
	Weights         Weights        `json:"weights"`
	Degraded        bool           `json:"degraded"`
	DegradedReasons []string       `json:"degraded_reasons,omitempty"`
}

// PaperResult aggregates the chunk results of one paper.
type PaperResult struct {
	Paper       *Paper         `json:"paper"`
	Score       float64        `json:"score"` // best fused score among the chunks
	Chunks      []*FusedResult `json:"chunks"`
	BestExcerpt string         `json:"best_excerpt,omitempty"`
}

// SimilarPaper is a paper close to a reference paper in the dense index.
type SimilarPaper struct {
	Paper          *Paper   `json:"paper"`
	Score          float64  `json:"score"` // best cosine similarity of its chunks to the reference
	CommonKeywords []string `json:"common_keywords,omitempty"`
	BestExcerpt    string   `json:"best_excerpt,omitempty"`
}

// MaxCommonKeywords caps the keywords reported per similar paper.
const MaxCommonKeywords = 5
