package model

import "github.com/google/uuid"

// SourceCitation maps a citation marker in a generated answer back to its chunk.
type SourceCitation struct {
	Marker      int       `json:"marker"`
	ChunkID     uuid.UUID `json:"chunk_id"`
	PaperID     string    `json:"paper_id"`
	Title       string    `json:"title"`
	Section     string    `json:"section,omitempty"`
	Excerpt     string    `json:"excerpt,omitempty"`
	FusedScore  float64   `json:"fused_score"`
	DenseScore  *float64  `json:"dense_score,omitempty"`
	SparseScore *float64  `json:"sparse_score,omitempty"`
}

// Answer is a generated answer together with the sources it cites.
type Answer struct {
	Question   string           `json:"question"`
	Text       string           `json:"text"`
	Sources    []SourceCitation `json:"sources"`
	Confidence float64          `json:"confidence"`
	NoEvidence bool             `json:"no_evidence"`
	Degraded   bool             `json:"degraded"`
}
