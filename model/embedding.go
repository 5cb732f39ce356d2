package model

import "github.com/google/uuid"

// Embedding is the dense vector of one chunk for one embedding model version.
type Embedding struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	Vector  []float32 `json:"vector"`
	Model   string    `json:"model"`
}

// DenseEntry is a chunk joined with its embedding, as stored in the dense index.
type DenseEntry struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	PaperID string    `json:"paper_id"`
	Section string    `json:"section"`
	Ordinal int       `json:"ordinal"`
	Model   string    `json:"model"`
	Vector  []float32 `json:"vector"`
}

// SparseEntry is a chunk's text as stored in the sparse index.
type SparseEntry struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	PaperID string    `json:"paper_id"`
	Section string    `json:"section"`
	Ordinal int       `json:"ordinal"`
	Content string    `json:"content"`
}

// Hit is one ranked result of a dense or sparse index query.
type Hit struct {
	ChunkID uuid.UUID `json:"chunk_id"`
	PaperID string    `json:"paper_id"`
	Ordinal int       `json:"ordinal"` // position of the chunk in its paper, breaks score ties
	Score   float64   `json:"score"`
}
