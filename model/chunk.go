package model

import (
	"time"

	"github.com/google/uuid"
)

// Chunk is a bounded text segment of a paper, the unit of indexing and retrieval.
// Chunks are immutable once stored except for their index bookkeeping.
type Chunk struct {
	ID          uuid.UUID `json:"id"`
	PaperID     string    `json:"paper_id"`
	Section     string    `json:"section"`
	Ordinal     int       `json:"ordinal"`
	Content     string    `json:"content"`
	TokenCount  int       `json:"token_count"`
	ContentHash string    `json:"content_hash"`
	// Index bookkeeping
	EmbeddingModel string    `json:"embedding_model,omitempty"` // model of the last dense upsert
	SparseIndexed  bool      `json:"sparse_indexed"`
	CreatedAt      time.Time `json:"created_at"`
}

// DenseIndexed reports whether the chunk has an embedding for model.
func (c *Chunk) DenseIndexed(model string) bool {
	return c.EmbeddingModel != "" && c.EmbeddingModel == model
}

// ExcerptLength is the number of characters shown for a cited chunk.
const ExcerptLength = 300

// Excerpt returns the first n characters of the content.
func (c *Chunk) Excerpt(n int) string {
	if c == nil {
		return ""
	}
	runes := []rune(c.Content)
	if len(runes) <= n {
		return c.Content
	}
	return string(runes[:n])
}
