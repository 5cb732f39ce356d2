package index

import (
	"context"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/model"
)

// DenseIndex stores chunk embeddings and answers nearest neighbour queries.
// Scores are cosine similarities clamped to [0,1]. An empty paperIDs
// allowlist disables filtering.
type DenseIndex interface {
	Upsert(ctx context.Context, entries []*model.DenseEntry) error
	Query(ctx context.Context, vector []float32, topK int, paperIDs []string) ([]*model.Hit, error)
	DeletePapers(ctx context.Context, paperIDs []string) error
	Clear(ctx context.Context) error
}

// SparseIndex stores chunk text and answers keyword queries with raw
// term-weighted scores. Scores are not comparable across queries.
type SparseIndex interface {
	Upsert(ctx context.Context, entries []*model.SparseEntry) error
	Query(ctx context.Context, text string, topK int, paperIDs []string) ([]*model.Hit, error)
	DeletePapers(ctx context.Context, paperIDs []string) error
	Clear(ctx context.Context) error
}

// PaperStore is the durable record of paper metadata.
type PaperStore interface {
	UpsertPaper(ctx context.Context, paper *model.Paper) error
	SelectPaper(ctx context.Context, id string) (*model.Paper, error)
	SelectPapers(ctx context.Context, ids []string) ([]*model.Paper, error)
	SelectAllPapers(ctx context.Context) ([]*model.Paper, error)
	DeletePaper(ctx context.Context, id string) error
	DeleteAllPapers(ctx context.Context) error
}

// ChunkStore is the durable record of chunks and their index bookkeeping.
// InsertChunk reports false when the paper already holds the content hash.
type ChunkStore interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) (bool, error)
	SelectChunks(ctx context.Context, ids []uuid.UUID) ([]*model.Chunk, error)
	SelectChunksByPaper(ctx context.Context, paperID string) ([]*model.Chunk, error)
	MarkChunksDense(ctx context.Context, ids []uuid.UUID, embeddingModel string) error
	MarkChunksSparse(ctx context.Context, ids []uuid.UUID) error
	CountChunks(ctx context.Context) (int, error)
	DeleteChunksByPaper(ctx context.Context, paperID string) error
	DeleteAllChunks(ctx context.Context) error
}
