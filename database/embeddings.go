package database

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	loadSql "github.com/siherrmann/scholar/sql"
)

// EmbeddingsDBHandlerFunctions defines the dense index operations backed by pgvector.
type EmbeddingsDBHandlerFunctions interface {
	Upsert(ctx context.Context, entries []*model.DenseEntry) error
	Query(ctx context.Context, vector []float32, topK int, paperIDs []string) ([]*model.Hit, error)
	CountEmbeddings(ctx context.Context) (int, error)
	DeletePapers(ctx context.Context, paperIDs []string) error
	Clear(ctx context.Context) error
}

// EmbeddingsDBHandler is the dense index. Queries only consider embeddings of
// the handler's model, older model versions stay until they are purged.
type EmbeddingsDBHandler struct {
	db           *helper.Database
	embeddingDim int
	model        string
}

// NewEmbeddingsDBHandler creates the dense index handler for embeddingModel.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEmbeddingsDBHandler(db *helper.Database, embeddingDim int, embeddingModel string, force bool) (*EmbeddingsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}
	if embeddingDim <= 0 {
		return nil, helper.NewError("embedding dimension validation", helper.Wrap(helper.ErrInvalidInput, "embedding dimension must be positive"))
	}

	embeddingsDbHandler := &EmbeddingsDBHandler{
		db:           db,
		embeddingDim: embeddingDim,
		model:        embeddingModel,
	}

	err := loadSql.LoadEmbeddingsSql(embeddingsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load embeddings sql", err)
	}

	err = embeddingsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EmbeddingsDBHandler", "model", embeddingModel, "dim", embeddingDim)

	return embeddingsDbHandler, nil
}

// CreateTable creates the 'embeddings' table and its HNSW index.
func (h *EmbeddingsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_embeddings($1);`, h.embeddingDim)
	if err != nil {
		log.Panicf("error initializing embeddings table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table embeddings")

	return nil
}

// ForModel returns a handler on the same table querying embeddingModel.
// The model must produce vectors of the table's dimension.
func (h *EmbeddingsDBHandler) ForModel(embeddingModel string) *EmbeddingsDBHandler {
	return &EmbeddingsDBHandler{
		db:           h.db,
		embeddingDim: h.embeddingDim,
		model:        embeddingModel,
	}
}

// Dim returns the vector dimension of the table.
func (h *EmbeddingsDBHandler) Dim() int {
	return h.embeddingDim
}

// Model returns the embedding model the handler queries.
func (h *EmbeddingsDBHandler) Model() string {
	return h.model
}

// Upsert stores the entries in one transaction. Re-upserting a chunk for the
// same model replaces its vector.
func (h *EmbeddingsDBHandler) Upsert(ctx context.Context, entries []*model.DenseEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := h.db.Instance.BeginTx(ctx, nil)
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, entry := range entries {
		if len(entry.Vector) != h.embeddingDim {
			return helper.NewError("upsert embedding", helper.Wrap(helper.ErrInvalidInput, "vector of chunk %s has %d dimensions, expected %d", entry.ChunkID, len(entry.Vector), h.embeddingDim))
		}
		entryModel := entry.Model
		if entryModel == "" {
			entryModel = h.model
		}

		_, err := tx.ExecContext(
			ctx,
			`SELECT upsert_embedding($1, $2, $3, $4, $5)`,
			entry.ChunkID,
			entry.PaperID,
			entry.Section,
			entryModel,
			pgvector.NewVector(entry.Vector),
		)
		if err != nil {
			return helper.NewError("exec", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return helper.NewError("commit", err)
	}

	return nil
}

// Query returns the topK most similar chunks. Scores are cosine similarities
// clamped to [0,1]. An empty paperIDs allowlist disables filtering.
func (h *EmbeddingsDBHandler) Query(ctx context.Context, vector []float32, topK int, paperIDs []string) ([]*model.Hit, error) {
	if len(vector) != h.embeddingDim {
		return nil, helper.NewError("query embeddings", helper.Wrap(helper.ErrInvalidInput, "query vector has %d dimensions, expected %d", len(vector), h.embeddingDim))
	}

	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_embeddings_by_similarity($1, $2, $3, $4)`,
		pgvector.NewVector(vector),
		h.model,
		topK,
		pq.Array(paperIDs),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var hits []*model.Hit
	for rows.Next() {
		hit := &model.Hit{}
		if err := rows.Scan(&hit.ChunkID, &hit.PaperID, &hit.Score); err != nil {
			return nil, helper.NewError("scan", err)
		}
		hit.Score = math.Max(0, math.Min(1, hit.Score))
		hits = append(hits, hit)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return hits, nil
}

// CountEmbeddings returns the number of embeddings of the handler's model.
func (h *EmbeddingsDBHandler) CountEmbeddings(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_embeddings($1)`, h.model).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// DeletePapers removes the embeddings of all models for the given papers.
func (h *EmbeddingsDBHandler) DeletePapers(ctx context.Context, paperIDs []string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_embeddings_by_papers($1)`, pq.Array(paperIDs))
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// Clear removes every embedding.
func (h *EmbeddingsDBHandler) Clear(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_all_embeddings()`)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}
