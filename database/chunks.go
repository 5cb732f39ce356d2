package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	loadSql "github.com/siherrmann/scholar/sql"
)

// ChunksDBHandlerFunctions defines the interface for Chunks database operations.
type ChunksDBHandlerFunctions interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) (bool, error)
	SelectChunks(ctx context.Context, ids []uuid.UUID) ([]*model.Chunk, error)
	SelectChunksByPaper(ctx context.Context, paperID string) ([]*model.Chunk, error)
	MarkChunksDense(ctx context.Context, ids []uuid.UUID, embeddingModel string) error
	MarkChunksSparse(ctx context.Context, ids []uuid.UUID) error
	CountChunks(ctx context.Context) (int, error)
	DeleteChunksByPaper(ctx context.Context, paperID string) error
	DeleteAllChunks(ctx context.Context) error
}

// ChunksDBHandler persists chunk metadata and index bookkeeping.
type ChunksDBHandler struct {
	db *helper.Database
}

// NewChunksDBHandler creates a new chunks database handler.
// The papers table must exist, chunks reference their paper.
// If force is true, it will reload the SQL functions even if they already exist.
func NewChunksDBHandler(db *helper.Database, force bool) (*ChunksDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	chunksDbHandler := &ChunksDBHandler{
		db: db,
	}

	err := loadSql.LoadChunksSql(chunksDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load chunks sql", err)
	}

	err = chunksDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized ChunksDBHandler")

	return chunksDbHandler, nil
}

// CreateTable creates the 'chunks' table in the database.
// If the table already exists, it does not create it again.
func (h *ChunksDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_chunks();`)
	if err != nil {
		log.Panicf("error initializing chunks table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table chunks")

	return nil
}

// InsertChunk stores a chunk unless its paper already holds the same content hash.
// It reports whether a row was inserted.
func (h *ChunksDBHandler) InsertChunk(ctx context.Context, chunk *model.Chunk) (bool, error) {
	if chunk.ID == uuid.Nil {
		chunk.ID = uuid.New()
	}

	row := h.db.Instance.QueryRowContext(
		ctx,
		`SELECT * FROM insert_chunk($1, $2, $3, $4, $5, $6, $7)`,
		chunk.ID,
		chunk.PaperID,
		chunk.Section,
		chunk.Ordinal,
		chunk.Content,
		chunk.TokenCount,
		chunk.ContentHash,
	)

	stored, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, helper.NewError("scan", err)
	}

	chunk.CreatedAt = stored.CreatedAt

	return true, nil
}

// SelectChunks retrieves chunks by id. Unknown ids are ignored.
func (h *ChunksDBHandler) SelectChunks(ctx context.Context, ids []uuid.UUID) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks($1)`,
		pq.Array(uuidStrings(ids)),
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// SelectChunksByPaper retrieves all chunks of a paper in ordinal order
func (h *ChunksDBHandler) SelectChunksByPaper(ctx context.Context, paperID string) ([]*model.Chunk, error) {
	rows, err := h.db.Instance.QueryContext(
		ctx,
		`SELECT * FROM select_chunks_by_paper($1)`,
		paperID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// MarkChunksDense records a successful dense upsert for embeddingModel.
func (h *ChunksDBHandler) MarkChunksDense(ctx context.Context, ids []uuid.UUID, embeddingModel string) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT mark_chunks_dense($1, $2)`,
		pq.Array(uuidStrings(ids)),
		embeddingModel,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// MarkChunksSparse records a successful sparse upsert.
func (h *ChunksDBHandler) MarkChunksSparse(ctx context.Context, ids []uuid.UUID) error {
	_, err := h.db.Instance.ExecContext(
		ctx,
		`SELECT mark_chunks_sparse($1)`,
		pq.Array(uuidStrings(ids)),
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// CountChunks returns the number of stored chunks.
func (h *ChunksDBHandler) CountChunks(ctx context.Context) (int, error) {
	var count int
	err := h.db.Instance.QueryRowContext(ctx, `SELECT count_chunks()`).Scan(&count)
	if err != nil {
		return 0, helper.NewError("scan", err)
	}
	return count, nil
}

// DeleteChunksByPaper deletes the chunks of one paper
func (h *ChunksDBHandler) DeleteChunksByPaper(ctx context.Context, paperID string) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_chunks_by_paper($1)`, paperID)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// DeleteAllChunks deletes every chunk
func (h *ChunksDBHandler) DeleteAllChunks(ctx context.Context) error {
	_, err := h.db.Instance.ExecContext(ctx, `SELECT delete_all_chunks()`)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

func scanChunk(row rowScanner) (*model.Chunk, error) {
	chunk := &model.Chunk{}
	err := row.Scan(
		&chunk.ID,
		&chunk.PaperID,
		&chunk.Section,
		&chunk.Ordinal,
		&chunk.Content,
		&chunk.TokenCount,
		&chunk.ContentHash,
		&chunk.EmbeddingModel,
		&chunk.SparseIndexed,
		&chunk.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return chunk, nil
}

func scanChunks(rows *sql.Rows) ([]*model.Chunk, error) {
	var chunks []*model.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, helper.NewError("rows iteration", err)
	}

	return chunks, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
