package index

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/core/pipeline"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// Coordinator is the only component writing to the stores and indexes.
// It indexes each distinct (paper id, content hash) exactly once and keeps
// dense and sparse indexing independent of each other's failures.
type Coordinator struct {
	papers   PaperStore
	chunks   ChunkStore
	sparse   SparseIndex
	pipeline *pipeline.Pipeline
	logger   *slog.Logger

	// embedder and dense are swapped together, dense queries the embedder's model
	embeddingMu sync.RWMutex
	embedder    *pipeline.EmbeddingClient
	dense       DenseIndex

	// purgeMu is held shared while indexing and exclusively while purging the library.
	purgeMu sync.RWMutex
	locks   *paperLocks
}

// NewCoordinator creates a new indexing coordinator.
func NewCoordinator(papers PaperStore, chunks ChunkStore, dense DenseIndex, sparse SparseIndex, p *pipeline.Pipeline, embedder *pipeline.EmbeddingClient, logger *slog.Logger) (*Coordinator, error) {
	if papers == nil || chunks == nil || dense == nil || sparse == nil {
		return nil, helper.Wrap(helper.ErrInvalidInput, "stores and indexes are required")
	}
	if embedder == nil {
		return nil, helper.Wrap(helper.ErrInvalidInput, "embedding client is required")
	}
	if p == nil {
		p = pipeline.NewPipeline(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Coordinator{
		papers:   papers,
		chunks:   chunks,
		dense:    dense,
		sparse:   sparse,
		pipeline: p,
		logger:   logger,
		embedder: embedder,
		locks:    newPaperLocks(),
	}, nil
}

// SetEmbeddingClient switches the embedding model used for new dense entries
// together with the dense index holding that model's vectors. Chunks without
// an embedding of the new model are re-embedded on their next index run.
func (c *Coordinator) SetEmbeddingClient(embedder *pipeline.EmbeddingClient, dense DenseIndex) {
	c.embeddingMu.Lock()
	defer c.embeddingMu.Unlock()
	c.embedder = embedder
	c.dense = dense
}

// EmbeddingClient returns the current embedding client.
func (c *Coordinator) EmbeddingClient() *pipeline.EmbeddingClient {
	c.embeddingMu.RLock()
	defer c.embeddingMu.RUnlock()
	return c.embedder
}

func (c *Coordinator) embedding() (*pipeline.EmbeddingClient, DenseIndex) {
	c.embeddingMu.RLock()
	defer c.embeddingMu.RUnlock()
	return c.embedder, c.dense
}

// IndexPaper chunks the paper and indexes every chunk that is not yet fully
// indexed for the current embedding model. Re-submitting an indexed paper
// with unchanged text is a no-op. Chunks failing on one index still reach the
// other one and are counted as failed. A fatal provider error is returned
// together with the report.
func (c *Coordinator) IndexPaper(ctx context.Context, paper *model.Paper) (*model.IndexReport, error) {
	if err := paper.Validate(); err != nil {
		return nil, helper.NewError("validate paper", err)
	}

	c.purgeMu.RLock()
	defer c.purgeMu.RUnlock()
	unlock := c.locks.lock(paper.ID)
	defer unlock()

	return c.indexPaper(ctx, paper)
}

// ReindexPaper replaces an explicitly updated paper: its chunks and index
// entries are purged before the new version is indexed.
func (c *Coordinator) ReindexPaper(ctx context.Context, paper *model.Paper) (*model.IndexReport, error) {
	if err := paper.Validate(); err != nil {
		return nil, helper.NewError("validate paper", err)
	}

	c.purgeMu.RLock()
	defer c.purgeMu.RUnlock()
	unlock := c.locks.lock(paper.ID)
	defer unlock()

	if err := c.purgePaper(ctx, paper.ID); err != nil {
		return nil, err
	}
	return c.indexPaper(ctx, paper)
}

// PurgePaper removes a paper with its chunks and index entries.
func (c *Coordinator) PurgePaper(ctx context.Context, paperID string) error {
	c.purgeMu.RLock()
	defer c.purgeMu.RUnlock()
	unlock := c.locks.lock(paperID)
	defer unlock()

	return c.purgePaper(ctx, paperID)
}

// Purge clears the whole library. It waits for running index runs.
func (c *Coordinator) Purge(ctx context.Context) error {
	c.purgeMu.Lock()
	defer c.purgeMu.Unlock()

	_, dense := c.embedding()
	if err := dense.Clear(ctx); err != nil {
		return helper.NewError("clear dense index", err)
	}
	if err := c.sparse.Clear(ctx); err != nil {
		return helper.NewError("clear sparse index", err)
	}
	if err := c.chunks.DeleteAllChunks(ctx); err != nil {
		return helper.NewError("delete chunks", err)
	}
	if err := c.papers.DeleteAllPapers(ctx); err != nil {
		return helper.NewError("delete papers", err)
	}

	c.logger.Info("Purged library")
	return nil
}

// Papers re-enumerates the indexed corpus.
func (c *Coordinator) Papers(ctx context.Context) ([]*model.Paper, error) {
	papers, err := c.papers.SelectAllPapers(ctx)
	if err != nil {
		return nil, helper.NewError("select papers", err)
	}
	return papers, nil
}

func (c *Coordinator) purgePaper(ctx context.Context, paperID string) error {
	_, dense := c.embedding()
	if err := dense.DeletePapers(ctx, []string{paperID}); err != nil {
		return helper.NewError("delete dense entries", err)
	}
	if err := c.sparse.DeletePapers(ctx, []string{paperID}); err != nil {
		return helper.NewError("delete sparse entries", err)
	}
	if err := c.chunks.DeleteChunksByPaper(ctx, paperID); err != nil {
		return helper.NewError("delete chunks", err)
	}
	if err := c.papers.DeletePaper(ctx, paperID); err != nil {
		return helper.NewError("delete paper", err)
	}

	c.logger.Info("Purged paper", "paper_id", paperID)
	return nil
}

func (c *Coordinator) indexPaper(ctx context.Context, paper *model.Paper) (*model.IndexReport, error) {
	embedder, dense := c.embedding()
	embeddingModel := embedder.Model()
	report := &model.IndexReport{PaperID: paper.ID}

	if err := c.pipeline.EnrichKeywords(paper); err != nil {
		c.logger.Warn("Keyword extraction failed", "paper_id", paper.ID, "error", err)
	}
	if err := c.papers.UpsertPaper(ctx, paper); err != nil {
		return nil, helper.NewError("upsert paper", err)
	}

	chunks, err := c.pipeline.ChunkPaper(paper)
	if err != nil {
		return nil, helper.NewError("chunk paper", err)
	}

	stored, err := c.chunks.SelectChunksByPaper(ctx, paper.ID)
	if err != nil {
		return nil, helper.NewError("select stored chunks", err)
	}
	storedByHash := make(map[string]*model.Chunk, len(stored))
	for _, chunk := range stored {
		storedByHash[chunk.ContentHash] = chunk
	}

	// pending chunks miss at least one index entry
	var pending []*model.Chunk
	repaired := map[uuid.UUID]bool{}
	seen := map[string]bool{}
	for _, chunk := range chunks {
		if seen[chunk.ContentHash] {
			report.SkippedDuplicates++
			continue
		}
		seen[chunk.ContentHash] = true

		if existing, ok := storedByHash[chunk.ContentHash]; ok {
			if existing.SparseIndexed && existing.DenseIndexed(embeddingModel) {
				report.SkippedDuplicates++
				continue
			}
			pending = append(pending, existing)
			repaired[existing.ID] = true
			continue
		}

		inserted, err := c.chunks.InsertChunk(ctx, chunk)
		if err != nil {
			return report, helper.NewError("insert chunk", err)
		}
		if !inserted {
			report.SkippedDuplicates++
			continue
		}
		report.InsertedChunks++
		pending = append(pending, chunk)
	}

	failed := map[uuid.UUID]bool{}
	embedded := map[uuid.UUID]bool{}
	if err := c.indexSparse(ctx, pending, failed); err != nil {
		return report, err
	}
	embedErr := c.indexDense(ctx, embedder, dense, pending, failed, embedded)

	report.FailedChunks = len(failed)
	for id := range repaired {
		if !failed[id] {
			report.RepairedChunks++
		}
		if embedded[id] {
			report.ReembeddedChunks++
		}
	}

	c.logger.Info("Indexed paper",
		"paper_id", paper.ID,
		"inserted", report.InsertedChunks,
		"skipped", report.SkippedDuplicates,
		"failed", report.FailedChunks,
		"repaired", report.RepairedChunks,
		"reembedded", report.ReembeddedChunks,
	)

	if embedErr != nil {
		return report, embedErr
	}
	return report, nil
}

// indexSparse upserts the chunks missing a sparse entry. An index failure
// marks them failed and is not returned, a bookkeeping failure is.
func (c *Coordinator) indexSparse(ctx context.Context, pending []*model.Chunk, failed map[uuid.UUID]bool) error {
	var entries []*model.SparseEntry
	var ids []uuid.UUID
	for _, chunk := range pending {
		if chunk.SparseIndexed {
			continue
		}
		entries = append(entries, &model.SparseEntry{
			ChunkID: chunk.ID,
			PaperID: chunk.PaperID,
			Section: chunk.Section,
			Ordinal: chunk.Ordinal,
			Content: chunk.Content,
		})
		ids = append(ids, chunk.ID)
	}
	if len(entries) == 0 {
		return nil
	}

	if err := c.sparse.Upsert(ctx, entries); err != nil {
		c.logger.Warn("Sparse indexing failed", "chunks", len(ids), "error", err)
		for _, id := range ids {
			failed[id] = true
		}
		return nil
	}

	if err := c.chunks.MarkChunksSparse(ctx, ids); err != nil {
		return helper.NewError("mark chunks sparse", err)
	}
	return nil
}

// indexDense embeds and upserts the chunks missing an embedding of the
// current model and records them in embedded. Only fatal provider errors and
// cancellation are returned.
func (c *Coordinator) indexDense(ctx context.Context, embedder *pipeline.EmbeddingClient, dense DenseIndex, pending []*model.Chunk, failed map[uuid.UUID]bool, embedded map[uuid.UUID]bool) error {
	embeddingModel := embedder.Model()

	var todo []*model.Chunk
	texts := []string{}
	for _, chunk := range pending {
		if chunk.DenseIndexed(embeddingModel) {
			continue
		}
		todo = append(todo, chunk)
		texts = append(texts, chunk.Content)
	}
	if len(todo) == 0 {
		return nil
	}

	result, embedErr := embedder.Embed(ctx, texts)

	var entries []*model.DenseEntry
	var ids []uuid.UUID
	for i, chunk := range todo {
		if result.Errors[i] != nil {
			failed[chunk.ID] = true
			continue
		}
		entries = append(entries, &model.DenseEntry{
			ChunkID: chunk.ID,
			PaperID: chunk.PaperID,
			Section: chunk.Section,
			Ordinal: chunk.Ordinal,
			Model:   embeddingModel,
			Vector:  result.Vectors[i],
		})
		ids = append(ids, chunk.ID)
	}
	if result.Failed > 0 {
		c.logger.Warn("Embedding failed for chunks", "model", embeddingModel, "failed", result.Failed, "succeeded", result.Succeeded)
	}

	if len(entries) == 0 {
		return embedErr
	}
	if err := dense.Upsert(ctx, entries); err != nil {
		c.logger.Warn("Dense indexing failed", "chunks", len(ids), "error", err)
		for _, id := range ids {
			failed[id] = true
		}
		return embedErr
	}
	if err := c.chunks.MarkChunksDense(ctx, ids, embeddingModel); err != nil {
		return helper.NewError("mark chunks dense", err)
	}
	for _, id := range ids {
		embedded[id] = true
	}

	return embedErr
}
