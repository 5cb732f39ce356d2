package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/core/index"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"golang.org/x/sync/errgroup"
)

// TranslateFunc normalizes a query into the corpus language.
type TranslateFunc func(ctx context.Context, text string) (string, error)

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Engine runs hybrid searches over the dense and sparse index.
type Engine struct {
	papers index.PaperStore
	chunks index.ChunkStore
	sparse index.SparseIndex
	config model.RetrievalConfig
	logger *slog.Logger

	mu        sync.RWMutex
	embedder  QueryEmbedder
	dense     index.DenseIndex
	translate TranslateFunc
}

// NewEngine creates a new retrieval engine. The config is validated once here.
func NewEngine(papers index.PaperStore, chunks index.ChunkStore, dense index.DenseIndex, sparse index.SparseIndex, embedder QueryEmbedder, config model.RetrievalConfig, logger *slog.Logger) (*Engine, error) {
	if papers == nil || chunks == nil || dense == nil || sparse == nil || embedder == nil {
		return nil, helper.Wrap(helper.ErrInvalidInput, "stores, indexes and embedder are required")
	}
	if err := config.Validate(); err != nil {
		return nil, helper.NewError("validate retrieval config", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		papers:   papers,
		chunks:   chunks,
		sparse:   sparse,
		config:   config,
		logger:   logger,
		embedder: embedder,
		dense:    dense,
	}, nil
}

// Config returns the validated retrieval configuration.
func (e *Engine) Config() model.RetrievalConfig {
	return e.config
}

// SetEmbedder switches the query embedder together with the dense index of its model.
func (e *Engine) SetEmbedder(embedder QueryEmbedder, dense index.DenseIndex) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.embedder = embedder
	e.dense = dense
}

// SetTranslator sets the optional query translation. nil disables it.
func (e *Engine) SetTranslator(translate TranslateFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.translate = translate
}

// Search runs the dense and sparse branch concurrently and fuses their hits.
// A failed or timed out branch degrades the search to the other branch,
// only both failing is an error. Zero hits is an empty result.
func (e *Engine) Search(ctx context.Context, query string, opts model.SearchOptions) (*model.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, helper.NewError("search", helper.Wrap(helper.ErrInvalidInput, "query is empty"))
	}
	mode := opts.Mode
	if mode == "" {
		mode = model.SearchModeHybrid
	}
	if mode != model.SearchModeHybrid && mode != model.SearchModeDense && mode != model.SearchModeSparse {
		return nil, helper.NewError("search", helper.Wrap(helper.ErrInvalidInput, "unknown search mode %q", mode))
	}
	topK := opts.TopK
	if topK < 0 {
		return nil, helper.NewError("search", helper.Wrap(helper.ErrInvalidInput, "top_k must not be negative"))
	}
	if topK == 0 {
		topK = e.config.TopK
	}

	e.mu.RLock()
	embedder, dense, translate := e.embedder, e.dense, e.translate
	e.mu.RUnlock()

	result := &model.SearchResult{
		Query:          query,
		EffectiveQuery: query,
		Results:        []*model.FusedResult{},
	}

	if translate != nil {
		translated, err := e.translateQuery(ctx, translate, query)
		if err != nil {
			result.Degraded = true
			result.DegradedReasons = append(result.DegradedReasons, "translation unavailable")
			e.logger.Warn("Query translation failed, using original query", "error", err)
		} else {
			result.EffectiveQuery = translated
		}
	}

	candidates := topK * e.config.CandidateFactor
	var denseHits, sparseHits []*model.Hit
	var denseErr, sparseErr error

	g, gctx := errgroup.WithContext(ctx)
	if mode != model.SearchModeSparse {
		g.Go(func() error {
			denseHits, denseErr = e.searchDense(gctx, embedder, dense, result.EffectiveQuery, candidates, opts.PaperIDs)
			return nil
		})
	}
	if mode != model.SearchModeDense {
		g.Go(func() error {
			sparseHits, sparseErr = e.searchSparse(gctx, result.EffectiveQuery, candidates, opts.PaperIDs)
			return nil
		})
	}
	// each branch returns by its deadline, so Wait is bounded even if an index ignores ctx
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, helper.NewError("search", err)
	}

	switch mode {
	case model.SearchModeDense:
		if denseErr != nil {
			return nil, helper.NewError("search", denseErr)
		}
		result.Weights = model.Weights{Dense: 1}
	case model.SearchModeSparse:
		if sparseErr != nil {
			return nil, helper.NewError("search", sparseErr)
		}
		result.Weights = model.Weights{Sparse: 1}
	default:
		if denseErr != nil && sparseErr != nil {
			return nil, helper.NewError("search", errors.Join(denseErr, sparseErr))
		}
		result.Weights = EffectiveWeights(e.config, denseErr == nil, sparseErr == nil)
		for _, err := range []error{denseErr, sparseErr} {
			if err != nil {
				result.Degraded = true
				result.DegradedReasons = append(result.DegradedReasons, err.Error())
			}
		}
		if denseErr != nil || sparseErr != nil {
			e.logger.Warn("Search degraded to a single index",
				"reasons", result.DegradedReasons,
				"dense_weight", result.Weights.Dense,
				"sparse_weight", result.Weights.Sparse,
			)
		}
	}

	if len(denseHits) == 0 && len(sparseHits) == 0 {
		return result, nil
	}

	fused, err := e.fuse(ctx, denseHits, sparseHits, result.Weights)
	if err != nil {
		return nil, err
	}
	if len(fused) > topK {
		fused = fused[:topK]
	}
	result.Results = fused

	return result, nil
}

// SearchPapers aggregates the chunk results of a search by paper. A paper
// scores with its best chunk, papers keep the order of their best chunk.
func (e *Engine) SearchPapers(ctx context.Context, query string, opts model.SearchOptions) ([]*model.PaperResult, error) {
	result, err := e.Search(ctx, query, opts)
	if err != nil {
		return nil, err
	}

	papers := []*model.PaperResult{}
	byPaper := map[string]*model.PaperResult{}
	for _, fused := range result.Results {
		paperResult, ok := byPaper[fused.PaperID]
		if !ok {
			paperResult = &model.PaperResult{
				Paper:       fused.Paper,
				Score:       fused.FusedScore,
				BestExcerpt: fused.Chunk.Excerpt(model.ExcerptLength),
			}
			byPaper[fused.PaperID] = paperResult
			papers = append(papers, paperResult)
		}
		paperResult.Chunks = append(paperResult.Chunks, fused)
	}

	return papers, nil
}

func (e *Engine) translateQuery(ctx context.Context, translate TranslateFunc, query string) (string, error) {
	translated, err := boundedCall(ctx, e.config.BranchTimeout, func(ctx context.Context) (string, error) {
		return translate(ctx, query)
	})
	if err != nil {
		return "", err
	}
	translated = strings.TrimSpace(translated)
	if translated == "" {
		return "", errors.New("translation is empty")
	}
	return translated, nil
}

func (e *Engine) searchDense(ctx context.Context, embedder QueryEmbedder, dense index.DenseIndex, query string, topK int, paperIDs []string) ([]*model.Hit, error) {
	hits, err := boundedCall(ctx, e.config.BranchTimeout, func(ctx context.Context) ([]*model.Hit, error) {
		vector, err := embedder.EmbedQuery(ctx, query)
		if err != nil {
			return nil, err
		}
		return dense.Query(ctx, vector, topK, paperIDs)
	})
	if err != nil {
		return nil, branchError("dense", err)
	}
	return hits, nil
}

func (e *Engine) searchSparse(ctx context.Context, query string, topK int, paperIDs []string) ([]*model.Hit, error) {
	hits, err := boundedCall(ctx, e.config.BranchTimeout, func(ctx context.Context) ([]*model.Hit, error) {
		return e.sparse.Query(ctx, query, topK, paperIDs)
	})
	if err != nil {
		return nil, branchError("sparse", err)
	}
	return hits, nil
}

// boundedCall runs fn with a deadline and returns once the deadline passes,
// even if fn ignores its context. An abandoned fn finishes in the background
// and its result is dropped.
func boundedCall[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		value, err := fn(ctx)
		done <- outcome{value: value, err: err}
	}()

	var zero T
	select {
	case o := <-done:
		if o.err != nil {
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			return zero, o.err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return o.value, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func branchError(branch string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return helper.Wrap(helper.ErrIndexUnavailable, "%s index timed out", branch)
	}
	return helper.Wrap(helper.ErrIndexUnavailable, "%s index failed: %v", branch, err)
}

// fuse loads the candidate chunks and papers and ranks them. Hits whose
// chunk is gone are dropped.
func (e *Engine) fuse(ctx context.Context, denseHits []*model.Hit, sparseHits []*model.Hit, weights model.Weights) ([]*model.FusedResult, error) {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, hits := range [][]*model.Hit{denseHits, sparseHits} {
		for _, hit := range hits {
			if !seen[hit.ChunkID] {
				seen[hit.ChunkID] = true
				ids = append(ids, hit.ChunkID)
			}
		}
	}

	chunks, err := e.chunks.SelectChunks(ctx, ids)
	if err != nil {
		return nil, helper.NewError("load chunks", err)
	}
	chunkByID := make(map[uuid.UUID]*model.Chunk, len(chunks))
	paperIDs := []string{}
	paperSeen := map[string]bool{}
	for _, chunk := range chunks {
		chunkByID[chunk.ID] = chunk
		if !paperSeen[chunk.PaperID] {
			paperSeen[chunk.PaperID] = true
			paperIDs = append(paperIDs, chunk.PaperID)
		}
	}

	papers, err := e.papers.SelectPapers(ctx, paperIDs)
	if err != nil {
		return nil, helper.NewError("load papers", err)
	}
	paperByID := make(map[string]*model.Paper, len(papers))
	published := make(map[string]time.Time, len(papers))
	for _, paper := range papers {
		paperByID[paper.ID] = paper
		published[paper.ID] = paper.PublishedAt
	}

	// the stored chunk is authoritative for the ordinal, database hits carry none
	known := func(hits []*model.Hit) []*model.Hit {
		kept := make([]*model.Hit, 0, len(hits))
		for _, hit := range hits {
			if chunk, ok := chunkByID[hit.ChunkID]; ok {
				hit.Ordinal = chunk.Ordinal
				kept = append(kept, hit)
			}
		}
		return kept
	}

	fused := Fuse(known(denseHits), known(sparseHits), weights, published)
	for _, result := range fused {
		result.Chunk = chunkByID[result.ChunkID]
		result.Paper = paperByID[result.PaperID]
	}
	return fused, nil
}
