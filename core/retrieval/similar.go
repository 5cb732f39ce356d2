package retrieval

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

// SimilarPapers returns up to limit papers whose chunks are closest to the
// title and abstract of the given paper. The paper itself is excluded.
// Papers score with their best chunk. A limit of 0 uses the configured topK.
func (e *Engine) SimilarPapers(ctx context.Context, paperID string, limit int) ([]*model.SimilarPaper, error) {
	paperID = strings.TrimSpace(paperID)
	if paperID == "" {
		return nil, helper.NewError("similar papers", helper.Wrap(helper.ErrInvalidInput, "paper id is empty"))
	}
	if limit < 0 {
		return nil, helper.NewError("similar papers", helper.Wrap(helper.ErrInvalidInput, "limit must not be negative"))
	}
	if limit == 0 {
		limit = e.config.TopK
	}

	reference, err := e.papers.SelectPaper(ctx, paperID)
	if err != nil {
		return nil, helper.NewError("similar papers", err)
	}
	own, err := e.chunks.SelectChunksByPaper(ctx, paperID)
	if err != nil {
		return nil, helper.NewError("load chunks", err)
	}

	text := referenceText(reference, own)
	if text == "" {
		return []*model.SimilarPaper{}, nil
	}

	e.mu.RLock()
	embedder, dense := e.embedder, e.dense
	e.mu.RUnlock()

	// own chunks are the closest hits, the candidate list makes room for them
	candidates := limit*e.config.CandidateFactor + len(own)
	hits, err := e.searchDense(ctx, embedder, dense, text, candidates, nil)
	if err != nil {
		return nil, helper.NewError("similar papers", err)
	}

	bestHits := []*model.Hit{}
	seen := map[string]bool{paperID: true}
	for _, hit := range hits {
		if seen[hit.PaperID] {
			continue
		}
		seen[hit.PaperID] = true
		bestHits = append(bestHits, hit)
		if len(bestHits) == limit {
			break
		}
	}
	if len(bestHits) == 0 {
		return []*model.SimilarPaper{}, nil
	}

	chunkIDs := make([]uuid.UUID, 0, len(bestHits))
	paperIDs := make([]string, 0, len(bestHits))
	for _, hit := range bestHits {
		chunkIDs = append(chunkIDs, hit.ChunkID)
		paperIDs = append(paperIDs, hit.PaperID)
	}
	chunks, err := e.chunks.SelectChunks(ctx, chunkIDs)
	if err != nil {
		return nil, helper.NewError("load chunks", err)
	}
	chunkByID := make(map[uuid.UUID]*model.Chunk, len(chunks))
	for _, chunk := range chunks {
		chunkByID[chunk.ID] = chunk
	}
	papers, err := e.papers.SelectPapers(ctx, paperIDs)
	if err != nil {
		return nil, helper.NewError("load papers", err)
	}
	paperByID := make(map[string]*model.Paper, len(papers))
	for _, paper := range papers {
		paperByID[paper.ID] = paper
	}

	similar := make([]*model.SimilarPaper, 0, len(bestHits))
	for _, hit := range bestHits {
		paper, ok := paperByID[hit.PaperID]
		if !ok {
			continue
		}
		result := &model.SimilarPaper{
			Paper:          paper,
			Score:          hit.Score,
			CommonKeywords: commonKeywords(reference.Keywords, paper.Keywords),
		}
		if chunk, ok := chunkByID[hit.ChunkID]; ok {
			result.BestExcerpt = chunk.Excerpt(model.ExcerptLength)
		}
		similar = append(similar, result)
	}

	e.logger.Debug("Found similar papers", "paper_id", paperID, "candidates", len(hits), "similar", len(similar))

	return similar, nil
}

// referenceText is the title and abstract, or the first chunk if both are empty.
func referenceText(paper *model.Paper, chunks []*model.Chunk) string {
	parts := []string{}
	for _, part := range []string{paper.Title, paper.Abstract} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	if len(parts) == 0 {
		for _, chunk := range chunks {
			if chunk.Ordinal == 0 {
				return strings.TrimSpace(chunk.Content)
			}
		}
	}
	return strings.Join(parts, "\n")
}

// commonKeywords keeps the reference order and compares case-insensitively.
func commonKeywords(reference, other []string) []string {
	if len(reference) == 0 || len(other) == 0 {
		return nil
	}
	present := make(map[string]bool, len(other))
	for _, keyword := range other {
		present[strings.ToLower(strings.TrimSpace(keyword))] = true
	}

	common := []string{}
	added := map[string]bool{}
	for _, keyword := range reference {
		key := strings.ToLower(strings.TrimSpace(keyword))
		if key == "" || !present[key] || added[key] {
			continue
		}
		added[key] = true
		common = append(common, keyword)
		if len(common) == model.MaxCommonKeywords {
			break
		}
	}
	return common
}
