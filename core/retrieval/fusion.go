package retrieval

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/model"
)

// NormalizeMinMax maps raw scores onto [0,1] over the candidate set.
// If all candidates score the same they all map to 1.
func NormalizeMinMax(hits []*model.Hit) map[uuid.UUID]float64 {
	normalized := make(map[uuid.UUID]float64, len(hits))
	if len(hits) == 0 {
		return normalized
	}

	low, high := hits[0].Score, hits[0].Score
	for _, hit := range hits[1:] {
		low = min(low, hit.Score)
		high = max(high, hit.Score)
	}

	for _, hit := range hits {
		if high == low {
			normalized[hit.ChunkID] = 1
			continue
		}
		normalized[hit.ChunkID] = (hit.Score - low) / (high - low)
	}
	return normalized
}

// clampScores keeps dense similarities as they are, they already lie in [0,1].
func clampScores(hits []*model.Hit) map[uuid.UUID]float64 {
	scores := make(map[uuid.UUID]float64, len(hits))
	for _, hit := range hits {
		scores[hit.ChunkID] = max(0, min(1, hit.Score))
	}
	return scores
}

// EffectiveWeights returns the weights applied to a query. If only one
// index answered, its weight is renormalized to 1.
func EffectiveWeights(config model.RetrievalConfig, denseOK bool, sparseOK bool) model.Weights {
	switch {
	case denseOK && sparseOK:
		return model.Weights{Dense: config.DenseWeight, Sparse: config.SparseWeight}
	case denseOK:
		return model.Weights{Dense: 1}
	case sparseOK:
		return model.Weights{Sparse: 1}
	default:
		return model.Weights{}
	}
}

// Fuse merges the dense and sparse hits into one ranking with
// fused = wd*dense + ws*sparse, where a chunk missing from a list contributes
// 0 for that list. Dense scores are used as is, sparse scores are min-max
// normalized. Ties are broken by newer publication date, then paper id, then
// chunk ordinal and finally chunk id. published maps paper ids to their
// publication date.
func Fuse(dense []*model.Hit, sparse []*model.Hit, weights model.Weights, published map[string]time.Time) []*model.FusedResult {
	denseScores := clampScores(dense)
	sparseScores := NormalizeMinMax(sparse)

	byChunk := map[uuid.UUID]*model.FusedResult{}
	ordinals := map[uuid.UUID]int{}
	get := func(hit *model.Hit) *model.FusedResult {
		result, ok := byChunk[hit.ChunkID]
		if !ok {
			result = &model.FusedResult{ChunkID: hit.ChunkID, PaperID: hit.PaperID}
			byChunk[hit.ChunkID] = result
			ordinals[hit.ChunkID] = hit.Ordinal
		}
		return result
	}

	for _, hit := range dense {
		score := denseScores[hit.ChunkID]
		get(hit).DenseScore = &score
	}
	for _, hit := range sparse {
		score := sparseScores[hit.ChunkID]
		get(hit).SparseScore = &score
	}

	results := make([]*model.FusedResult, 0, len(byChunk))
	for _, result := range byChunk {
		if result.DenseScore != nil {
			result.FusedScore += weights.Dense * *result.DenseScore
		}
		if result.SparseScore != nil {
			result.FusedScore += weights.Sparse * *result.SparseScore
		}
		results = append(results, result)
	}

	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.FusedScore != b.FusedScore {
			return a.FusedScore > b.FusedScore
		}
		dateA, dateB := published[a.PaperID], published[b.PaperID]
		if !dateA.Equal(dateB) {
			return dateA.After(dateB)
		}
		if a.PaperID != b.PaperID {
			return a.PaperID < b.PaperID
		}
		if ordinals[a.ChunkID] != ordinals[b.ChunkID] {
			return ordinals[a.ChunkID] < ordinals[b.ChunkID]
		}
		return a.ChunkID.String() < b.ChunkID.String()
	})

	for i, result := range results {
		result.Rank = i + 1
	}
	return results
}
