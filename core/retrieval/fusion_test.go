package retrieval

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeMinMax(t *testing.T) {
	t.Run("Scale onto the unit interval", func(t *testing.T) {
		a, b, c := uuid.New(), uuid.New(), uuid.New()
		normalized := NormalizeMinMax([]*model.Hit{{ChunkID: a, Score: 2}, {ChunkID: b, Score: 4}, {ChunkID: c, Score: 6}})
		assert.InDelta(t, 0.0, normalized[a], 1e-9, "Expected the lowest score to map to 0")
		assert.InDelta(t, 0.5, normalized[b], 1e-9, "Expected the middle score to map to 0.5")
		assert.InDelta(t, 1.0, normalized[c], 1e-9, "Expected the highest score to map to 1")
	})

	t.Run("Equal scores map to one", func(t *testing.T) {
		a, b := uuid.New(), uuid.New()
		normalized := NormalizeMinMax([]*model.Hit{{ChunkID: a, Score: 3.7}, {ChunkID: b, Score: 3.7}})
		assert.Equal(t, 1.0, normalized[a], "Expected equal scores to map to 1")
		assert.Equal(t, 1.0, normalized[b], "Expected equal scores to map to 1")
	})

	t.Run("No hits", func(t *testing.T) {
		assert.Empty(t, NormalizeMinMax(nil), "Expected no scores for no hits")
	})
}

func TestEffectiveWeights(t *testing.T) {
	config := model.DefaultRetrievalConfig()

	tests := []struct {
		name     string
		denseOK  bool
		sparseOK bool
		expected model.Weights
	}{
		{name: "Both indexes answered", denseOK: true, sparseOK: true, expected: model.Weights{Dense: 0.7, Sparse: 0.3}},
		{name: "Only the dense index answered", denseOK: true, expected: model.Weights{Dense: 1}},
		{name: "Only the sparse index answered", sparseOK: true, expected: model.Weights{Sparse: 1}},
		{name: "No index answered", expected: model.Weights{}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			weights := EffectiveWeights(config, test.denseOK, test.sparseOK)
			assert.Equal(t, test.expected, weights, "Expected the effective weights")
			if test.denseOK || test.sparseOK {
				assert.InDelta(t, 1.0, weights.Dense+weights.Sparse, 1e-9, "Expected the weights to sum to 1")
			}
		})
	}
}

func TestFuse(t *testing.T) {
	weights := model.Weights{Dense: 0.7, Sparse: 0.3}

	t.Run("Weighted sum with missing lists contributing zero", func(t *testing.T) {
		c1, c2, c3 := uuid.New(), uuid.New(), uuid.New()
		dense := []*model.Hit{{ChunkID: c1, PaperID: "p1", Score: 0.9}, {ChunkID: c2, PaperID: "p2", Score: 0.5}}
		sparse := []*model.Hit{{ChunkID: c2, PaperID: "p2", Score: 10}, {ChunkID: c3, PaperID: "p3", Score: 2}}

		results := Fuse(dense, sparse, weights, nil)
		require.Len(t, results, 3, "Expected one result per distinct chunk")

		assert.Equal(t, c2, results[0].ChunkID, "Expected the chunk found by both indexes first")
		assert.InDelta(t, 0.7*0.5+0.3*1, results[0].FusedScore, 1e-9, "Expected the weighted sum for c2")
		assert.Equal(t, c1, results[1].ChunkID, "Expected the dense only chunk second")
		assert.InDelta(t, 0.7*0.9, results[1].FusedScore, 1e-9, "Expected only the dense term for c1")
		assert.Nil(t, results[1].SparseScore, "Expected no sparse score for c1")
		assert.Equal(t, c3, results[2].ChunkID, "Expected the lowest sparse chunk last")
		assert.Nil(t, results[2].DenseScore, "Expected no dense score for c3")
		require.NotNil(t, results[2].SparseScore, "Expected a sparse score for c3")
		assert.InDelta(t, 0.0, *results[2].SparseScore, 1e-9, "Expected the lowest sparse score to normalize to 0")

		for i, result := range results {
			assert.Equal(t, i+1, result.Rank, "Expected 1-based ranks")
			expected := 0.0
			if result.DenseScore != nil {
				expected += weights.Dense * *result.DenseScore
			}
			if result.SparseScore != nil {
				expected += weights.Sparse * *result.SparseScore
			}
			assert.InDelta(t, expected, result.FusedScore, 1e-9, "Expected the fusion formula for rank %d", result.Rank)
		}
	})

	t.Run("Dense scores are clamped", func(t *testing.T) {
		c1 := uuid.New()
		results := Fuse([]*model.Hit{{ChunkID: c1, PaperID: "p1", Score: 1.2}}, nil, weights, nil)
		require.Len(t, results, 1, "Expected one result")
		assert.Equal(t, 1.0, *results[0].DenseScore, "Expected the dense score clamped to 1")
	})

	t.Run("Ties break by date then paper id then chunk id", func(t *testing.T) {
		older, newer := uuid.New(), uuid.New()
		a1, a2 := uuid.MustParse("00000000-0000-0000-0000-000000000001"), uuid.MustParse("00000000-0000-0000-0000-000000000002")
		b1 := uuid.New()
		dense := []*model.Hit{
			{ChunkID: a2, PaperID: "a", Score: 0.5},
			{ChunkID: older, PaperID: "old", Score: 0.5},
			{ChunkID: b1, PaperID: "b", Score: 0.5},
			{ChunkID: newer, PaperID: "new", Score: 0.5},
			{ChunkID: a1, PaperID: "a", Score: 0.5},
		}
		published := map[string]time.Time{
			"old": date(2019),
			"new": date(2024),
			"a":   date(2021),
			"b":   date(2021),
		}

		results := Fuse(dense, nil, weights, published)
		order := make([]uuid.UUID, len(results))
		for i, result := range results {
			order[i] = result.ChunkID
		}
		assert.Equal(t, []uuid.UUID{newer, a1, a2, b1, older}, order, "Expected the deterministic tie-break order")
	})

	t.Run("Ties within a paper follow the chunk ordinal", func(t *testing.T) {
		first := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")
		second := uuid.MustParse("00000000-0000-0000-0000-000000000001")
		dense := []*model.Hit{
			{ChunkID: second, PaperID: "p", Ordinal: 1, Score: 0.5},
			{ChunkID: first, PaperID: "p", Ordinal: 0, Score: 0.5},
		}

		results := Fuse(dense, nil, weights, nil)
		require.Len(t, results, 2, "Expected two results")
		assert.Equal(t, first, results[0].ChunkID, "Expected the earlier chunk of the paper first despite its larger id")
		assert.Equal(t, second, results[1].ChunkID, "Expected the later chunk second")
	})

	t.Run("Order does not depend on input order", func(t *testing.T) {
		var dense, sparse []*model.Hit
		for i := 0; i < 20; i++ {
			id := uuid.New()
			dense = append(dense, &model.Hit{ChunkID: id, PaperID: "p", Score: float64(i%3) / 3})
			sparse = append(sparse, &model.Hit{ChunkID: id, PaperID: "p", Score: float64(i % 4)})
		}
		expected := Fuse(dense, sparse, weights, nil)

		shuffle := rand.New(rand.NewSource(42))
		for run := 0; run < 10; run++ {
			shuffledDense := append([]*model.Hit(nil), dense...)
			shuffledSparse := append([]*model.Hit(nil), sparse...)
			shuffle.Shuffle(len(shuffledDense), func(i, j int) { shuffledDense[i], shuffledDense[j] = shuffledDense[j], shuffledDense[i] })
			shuffle.Shuffle(len(shuffledSparse), func(i, j int) { shuffledSparse[i], shuffledSparse[j] = shuffledSparse[j], shuffledSparse[i] })

			results := Fuse(shuffledDense, shuffledSparse, weights, nil)
			for i := range expected {
				assert.Equal(t, expected[i].ChunkID, results[i].ChunkID, "Expected the same chunk at rank %d", i+1)
			}
		}
	})

	t.Run("No hits", func(t *testing.T) {
		results := Fuse(nil, nil, weights, nil)
		assert.NotNil(t, results, "Expected an empty slice, not nil")
		assert.Empty(t, results, "Expected no results")
	})
}
