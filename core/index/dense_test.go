package index

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDenseIndex(t *testing.T) {
	ctx := context.Background()

	same := uuid.New()
	orthogonal := uuid.New()
	opposite := uuid.New()
	entries := []*model.DenseEntry{
		{ChunkID: same, PaperID: "p1", Vector: []float32{1, 0, 0}},
		{ChunkID: orthogonal, PaperID: "p2", Vector: []float32{0, 1, 0}},
		{ChunkID: opposite, PaperID: "p3", Vector: []float32{-1, 0, 0}},
	}

	t.Run("Score by clamped cosine similarity", func(t *testing.T) {
		index := NewMemoryDenseIndex("test-model", 3)
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")

		hits, err := index.Query(ctx, []float32{2, 0, 0}, 10, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 3, "Expected all vectors to be scored")
		assert.Equal(t, same, hits[0].ChunkID, "Expected the identical direction first")
		assert.InDelta(t, 1.0, hits[0].Score, 1e-9, "Expected a score of 1 for the same direction")
		for _, hit := range hits[1:] {
			assert.InDelta(t, 0.0, hit.Score, 1e-9, "Expected orthogonal and opposite vectors to score 0")
		}
	})

	t.Run("Equal scores keep the chunk order of the paper", func(t *testing.T) {
		index := NewMemoryDenseIndex("test-model", 3)
		late := uuid.MustParse("00000000-0000-0000-0000-000000000001")
		early := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")
		require.NoError(t, index.Upsert(ctx, []*model.DenseEntry{
			{ChunkID: late, PaperID: "p1", Ordinal: 3, Vector: []float32{1, 0, 0}},
			{ChunkID: early, PaperID: "p1", Ordinal: 0, Vector: []float32{1, 0, 0}},
		}), "Expected Upsert to not return an error")

		hits, err := index.Query(ctx, []float32{1, 0, 0}, 1, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 1, "Expected the topK cut")
		assert.Equal(t, early, hits[0].ChunkID, "Expected the lower ordinal to survive the cut")
		assert.Equal(t, 0, hits[0].Ordinal, "Expected the ordinal on the hit")
	})

	t.Run("Reject wrong dimensions", func(t *testing.T) {
		index := NewMemoryDenseIndex("test-model", 3)
		err := index.Upsert(ctx, []*model.DenseEntry{{ChunkID: uuid.New(), PaperID: "p1", Vector: []float32{1, 0}}})
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input for a short vector")

		_, err = index.Query(ctx, []float32{1}, 10, nil)
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input for a short query vector")
	})

	t.Run("Only query vectors of the index model", func(t *testing.T) {
		index := NewMemoryDenseIndex("test-model", 3)
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")
		require.NoError(t, index.Upsert(ctx, []*model.DenseEntry{{ChunkID: same, PaperID: "p1", Model: "old-model", Vector: []float32{1, 0, 0}}}), "Expected Upsert to not return an error")

		assert.Equal(t, 3, index.Count(), "Expected other model vectors to not be counted")
		hits, err := index.Query(ctx, []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Len(t, hits, 3, "Expected other model vectors to be ignored")
	})

	t.Run("Respect topK and allowlist", func(t *testing.T) {
		index := NewMemoryDenseIndex("test-model", 3)
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")

		hits, err := index.Query(ctx, []float32{1, 0, 0}, 1, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Len(t, hits, 1, "Expected topK to limit the hits")

		hits, err = index.Query(ctx, []float32{1, 0, 0}, 10, []string{"p2", "p3"})
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Len(t, hits, 2, "Expected the allowlist to filter hits")
		for _, hit := range hits {
			assert.NotEqual(t, "p1", hit.PaperID, "Expected no hit of a paper outside the allowlist")
		}
	})

	t.Run("Delete papers and clear", func(t *testing.T) {
		index := NewMemoryDenseIndex("test-model", 3)
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")

		require.NoError(t, index.DeletePapers(ctx, []string{"p1", "p2"}), "Expected DeletePapers to not return an error")
		assert.Equal(t, 1, index.Count(), "Expected one vector left")

		require.NoError(t, index.Clear(ctx), "Expected Clear to not return an error")
		assert.Equal(t, 0, index.Count(), "Expected an empty index")
	})

	t.Run("Model views share storage", func(t *testing.T) {
		index := NewMemoryDenseIndex("test-model", 3)
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")

		next := index.ForModel("next-model", 2)
		assert.Equal(t, "next-model", next.Model(), "Expected the view to query the new model")
		assert.Equal(t, 0, next.Count(), "Expected no vectors of the new model yet")

		require.NoError(t, next.Upsert(ctx, []*model.DenseEntry{{ChunkID: same, PaperID: "p1", Vector: []float32{1, 0}}}), "Expected Upsert to not return an error")
		assert.Equal(t, 1, next.Count(), "Expected one vector of the new model")
		assert.Equal(t, 3, index.Count(), "Expected the old model vectors to be kept")

		require.NoError(t, next.DeletePapers(ctx, []string{"p1"}), "Expected DeletePapers to not return an error")
		assert.Equal(t, 0, next.Count(), "Expected the new model vector to be deleted")
		assert.Equal(t, 2, index.Count(), "Expected the old model vector of p1 to be deleted too")
	})
}
