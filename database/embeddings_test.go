package database

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddingsNewEmbeddingsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Invalid call with nil database", func(t *testing.T) {
		_, err := NewEmbeddingsDBHandler(nil, testEmbeddingDim, "test-model", false)
		assert.Error(t, err, "Expected error when creating EmbeddingsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})

	t.Run("Invalid call with zero dimension", func(t *testing.T) {
		_, err := NewEmbeddingsDBHandler(database, 0, "test-model", false)
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input for zero dimension")
	})
}

func TestEmbeddingsUpsertAndQuery(t *testing.T) {
	handlers := initHandlers(t)
	ctx := context.Background()

	paperA := "dense-a-" + uuid.NewString()
	paperB := "dense-b-" + uuid.NewString()
	chunkA := uuid.New()
	chunkB := uuid.New()

	entries := []*model.DenseEntry{
		{ChunkID: chunkA, PaperID: paperA, Section: "abstract", Model: "test-model", Vector: []float32{1, 0, 0}},
		{ChunkID: chunkB, PaperID: paperB, Section: "abstract", Model: "test-model", Vector: []float32{0, 1, 0}},
	}

	t.Run("Upsert entries", func(t *testing.T) {
		err := handlers.embeddings.Upsert(ctx, entries)
		require.NoError(t, err, "Expected Upsert to not return an error")
	})

	t.Run("Upsert the same entries twice keeps one row per chunk and model", func(t *testing.T) {
		before, err := handlers.embeddings.CountEmbeddings(ctx)
		require.NoError(t, err, "Expected CountEmbeddings to not return an error")

		require.NoError(t, handlers.embeddings.Upsert(ctx, entries), "Expected repeated Upsert to not return an error")

		after, err := handlers.embeddings.CountEmbeddings(ctx)
		require.NoError(t, err, "Expected CountEmbeddings to not return an error")
		assert.Equal(t, before, after, "Expected no additional rows")
	})

	t.Run("Query ranks the identical vector first with similarity one", func(t *testing.T) {
		hits, err := handlers.embeddings.Query(ctx, []float32{1, 0, 0}, 10, []string{paperA, paperB})
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 2, "Expected both entries")
		assert.Equal(t, chunkA, hits[0].ChunkID, "Expected identical vector first")
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6, "Expected similarity of one")
		assert.InDelta(t, 0.0, hits[1].Score, 1e-6, "Expected orthogonal vector to score zero")
	})

	t.Run("Query respects the paper allowlist", func(t *testing.T) {
		hits, err := handlers.embeddings.Query(ctx, []float32{1, 0, 0}, 10, []string{paperB})
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 1, "Expected only the allowed paper")
		assert.Equal(t, paperB, hits[0].PaperID, "Expected the allowed paper")
	})

	t.Run("Query with wrong dimension is invalid input", func(t *testing.T) {
		_, err := handlers.embeddings.Query(ctx, []float32{1, 0}, 10, nil)
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input for wrong dimension")
	})

	t.Run("Embeddings of another model are not returned", func(t *testing.T) {
		other := &model.DenseEntry{ChunkID: uuid.New(), PaperID: paperA, Model: "other-model", Vector: []float32{1, 0, 0}}
		require.NoError(t, handlers.embeddings.Upsert(ctx, []*model.DenseEntry{other}), "Expected Upsert to not return an error")

		hits, err := handlers.embeddings.Query(ctx, []float32{1, 0, 0}, 10, []string{paperA})
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 1, "Expected only the current model embedding")
		assert.Equal(t, chunkA, hits[0].ChunkID, "Expected the current model chunk")
	})

	t.Run("A model view queries the other model", func(t *testing.T) {
		other := handlers.embeddings.ForModel("other-model")
		assert.Equal(t, "other-model", other.Model(), "Expected the view to query the other model")
		assert.Equal(t, testEmbeddingDim, other.Dim(), "Expected the view to keep the table dimension")

		hits, err := other.Query(ctx, []float32{1, 0, 0}, 10, []string{paperA})
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 1, "Expected only the other model embedding")
		assert.NotEqual(t, chunkA, hits[0].ChunkID, "Expected the other model chunk")
	})

	t.Run("Delete papers removes their embeddings", func(t *testing.T) {
		require.NoError(t, handlers.embeddings.DeletePapers(ctx, []string{paperA}), "Expected DeletePapers to not return an error")

		hits, err := handlers.embeddings.Query(ctx, []float32{1, 0, 0}, 10, []string{paperA})
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Empty(t, hits, "Expected no hits for the deleted paper")
	})
}

func TestEmbeddingsQueryThroughFilteredIndex(t *testing.T) {
	handlers := initHandlers(t)
	ctx := context.Background()

	// one session so the planner setting below applies to every query
	handlers.embeddings.db.Instance.SetMaxOpenConns(1)
	_, err := handlers.embeddings.db.Instance.ExecContext(ctx, `SET enable_seqscan = off`)
	require.NoError(t, err, "Expected disabling sequential scans to not return an error")

	target := "filtered-target-" + uuid.NewString()
	decoy := "filtered-decoy-" + uuid.NewString()

	entries := []*model.DenseEntry{}
	for i := 0; i < 60; i++ {
		entries = append(entries,
			&model.DenseEntry{ChunkID: uuid.New(), PaperID: decoy, Model: "test-model", Vector: []float32{1, 0.001 * float32(i), 0}},
			&model.DenseEntry{ChunkID: uuid.New(), PaperID: target, Model: "other-model", Vector: []float32{1, 0, 0}},
		)
	}
	for j := 0; j < 5; j++ {
		entries = append(entries, &model.DenseEntry{ChunkID: uuid.New(), PaperID: target, Model: "test-model", Vector: []float32{0.2, 1, 0.05 * float32(j)}})
	}
	require.NoError(t, handlers.embeddings.Upsert(ctx, entries), "Expected Upsert to not return an error")

	t.Run("Allowlisted entries behind many closer entries are found", func(t *testing.T) {
		hits, err := handlers.embeddings.Query(ctx, []float32{1, 0, 0}, 5, []string{target})
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 5, "Expected every allowlisted entry of the model")
		for i, hit := range hits {
			assert.Equal(t, target, hit.PaperID, "Expected only the allowed paper")
			if i > 0 {
				assert.GreaterOrEqual(t, hits[i-1].Score, hit.Score, "Expected descending similarity")
			}
		}
	})

	t.Run("Limits above the default candidate list are filled", func(t *testing.T) {
		hits, err := handlers.embeddings.Query(ctx, []float32{1, 0, 0}, 60, []string{decoy, target})
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 60, "Expected the full limit")
		for i, hit := range hits {
			assert.Equal(t, decoy, hit.PaperID, "Expected the closest entries of the model")
			if i > 0 {
				assert.GreaterOrEqual(t, hits[i-1].Score, hit.Score, "Expected descending similarity")
			}
		}
	})
}
