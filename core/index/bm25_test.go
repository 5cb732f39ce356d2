package index

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	t.Run("Keep hyphenated compounds and their parts", func(t *testing.T) {
		terms := Tokenize("CRISPR-Cas9 reduces off-target effects in the cells")
		assert.Equal(t, []string{"crispr-cas9", "crispr", "cas9", "reduces", "off-target", "off", "target", "effects", "cells"}, terms, "Expected lowercased terms without stopwords")
	})

	t.Run("Drop single characters and punctuation", func(t *testing.T) {
		terms := Tokenize("a b, (c) ?! x1")
		assert.Equal(t, []string{"x1"}, terms, "Expected only multi character terms")
	})

	t.Run("Empty text", func(t *testing.T) {
		assert.Empty(t, Tokenize(""), "Expected no terms for empty text")
	})
}

func TestBM25Index(t *testing.T) {
	ctx := context.Background()

	crispr := uuid.New()
	base := uuid.New()
	unrelated := uuid.New()
	entries := []*model.SparseEntry{
		{ChunkID: crispr, PaperID: "p1", Content: "CRISPR-Cas9 off-target effects were measured by sequencing."},
		{ChunkID: base, PaperID: "p2", Content: "Base editors reduce off-target editing compared with nucleases."},
		{ChunkID: unrelated, PaperID: "p3", Content: "Protein folding kinetics of small domains."},
	}

	t.Run("Rank matching chunks", func(t *testing.T) {
		index := NewBM25Index()
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")
		assert.Equal(t, 3, index.Count(), "Expected three indexed chunks")

		hits, err := index.Query(ctx, "CRISPR off-target", 10, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 2, "Expected only chunks sharing a term")
		assert.Equal(t, crispr, hits[0].ChunkID, "Expected the chunk matching both terms first")
		assert.Equal(t, base, hits[1].ChunkID, "Expected the chunk matching one term second")
		assert.Greater(t, hits[0].Score, hits[1].Score, "Expected descending scores")
	})

	t.Run("Respect topK and allowlist", func(t *testing.T) {
		index := NewBM25Index()
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")

		hits, err := index.Query(ctx, "off-target", 1, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Len(t, hits, 1, "Expected topK to limit the hits")

		hits, err = index.Query(ctx, "off-target", 10, []string{"p2"})
		require.NoError(t, err, "Expected Query to not return an error")
		require.Len(t, hits, 1, "Expected the allowlist to filter hits")
		assert.Equal(t, "p2", hits[0].PaperID, "Expected only the allowed paper")
	})

	t.Run("Query without terms returns no hits", func(t *testing.T) {
		index := NewBM25Index()
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")

		hits, err := index.Query(ctx, "the of ?", 10, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		assert.NotNil(t, hits, "Expected an empty slice, not nil")
		assert.Empty(t, hits, "Expected no hits for a query of stopwords")
	})

	t.Run("Upsert replaces a chunk", func(t *testing.T) {
		index := NewBM25Index()
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")
		require.NoError(t, index.Upsert(ctx, []*model.SparseEntry{{ChunkID: unrelated, PaperID: "p3", Content: "Prime editing of CRISPR targets."}}), "Expected Upsert to not return an error")
		assert.Equal(t, 3, index.Count(), "Expected the replaced chunk to be counted once")

		hits, err := index.Query(ctx, "folding", 10, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Empty(t, hits, "Expected the old content to be gone")
	})

	t.Run("Delete papers and clear", func(t *testing.T) {
		index := NewBM25Index()
		require.NoError(t, index.Upsert(ctx, entries), "Expected Upsert to not return an error")

		require.NoError(t, index.DeletePapers(ctx, []string{"p1"}), "Expected DeletePapers to not return an error")
		assert.Equal(t, 2, index.Count(), "Expected two chunks left")
		hits, err := index.Query(ctx, "crispr", 10, nil)
		require.NoError(t, err, "Expected Query to not return an error")
		assert.Empty(t, hits, "Expected no hits of the deleted paper")

		require.NoError(t, index.Clear(ctx), "Expected Clear to not return an error")
		assert.Equal(t, 0, index.Count(), "Expected an empty index")
	})
}
