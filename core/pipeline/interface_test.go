package pipeline

import (
	"testing"

	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineChunkPaper(t *testing.T) {
	p := NewPipeline(TokenChunker(8, 2))

	t.Run("Chunk abstract and sections with contiguous ordinals", func(t *testing.T) {
		paper := &model.Paper{
			ID:       "pmid-1",
			Title:    "CRISPR off-target effects.",
			Abstract: "We measure off-target effects [1] of Cas9.",
			Sections: []model.Section{
				{Label: "Methods", Text: "Guide RNAs were designed for twelve loci and sequenced deeply across replicates."},
			},
		}

		chunks, err := p.ChunkPaper(paper)
		require.NoError(t, err, "Expected ChunkPaper to not return an error")
		require.GreaterOrEqual(t, len(chunks), 3, "Expected abstract and methods chunks")

		assert.Equal(t, "abstract", chunks[0].Section, "Expected first chunk in the abstract section")
		assert.Equal(t, "CRISPR off-target effects. We measure off-target effects of", chunks[0].Content, "Expected title joined with the cleaned abstract")
		assert.Equal(t, "methods", chunks[len(chunks)-1].Section, "Expected lowercased section label")
		for i, chunk := range chunks {
			assert.Equal(t, i, chunk.Ordinal, "Expected contiguous ordinals")
			assert.Equal(t, "pmid-1", chunk.PaperID, "Expected paper id on every chunk")
			assert.Equal(t, HashContent(chunk.Content), chunk.ContentHash, "Expected content hash")
			assert.Len(t, chunk.ContentHash, 64, "Expected hex sha256")
		}
	})

	t.Run("Paper without text yields zero chunks", func(t *testing.T) {
		chunks, err := p.ChunkPaper(&model.Paper{ID: "empty"})
		assert.NoError(t, err, "Expected no error for a paper without text")
		assert.Empty(t, chunks, "Expected zero chunks")
	})

	t.Run("Paper without id is invalid", func(t *testing.T) {
		_, err := p.ChunkPaper(&model.Paper{Title: "No id"})
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input")
	})

	t.Run("Identical text yields identical hashes", func(t *testing.T) {
		paper := &model.Paper{ID: "pmid-2", Title: "Base editing", Abstract: "Base editors avoid double strand breaks."}
		first, err := p.ChunkPaper(paper)
		require.NoError(t, err, "Expected ChunkPaper to not return an error")
		second, err := p.ChunkPaper(paper)
		require.NoError(t, err, "Expected ChunkPaper to not return an error")

		require.Equal(t, len(first), len(second), "Expected the same number of chunks")
		for i := range first {
			assert.Equal(t, first[i].ContentHash, second[i].ContentHash, "Expected deterministic hashes")
		}
	})
}
