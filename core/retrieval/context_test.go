package retrieval

import (
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type candidate struct {
	paperID string
	tokens  int
}

func rankedResults(entries ...candidate) []*model.FusedResult {
	results := make([]*model.FusedResult, len(entries))
	for i, entry := range entries {
		id := uuid.New()
		results[i] = &model.FusedResult{
			ChunkID:    id,
			PaperID:    entry.paperID,
			FusedScore: 1 - float64(i)/10,
			Rank:       i + 1,
			Chunk:      &model.Chunk{ID: id, PaperID: entry.paperID, TokenCount: entry.tokens},
		}
	}
	return results
}

func TestBuildContext(t *testing.T) {
	t.Run("Stay within the token budget", func(t *testing.T) {
		results := rankedResults(candidate{"p1", 300}, candidate{"p2", 300}, candidate{"p3", 300})
		window, err := BuildContext(results, 700, 2)
		require.NoError(t, err, "Expected BuildContext to not return an error")
		assert.Len(t, window.Items, 2, "Expected two chunks to fit")
		assert.Equal(t, 600, window.TotalTokens, "Expected the token total of the selected chunks")
		assert.Equal(t, 700, window.Budget, "Expected the budget to be recorded")
	})

	t.Run("Skip a chunk that does not fit and continue", func(t *testing.T) {
		results := rankedResults(candidate{"p1", 500}, candidate{"p2", 400}, candidate{"p3", 200}, candidate{"p4", 10})
		window, err := BuildContext(results, 700, 2)
		require.NoError(t, err, "Expected BuildContext to not return an error")
		require.Len(t, window.Items, 2, "Expected the first and third chunk")
		assert.Equal(t, results[0], window.Items[0], "Expected the best chunk first")
		assert.Equal(t, results[2], window.Items[1], "Expected the third chunk after skipping the second")
		assert.Equal(t, 700, window.TotalTokens, "Expected the budget to be exhausted")
	})

	t.Run("Respect the per paper cap", func(t *testing.T) {
		results := rankedResults(candidate{"p1", 10}, candidate{"p1", 10}, candidate{"p1", 10}, candidate{"p2", 10})
		window, err := BuildContext(results, 4000, 2)
		require.NoError(t, err, "Expected BuildContext to not return an error")
		require.Len(t, window.Items, 3, "Expected the third p1 chunk to be skipped")
		assert.Equal(t, []*model.FusedResult{results[0], results[1], results[3]}, window.Items, "Expected rank order to be preserved")
	})

	t.Run("No candidates is an empty window", func(t *testing.T) {
		window, err := BuildContext(nil, 4000, 2)
		require.NoError(t, err, "Expected BuildContext to not return an error")
		assert.True(t, window.Empty(), "Expected an empty window")
		assert.Equal(t, 0, window.TotalTokens, "Expected no tokens")
	})

	t.Run("Nothing fits is budget exceeded", func(t *testing.T) {
		results := rankedResults(candidate{"p1", 900})
		_, err := BuildContext(results, 500, 2)
		assert.ErrorIs(t, err, helper.ErrBudgetExceeded, "Expected budget exceeded when no chunk fits")
	})

	t.Run("Invalid limits", func(t *testing.T) {
		_, err := BuildContext(nil, 0, 2)
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input for a zero budget")
		_, err = BuildContext(nil, 100, 0)
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input for a zero cap")
	})

	t.Run("Budget and cap hold for any candidate list", func(t *testing.T) {
		var entries []candidate
		for i := 0; i < 50; i++ {
			entries = append(entries, candidate{[]string{"p1", "p2", "p3"}[i%3], 50 + (i*37)%400})
		}
		window, err := BuildContext(rankedResults(entries...), 1000, 2)
		require.NoError(t, err, "Expected BuildContext to not return an error")

		perPaper := map[string]int{}
		total := 0
		for _, item := range window.Items {
			perPaper[item.PaperID]++
			total += item.Chunk.TokenCount
		}
		assert.LessOrEqual(t, window.TotalTokens, 1000, "Expected the total to stay within the budget")
		assert.Equal(t, total, window.TotalTokens, "Expected the total to match the selected chunks")
		for paperID, count := range perPaper {
			assert.LessOrEqual(t, count, 2, "Expected at most two chunks of %s", paperID)
		}
	})
}
