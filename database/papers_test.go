package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPapersNewPapersDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewPapersDBHandler", func(t *testing.T) {
		papersDbHandler, err := NewPapersDBHandler(database, true)
		assert.NoError(t, err, "Expected NewPapersDBHandler to not return an error")
		require.NotNil(t, papersDbHandler, "Expected NewPapersDBHandler to return a non-nil instance")
		require.NotNil(t, papersDbHandler.db, "Expected NewPapersDBHandler to have a non-nil database instance")
	})

	t.Run("Invalid call NewPapersDBHandler with nil database", func(t *testing.T) {
		_, err := NewPapersDBHandler(nil, false)
		assert.Error(t, err, "Expected error when creating PapersDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestPapersUpsertAndSelect(t *testing.T) {
	handlers := initHandlers(t)
	ctx := context.Background()

	published := time.Date(2023, 5, 17, 0, 0, 0, 0, time.UTC)
	paper := &model.Paper{
		ID:          "pmid-" + uuid.NewString(),
		Title:       "Base editing without double-strand breaks",
		Abstract:    "Base editors convert single nucleotides.",
		Authors:     []string{"A. Author", "B. Author"},
		Venue:       "Nature",
		PublishedAt: published,
		Keywords:    []string{"CRISPR", "base editing"},
		Metadata:    model.Metadata{"source": "pubmed"},
	}

	t.Run("Insert a new paper", func(t *testing.T) {
		err := handlers.papers.UpsertPaper(ctx, paper)
		require.NoError(t, err, "Expected UpsertPaper to not return an error")
		assert.WithinDuration(t, time.Now(), paper.CreatedAt, 5*time.Second, "Expected CreatedAt to be set")
	})

	t.Run("Select the inserted paper", func(t *testing.T) {
		selected, err := handlers.papers.SelectPaper(ctx, paper.ID)
		require.NoError(t, err, "Expected SelectPaper to not return an error")
		assert.Equal(t, paper.Title, selected.Title, "Expected title to round-trip")
		assert.Equal(t, paper.Authors, selected.Authors, "Expected authors to round-trip")
		assert.Equal(t, paper.Keywords, selected.Keywords, "Expected keywords to round-trip")
		assert.True(t, published.Equal(selected.PublishedAt), "Expected publication date to round-trip")
		assert.Equal(t, "pubmed", selected.Metadata.String("source"), "Expected metadata to round-trip")
	})

	t.Run("Upsert refreshes metadata of an existing paper", func(t *testing.T) {
		paper.Title = "Base editing revisited"
		err := handlers.papers.UpsertPaper(ctx, paper)
		require.NoError(t, err, "Expected UpsertPaper to not return an error")

		selected, err := handlers.papers.SelectPaper(ctx, paper.ID)
		require.NoError(t, err, "Expected SelectPaper to not return an error")
		assert.Equal(t, "Base editing revisited", selected.Title, "Expected title to be updated")
	})

	t.Run("Paper without publication date stores zero time", func(t *testing.T) {
		undated := &model.Paper{ID: "undated-" + uuid.NewString(), Title: "Undated"}
		require.NoError(t, handlers.papers.UpsertPaper(ctx, undated), "Expected UpsertPaper to not return an error")

		selected, err := handlers.papers.SelectPaper(ctx, undated.ID)
		require.NoError(t, err, "Expected SelectPaper to not return an error")
		assert.True(t, selected.PublishedAt.IsZero(), "Expected zero publication date")
		assert.Empty(t, selected.Authors, "Expected no authors")
	})

	t.Run("Select several papers ignores unknown ids", func(t *testing.T) {
		papers, err := handlers.papers.SelectPapers(ctx, []string{paper.ID, "unknown-" + uuid.NewString()})
		require.NoError(t, err, "Expected SelectPapers to not return an error")
		require.Len(t, papers, 1, "Expected only the known paper")
		assert.Equal(t, paper.ID, papers[0].ID, "Expected the known paper")
	})

	t.Run("Select all papers enumerates the corpus", func(t *testing.T) {
		papers, err := handlers.papers.SelectAllPapers(ctx)
		require.NoError(t, err, "Expected SelectAllPapers to not return an error")
		ids := make([]string, 0, len(papers))
		for _, p := range papers {
			ids = append(ids, p.ID)
		}
		assert.Contains(t, ids, paper.ID, "Expected corpus to contain the paper")
	})

	t.Run("Delete a paper", func(t *testing.T) {
		err := handlers.papers.DeletePaper(ctx, paper.ID)
		require.NoError(t, err, "Expected DeletePaper to not return an error")

		_, err = handlers.papers.SelectPaper(ctx, paper.ID)
		assert.ErrorIs(t, err, helper.ErrNotFound, "Expected SelectPaper of a deleted paper to return not found")
	})
}
