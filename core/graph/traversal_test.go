package graph

import (
	"context"
	"testing"
	"time"

	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func published(year int) time.Time {
	return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
}

func testPapers() []*model.Paper {
	return []*model.Paper{
		{
			ID:          "crispr-offtarget",
			Title:       "Off-target effects of CRISPR-Cas9",
			Authors:     []string{"Jane Doe", "John Roe"},
			Keywords:    []string{"CRISPR", "off-target"},
			PublishedAt: published(2021),
		},
		{
			ID:          "base-editing",
			Title:       "Base editing without double-strand breaks",
			Authors:     []string{"jane doe", "Ann Poe", "Ann Poe"},
			Keywords:    []string{"crispr", "base editing"},
			PublishedAt: published(2022),
		},
		{
			ID:          "prime-editing",
			Title:       "Prime editing",
			Authors:     []string{"Jane Doe", "John Roe"},
			Keywords:    []string{"CRISPR", "prime editing", "off-target"},
			PublishedAt: published(2023),
		},
		{
			ID:       "protein-folding",
			Title:    "Protein structure prediction",
			Authors:  []string{"Max Moe", " "},
			Keywords: []string{"protein folding"},
		},
	}
}

func paperIDs(papers []model.PaperNode) []string {
	ids := []string{}
	for _, p := range papers {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestBuild(t *testing.T) {
	g := Build(append(testPapers(), nil))

	t.Run("Merge authors and keywords case-insensitively", func(t *testing.T) {
		// 4 papers, 4 authors, 5 keywords
		assert.Equal(t, 13, g.Len(), "Expected merged author and keyword nodes")

		node, ok := g.Node(model.NodeKindAuthor, "JANE  DOE")
		require.True(t, ok, "Expected the author node")
		assert.Equal(t, "Jane Doe", node.Label(), "Expected the first spelling as label")

		node, ok = g.Node(model.NodeKindKeyword, "Crispr")
		require.True(t, ok, "Expected the keyword node")
		assert.Equal(t, "CRISPR", node.Label(), "Expected the first spelling as label")
	})

	t.Run("Paper nodes carry title and year", func(t *testing.T) {
		node, ok := g.Node(model.NodeKindPaper, "prime-editing")
		require.True(t, ok, "Expected the paper node")
		require.NotNil(t, node.Paper, "Expected the paper payload")
		assert.Equal(t, 2023, node.Paper.Year, "Expected the publication year")
		assert.Nil(t, node.Author, "Expected only the paper payload")
	})

	t.Run("Duplicate authors of a paper give one edge", func(t *testing.T) {
		edges, err := g.GetEdges(context.Background(), model.NodeID{Kind: model.NodeKindPaper, Key: "base-editing"}, []model.EdgeKind{model.EdgeAuthoredBy})
		require.NoError(t, err, "Expected GetEdges to not return an error")
		assert.Len(t, edges, 2, "Expected jane doe and Ann Poe once each")
	})

	t.Run("Nodes keep insertion order", func(t *testing.T) {
		nodes := g.Nodes()
		require.Len(t, nodes, 13, "Expected every node")
		assert.Equal(t, model.NodeKindPaper, nodes[0].Kind, "Expected the first paper first")
		assert.Equal(t, "crispr-offtarget", nodes[0].Paper.ID, "Expected the first paper first")
	})
}

func TestExplorationQueries(t *testing.T) {
	g := Build(testPapers())

	t.Run("Papers by author newest first", func(t *testing.T) {
		papers := g.PapersByAuthor("jane doe", 0)
		assert.Equal(t, []string{"prime-editing", "base-editing", "crispr-offtarget"}, paperIDs(papers), "Expected the papers of Jane Doe by year")

		papers = g.PapersByAuthor("Jane Doe", 1)
		assert.Equal(t, []string{"prime-editing"}, paperIDs(papers), "Expected the limit to apply")
	})

	t.Run("Papers by keyword", func(t *testing.T) {
		papers := g.PapersByKeyword("OFF-TARGET", 0)
		assert.Equal(t, []string{"prime-editing", "crispr-offtarget"}, paperIDs(papers), "Expected the papers mentioning off-target")
	})

	t.Run("Unknown author has no papers", func(t *testing.T) {
		papers := g.PapersByAuthor("nobody", 10)
		assert.NotNil(t, papers, "Expected a non-nil slice")
		assert.Empty(t, papers, "Expected no papers")
	})

	t.Run("Coauthors by shared papers", func(t *testing.T) {
		coauthors := g.Coauthors("Jane Doe", 0)
		assert.Equal(t, []Collaboration{
			{Name: "John Roe", Papers: 2},
			{Name: "Ann Poe", Papers: 1},
		}, coauthors, "Expected coauthors ordered by shared papers")

		assert.Empty(t, g.Coauthors("Max Moe", 0), "Expected no coauthors for a single author paper")
	})

	t.Run("Related keywords by co-occurrence", func(t *testing.T) {
		related := g.RelatedKeywords("crispr", 3)
		assert.Equal(t, []KeywordCount{
			{Term: "off-target", Papers: 2},
			{Term: "base editing", Papers: 1},
			{Term: "prime editing", Papers: 1},
		}, related, "Expected keywords ordered by shared papers then term")
	})
}

func TestBFS(t *testing.T) {
	ctx := context.Background()
	g := Build(testPapers())
	jane := model.NodeID{Kind: model.NodeKindAuthor, Key: "jane doe"}

	t.Run("BFS from source with max hops 1", func(t *testing.T) {
		results, err := BFS(ctx, g, jane, 1, nil)

		assert.NoError(t, err, "Expected BFS to not return an error")
		require.Len(t, results, 4, "Expected the author and her three papers")
		assert.Equal(t, jane, results[0].Node.ID(), "Expected first result to be source")
		assert.Equal(t, 0, results[0].Distance, "Expected source distance to be 0")
		for _, result := range results[1:] {
			assert.Equal(t, model.NodeKindPaper, result.Node.Kind, "Expected papers one hop away")
			assert.Equal(t, 1, result.Distance, "Expected distance 1")
			assert.Equal(t, []model.NodeID{jane, result.Node.ID()}, result.Path, "Expected the path from the source")
		}
	})

	t.Run("BFS from source with max hops 2", func(t *testing.T) {
		results, err := BFS(ctx, g, jane, 2, nil)

		assert.NoError(t, err, "Expected BFS to not return an error")
		found := map[model.NodeID]int{}
		for _, result := range results {
			found[result.Node.ID()] = result.Distance
		}
		assert.Equal(t, 2, found[model.NodeID{Kind: model.NodeKindAuthor, Key: "john roe"}], "Expected the coauthor two hops away")
		assert.Equal(t, 2, found[model.NodeID{Kind: model.NodeKindKeyword, Key: "crispr"}], "Expected the keyword two hops away")
		_, ok := found[model.NodeID{Kind: model.NodeKindAuthor, Key: "max moe"}]
		assert.False(t, ok, "Expected the unrelated author to be unreachable")
	})

	t.Run("BFS with edge kind filter", func(t *testing.T) {
		results, err := BFS(ctx, g, jane, 2, []model.EdgeKind{model.EdgeAuthoredBy})

		assert.NoError(t, err, "Expected BFS to not return an error")
		for _, result := range results {
			assert.NotEqual(t, model.NodeKindKeyword, result.Node.Kind, "Expected no keywords over authorship edges")
		}
	})

	t.Run("BFS with max hops 0", func(t *testing.T) {
		results, err := BFS(ctx, g, jane, 0, nil)

		assert.NoError(t, err, "Expected BFS to not return an error")
		require.Len(t, results, 1, "Expected only source node for max hops 0")
		assert.Equal(t, jane, results[0].Node.ID(), "Expected result to be source")
	})

	t.Run("BFS from unknown node", func(t *testing.T) {
		_, err := BFS(ctx, g, model.NodeID{Kind: model.NodeKindAuthor, Key: "nobody"}, 1, nil)
		assert.ErrorIs(t, err, helper.ErrNotFound, "Expected not found")
	})

	t.Run("BFS stops on cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := BFS(cancelled, g, jane, 2, nil)
		assert.ErrorIs(t, err, context.Canceled, "Expected the context error")
	})

	t.Run("Neighbors of a paper", func(t *testing.T) {
		neighbors, err := g.Neighbors(ctx, model.NodeID{Kind: model.NodeKindPaper, Key: "crispr-offtarget"})
		require.NoError(t, err, "Expected Neighbors to not return an error")
		labels := []string{}
		for _, n := range neighbors {
			labels = append(labels, n.Label())
		}
		assert.Equal(t, []string{"Jane Doe", "John Roe", "CRISPR", "off-target"}, labels, "Expected authors and keywords in edge order")
	})
}

// invalidGraph returns a node of an unknown kind.
type invalidGraph struct{}

func (invalidGraph) GetNode(ctx context.Context, id model.NodeID) (*model.Node, error) {
	return &model.Node{Kind: model.NodeKind(99)}, nil
}

func (invalidGraph) GetEdges(ctx context.Context, id model.NodeID, edgeKinds []model.EdgeKind) ([]*model.Edge, error) {
	return []*model.Edge{{From: id, To: model.NodeID{Kind: model.NodeKindPaper, Key: "x"}}}, nil
}

func TestDFS(t *testing.T) {
	ctx := context.Background()
	g := Build(testPapers())
	paper := model.NodeID{Kind: model.NodeKindPaper, Key: "crispr-offtarget"}

	t.Run("DFS from source with max hops 2", func(t *testing.T) {
		results, err := DFS(ctx, g, paper, 2, nil)

		assert.NoError(t, err, "Expected DFS to not return an error")
		require.NotEmpty(t, results, "Expected results")
		assert.Equal(t, paper, results[0].Node.ID(), "Expected first result to be source")
		assert.Equal(t, model.NodeKindAuthor, results[1].Node.Kind, "Expected the first author next")
		assert.Equal(t, 2, results[2].Distance, "Expected depth first descent into the author's papers")
	})

	t.Run("DFS with max hops 0", func(t *testing.T) {
		results, err := DFS(ctx, g, paper, 0, nil)

		assert.NoError(t, err, "Expected DFS to not return an error")
		require.Len(t, results, 1, "Expected only source node for max hops 0")
	})

	t.Run("Unknown node kinds are rejected", func(t *testing.T) {
		_, err := DFS(ctx, invalidGraph{}, model.NodeID{}, 1, nil)
		assert.ErrorIs(t, err, helper.ErrInvalidInput, "Expected invalid input for an unknown kind")
	})
}
