package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fatih/color"
	"github.com/siherrmann/scholar"
	"github.com/siherrmann/scholar/config"
	"github.com/siherrmann/scholar/model"
)

var samplePapers = []*model.Paper{
	{
		ID:          "pmid-31000001",
		Title:       "Off-target effects of CRISPR-Cas9 nucleases in human cells",
		Abstract:    "We profile off-target cleavage of Cas9 nucleases with genome-wide sequencing and report guide designs that reduce unintended edits.",
		Authors:     []string{"Wei Zhang", "Maria Rossi"},
		Venue:       "Nature Methods",
		PublishedAt: time.Date(2021, 3, 1, 0, 0, 0, 0, time.UTC),
		Keywords:    []string{"CRISPR", "off-target"},
	},
	{
		ID:          "pmid-31000002",
		Title:       "Base editing without double-strand breaks",
		Abstract:    "Cytosine and adenine base editors install point mutations without double-strand breaks and show fewer indels than nuclease editing.",
		Authors:     []string{"Wei Zhang", "Ann Poe"},
		Venue:       "Cell",
		PublishedAt: time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
		Keywords:    []string{"base editing", "CRISPR"},
	},
	{
		ID:          "pmid-31000003",
		Title:       "Predicting protein structures from sequence",
		Abstract:    "Deep learning models predict protein folds from amino acid sequences with near experimental accuracy.",
		Authors:     []string{"John Smith"},
		Venue:       "Science",
		PublishedAt: time.Date(2020, 11, 1, 0, 0, 0, 0, time.UTC),
		Keywords:    []string{"protein folding"},
	},
}

func main() {
	// Load scholar.yaml if present, the hash embedder needs no model download
	settings, err := config.LoadSettings("")
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}
	if settings.Embedding.Provider == config.ProviderHugot {
		settings.Embedding.Provider = config.ProviderHash
		settings.Embedding.Model = "hash"
	}

	s, err := scholar.NewInMemoryScholar(settings)
	if err != nil {
		log.Fatalf("Failed to create scholar: %v", err)
	}
	defer s.Close()

	ctx := context.Background()

	fmt.Println("Indexing papers...")
	for _, paper := range samplePapers {
		report, err := s.IndexPaper(ctx, paper)
		if err != nil {
			log.Fatalf("Failed to index %s: %v", paper.ID, err)
		}
		fmt.Printf("  %s: %d chunks\n", paper.ID, report.InsertedChunks)
	}

	query := "How can CRISPR off-target edits be reduced?"
	result, err := s.Search(ctx, query, model.SearchOptions{TopK: 5})
	if err != nil {
		log.Fatalf("Failed to search: %v", err)
	}

	color.New(color.FgCyan, color.Bold).Printf("\nQuery: %s\n", query)
	fmt.Printf("Weights: dense %.2f, sparse %.2f\n", result.Weights.Dense, result.Weights.Sparse)
	for _, r := range result.Results {
		color.New(color.FgGreen).Printf("\n[%d] %.4f %s\n", r.Rank, r.FusedScore, r.Paper.Title)
		fmt.Printf("    %s\n", r.Chunk.Excerpt(model.ExcerptLength))
	}

	if settings.Generation.Provider == "" {
		color.Yellow("\nNo generation provider configured, skipping answer synthesis")
		return
	}

	answer, err := s.Ask(ctx, query, model.SearchOptions{})
	if err != nil {
		log.Fatalf("Failed to answer: %v", err)
	}
	color.New(color.FgCyan, color.Bold).Printf("\nAnswer (confidence %.2f)\n", answer.Confidence)
	fmt.Println(answer.Text)
	for _, source := range answer.Sources {
		fmt.Printf("  [%d] %s, %s\n", source.Marker, source.Title, source.Section)
	}
}
