package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/siherrmann/scholar"
	"github.com/siherrmann/scholar/config"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
)

func papers() []*model.Paper {
	return []*model.Paper{
		{
			ID:          "pmid-32000001",
			Title:       "Genome-wide detection of CRISPR off-target cleavage",
			Abstract:    "Unbiased sequencing identifies off-target double-strand breaks of Cas9 and high fidelity variants reduce them.",
			Authors:     []string{"Wei Zhang", "Maria Rossi"},
			PublishedAt: time.Date(2019, 5, 1, 0, 0, 0, 0, time.UTC),
			Keywords:    []string{"CRISPR", "off-target", "sequencing"},
			Sections: []model.Section{
				{Label: "Results", Text: "High fidelity Cas9 variants reduced off-target cleavage at all profiled sites while keeping on-target activity."},
			},
		},
		{
			ID:          "pmid-32000002",
			Title:       "Prime editing of pathogenic mutations",
			Abstract:    "Prime editors write new genetic information into a target site without donor DNA.",
			Authors:     []string{"Maria Rossi", "Ann Poe"},
			PublishedAt: time.Date(2021, 2, 1, 0, 0, 0, 0, time.UTC),
			Keywords:    []string{"prime editing", "CRISPR"},
		},
		{
			ID:          "pmid-32000003",
			Title:       "Single-cell atlas of the human retina",
			Abstract:    "Single-cell RNA sequencing of retinal tissue reveals cell types and their marker genes.",
			Authors:     []string{"John Smith"},
			PublishedAt: time.Date(2022, 9, 1, 0, 0, 0, 0, time.UTC),
			Keywords:    []string{"single-cell", "sequencing"},
		},
	}
}

func main() {
	// Start a test PostgreSQL container
	teardown, dbPort, err := helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	defer teardown(context.Background())

	dbConfig := &helper.DatabaseConfiguration{
		Host:     "localhost",
		Port:     dbPort,
		Database: "database",
		Username: "user",
		Password: "password",
		Schema:   "public",
		SSLMode:  "disable",
	}

	settings, err := config.LoadSettings("")
	if err != nil {
		log.Fatalf("Failed to load settings: %v", err)
	}

	s, err := scholar.NewScholar(dbConfig, settings)
	if err != nil {
		log.Fatalf("Failed to create scholar: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	title := color.New(color.FgCyan, color.Bold)

	title.Println("=== Background indexing ===")
	jobIDs, err := s.ScheduleIndexing(papers()...)
	if err != nil {
		log.Fatalf("Failed to schedule indexing: %v", err)
	}
	for _, jobID := range jobIDs {
		job, err := s.WaitForJob(ctx, jobID)
		if err != nil {
			log.Fatalf("Failed to wait for job %s: %v", jobID, err)
		}
		if job.Status != model.JobStatusSucceeded {
			color.Red("  %s: %s (%s)", job.PaperID, job.Status, job.Error)
			continue
		}
		fmt.Printf("  %s: %d chunks\n", job.PaperID, job.Report.InsertedChunks)
	}

	title.Println("\n=== HNSW index ===")
	if err := s.ChangeIndexType(ctx, "hnsw", map[string]interface{}{"m": 16, "ef_construction": 64}); err != nil {
		log.Fatalf("Failed to change index type: %v", err)
	}
	fmt.Println("  Rebuilt vector index as hnsw")

	query := "high fidelity Cas9 off-target cleavage"
	for _, mode := range []model.SearchMode{model.SearchModeDense, model.SearchModeSparse, model.SearchModeHybrid} {
		title.Printf("\n=== %s search ===\n", strings.ToUpper(string(mode)))
		results, err := s.SearchPapers(ctx, query, model.SearchOptions{Mode: mode, TopK: 5})
		if err != nil {
			log.Fatalf("%s search failed: %v", mode, err)
		}
		for i, r := range results {
			color.New(color.FgGreen).Printf("[%d] %.4f %s (%d chunks)\n", i+1, r.Score, r.Paper.Title, len(r.Chunks))
			fmt.Printf("    %s\n", r.BestExcerpt)
		}
	}

	title.Println("\n=== Restricted to one paper ===")
	result, err := s.Search(ctx, "sequencing", model.SearchOptions{PaperIDs: []string{"pmid-32000003"}})
	if err != nil {
		log.Fatalf("Restricted search failed: %v", err)
	}
	for _, r := range result.Results {
		fmt.Printf("[%d] %.4f %s\n", r.Rank, r.FusedScore, r.PaperID)
	}

	title.Println("\n=== Corpus graph ===")
	g, err := s.Graph(ctx)
	if err != nil {
		log.Fatalf("Failed to build graph: %v", err)
	}
	fmt.Printf("  %d nodes\n", g.Len())
	for _, p := range g.PapersByAuthor("Maria Rossi", 10) {
		fmt.Printf("  Maria Rossi wrote %s (%d)\n", p.Title, p.Year)
	}
	for _, c := range g.Coauthors("Maria Rossi", 5) {
		fmt.Printf("  Coauthor %s on %d papers\n", c.Name, c.Papers)
	}
	for _, k := range g.RelatedKeywords("CRISPR", 5) {
		fmt.Printf("  Keyword %s appears with CRISPR in %d papers\n", k.Term, k.Papers)
	}

	fmt.Println("\nAdvanced example completed successfully!")
}
