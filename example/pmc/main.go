package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/siherrmann/scholar"
	"github.com/siherrmann/scholar/config"
	"github.com/siherrmann/scholar/helper"
	"github.com/siherrmann/scholar/model"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const europePMCURL = "https://www.ebi.ac.uk/europepmc/webservices/rest"

// Open access papers to download as JATS XML
var pmcPapers = []struct {
	ID    string
	Title string
}{
	{"PMC3795411", "Multiplex genome engineering using CRISPR/Cas systems"},
	{"PMC4320685", "GUIDE-seq enables genome-wide profiling of off-target cleavage by CRISPR-Cas nucleases"},
	{"PMC5102418", "Programmable editing of a target base in genomic DNA without double-stranded DNA cleavage"},
	// {"PMC6907074", "Search-and-replace genome editing without double-strand breaks or donor DNA"},
	// {"PMC8371224", "Highly accurate protein structure prediction with AlphaFold"},
}

// startPostgresContainer starts a PostgreSQL container that keeps its data in
// ./data between runs.
func startPostgresContainer() (func(ctx context.Context, opts ...testcontainers.TerminateOption) error, string, error) {
	ctx := context.Background()

	dataDir := "./data"
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, "", fmt.Errorf("failed to create data directory: %w", err)
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, "", fmt.Errorf("failed to get absolute path for data directory: %w", err)
	}

	// An initialized data directory logs the ready message once instead of twice
	waitOccurrences := 2
	if _, err := os.Stat(filepath.Join(absDataDir, "PG_VERSION")); err == nil {
		waitOccurrences = 1
		fmt.Printf("Using existing persistent database in: %s\n", absDataDir)
	} else {
		fmt.Printf("Creating new persistent database in: %s\n", absDataDir)
	}

	pgContainer, err := postgres.Run(
		ctx,
		"pgvector/pgvector:pg16",
		postgres.WithDatabase("database"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(waitOccurrences),
		),
		testcontainers.WithHostConfigModifier(func(hc *container.HostConfig) {
			hc.Mounts = append(hc.Mounts, mount.Mount{
				Type:   mount.TypeBind,
				Source: absDataDir,
				Target: "/var/lib/postgresql/data",
			})
		}),
	)
	if err != nil {
		return nil, "", fmt.Errorf("error starting postgres container: %w", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, "", fmt.Errorf("error getting connection string: %w", err)
	}
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing connection string: %v", err)
	}

	return pgContainer.Terminate, u.Port(), nil
}

func downloadPaper(pmcID string, outputDir string) (string, error) {
	downloadURL := fmt.Sprintf("%s/%s/fullTextXML", europePMCURL, url.PathEscape(pmcID))
	resp, err := http.Get(downloadURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", pmcID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download %s: status %d", pmcID, resp.StatusCode)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", pmcID, err)
	}

	outputPath := filepath.Join(outputDir, pmcID+".nxml")
	if err := os.WriteFile(outputPath, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", pmcID, err)
	}

	return outputPath, nil
}

func main() {
	teardown, dbPort, err := startPostgresContainer()
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

	tmpDir, err := os.MkdirTemp("", "pmc-papers-*")
	if err != nil {
		log.Fatalf("Failed to create temp directory: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	existing, err := existingPapers(ctx, s)
	if err != nil {
		log.Printf("Warning: could not check existing papers: %v", err)
		existing = map[string]bool{}
	}
	if len(existing) > 0 {
		fmt.Printf("Found %d existing papers in database\n", len(existing))
	}

	totalChunks, skipped, processed := 0, 0, 0
	bar := progressbar.Default(int64(len(pmcPapers)), "Indexing papers")
	for _, entry := range pmcPapers {
		if existing[entry.ID] {
			skipped++
			_ = bar.Add(1)
			continue
		}
		bar.Describe("Downloading " + entry.ID)

		path, err := downloadPaper(entry.ID, tmpDir)
		if err != nil {
			log.Printf("Warning: %v, skipping...", err)
			_ = bar.Add(1)
			continue
		}

		paper, err := scholar.LoadPaperFile(path, model.Metadata{"archive": "Europe PMC"})
		if err != nil {
			log.Printf("Warning: failed to read %s: %v, skipping...", entry.ID, err)
			_ = bar.Add(1)
			continue
		}
		paper.ID = entry.ID
		paper.Title = entry.Title

		bar.Describe("Indexing " + entry.ID)
		report, err := s.IndexPaper(ctx, paper)
		if err != nil {
			log.Printf("Warning: failed to index %s: %v, skipping...", entry.ID, err)
			_ = bar.Add(1)
			continue
		}

		totalChunks += report.InsertedChunks
		processed++
		_ = bar.Add(1)
	}

	fmt.Printf("\nCorpus status:\n")
	fmt.Printf("  - Processed: %d papers (%d chunks)\n", processed, totalChunks)
	fmt.Printf("  - Skipped (already in DB): %d papers\n", skipped)
	fmt.Printf("  - Total: %d papers\n\n", len(pmcPapers))

	query := "How are off-target cleavage sites of Cas9 detected?"
	fmt.Printf("Searching: %q\n", query)
	fmt.Println(strings.Repeat("=", 20))

	results, err := s.SearchPapers(ctx, query, model.SearchOptions{TopK: 10})
	if err != nil {
		log.Fatalf("Search failed: %v", err)
	}
	printResults(results)

	if settings.Generation.Provider != "" {
		answer, err := s.Ask(ctx, query, model.SearchOptions{})
		if err != nil {
			log.Fatalf("Failed to answer: %v", err)
		}
		color.New(color.FgCyan, color.Bold).Printf("\nAnswer (confidence %.2f)\n", answer.Confidence)
		fmt.Println(answer.Text)
	}

	fmt.Println("\n" + strings.Repeat("=", 20))
	fmt.Println("Search complete!")
}

// existingPapers returns the ids of the papers that are already indexed.
func existingPapers(ctx context.Context, s *scholar.Scholar) (map[string]bool, error) {
	papers, err := s.Coordinator.Papers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query papers: %w", err)
	}

	existing := make(map[string]bool, len(papers))
	for _, paper := range papers {
		existing[paper.ID] = true
	}
	return existing, nil
}

func printResults(results []*model.PaperResult) {
	if len(results) == 0 {
		color.Yellow("No results found")
		return
	}

	for i, result := range results {
		color.New(color.FgGreen).Printf("\n[%d] Score: %.4f | %s\n", i+1, result.Score, result.Paper.Title)
		fmt.Printf("    %s\n", strings.ReplaceAll(result.BestExcerpt, "\n", "\n    "))

		var sections []string
		for _, chunk := range result.Chunks {
			if chunk.Chunk.Section != "" {
				sections = append(sections, chunk.Chunk.Section)
			}
		}
		if len(sections) > 0 {
			fmt.Printf("    [Sections: %s]\n", strings.Join(sections, ", "))
		}
	}
}
